package app_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bdobrica/Shiori/internal/shiori/app"
	"github.com/bdobrica/Shiori/internal/shiori/store"
)

type fakeStatus struct {
	cached    int
	persisted int
	err       error
	modules   []string

	audit      []*store.AuditEntry
	auditErr   error
	auditLimit int
	auditTrace string
}

func (f *fakeStatus) ChannelCount() int { return f.cached }
func (f *fakeStatus) PersistedChannels(context.Context) (int, error) {
	return f.persisted, f.err
}
func (f *fakeStatus) ModuleIDs() []string { return f.modules }
func (f *fakeStatus) AuditLog(_ context.Context, limit int) ([]*store.AuditEntry, error) {
	f.auditLimit = limit
	return f.audit, f.auditErr
}
func (f *fakeStatus) AuditByTrace(_ context.Context, traceID string) ([]*store.AuditEntry, error) {
	f.auditTrace = traceID
	return f.audit, f.auditErr
}

func get(t *testing.T, hs *app.HealthServer, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	hs.ServeHTTP(w, req)

	var resp map[string]any
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return w.Code, resp
}

func TestHealthServer_Health(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{})

	code, resp := get(t, hs, "/health")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
}

func TestHealthServer_Status(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{cached: 2, persisted: 5, modules: []string{"pinboard"}})

	code, resp := get(t, hs, "/status")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if int(resp["cached_channels"].(float64)) != 2 {
		t.Errorf("cached_channels: got %v", resp["cached_channels"])
	}
	if int(resp["persisted_channels"].(float64)) != 5 {
		t.Errorf("persisted_channels: got %v", resp["persisted_channels"])
	}
	mods, _ := resp["modules"].([]any)
	if len(mods) != 1 || mods[0] != "pinboard" {
		t.Errorf("modules: got %v", resp["modules"])
	}
}

func TestHealthServer_StatusSurvivesStoreError(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{cached: 1, err: errors.New("locked")})

	code, resp := get(t, hs, "/status")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if int(resp["persisted_channels"].(float64)) != 0 {
		t.Errorf("persisted_channels: got %v", resp["persisted_channels"])
	}
	if mods, ok := resp["modules"].([]any); !ok || len(mods) != 0 {
		t.Errorf("modules should be an empty list, got %v", resp["modules"])
	}
}

func TestHealthServer_UnknownRouteAndMethod(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", nil)

	if code, _ := get(t, hs, "/nope"); code != http.StatusNotFound {
		t.Errorf("unknown route: got %d", code)
	}

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	hs.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health: got %d", w.Code)
	}
}

func getList(t *testing.T, hs *app.HealthServer, path string) (int, []map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var items []map[string]any
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&items); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return w.Code, items
}

func TestHealthServer_Audit(t *testing.T) {
	fs := &fakeStatus{audit: []*store.AuditEntry{{
		ID:          7,
		TraceID:     "t_abc",
		ActorID:     "@alice:example.org",
		Action:      "pin.add",
		ChannelID:   sql.NullString{String: "!room:example.org", Valid: true},
		PayloadJSON: sql.NullString{String: `{"pin_id":1}`, Valid: true},
		Result:      store.AuditSuccess,
	}}}
	hs := app.NewHealthServer("127.0.0.1:0", fs)

	code, items := getList(t, hs, "/audit")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if fs.auditLimit != 20 {
		t.Errorf("default limit: got %d", fs.auditLimit)
	}
	if len(items) != 1 || items[0]["action"] != "pin.add" || items[0]["channel_id"] != "!room:example.org" {
		t.Fatalf("items: got %v", items)
	}
	if payload, _ := items[0]["payload"].(map[string]any); payload["pin_id"] != float64(1) {
		t.Errorf("payload: got %v", items[0]["payload"])
	}

	if code, _ := getList(t, hs, "/audit?limit=5000"); code != http.StatusOK || fs.auditLimit != 200 {
		t.Errorf("capped limit: code %d, limit %d", code, fs.auditLimit)
	}
	if code, _ := getList(t, hs, "/audit?trace=t_abc"); code != http.StatusOK || fs.auditTrace != "t_abc" {
		t.Errorf("trace query: code %d, trace %q", code, fs.auditTrace)
	}
}

func TestHealthServer_AuditErrors(t *testing.T) {
	tests := []struct {
		name string
		fs   *fakeStatus
		path string
		want int
	}{
		{name: "bad limit", fs: &fakeStatus{}, path: "/audit?limit=abc", want: http.StatusBadRequest},
		{name: "zero limit", fs: &fakeStatus{}, path: "/audit?limit=0", want: http.StatusBadRequest},
		{name: "store error", fs: &fakeStatus{auditErr: errors.New("locked")}, path: "/audit", want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := getList(t, app.NewHealthServer("127.0.0.1:0", tt.fs), tt.path); code != tt.want {
				t.Errorf("got %d, want %d", code, tt.want)
			}
		})
	}
}
