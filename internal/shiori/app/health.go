package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bdobrica/Shiori/common/version"
	"github.com/bdobrica/Shiori/internal/shiori/store"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 200
)

// HealthServer exposes /health, /status and /audit. It is optional; Shiori runs
// without it when HTTPAddr is empty.
type HealthServer struct {
	addr      string
	status    statusProvider
	startedAt time.Time
	server    *http.Server
	router    chi.Router
}

// statusProvider is what the health server reports on.
type statusProvider interface {
	// ChannelCount is the number of channels with cached state.
	ChannelCount() int
	// PersistedChannels is the number of channels saved to the database.
	PersistedChannels(ctx context.Context) (int, error)
	// ModuleIDs lists the registered modules in order.
	ModuleIDs() []string
	// AuditLog returns the newest audit entries first.
	AuditLog(ctx context.Context, limit int) ([]*store.AuditEntry, error)
	// AuditByTrace returns the entries written while handling one event.
	AuditByTrace(ctx context.Context, traceID string) ([]*store.AuditEntry, error)
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status            string    `json:"status"`
	Version           string    `json:"version"`
	Commit            string    `json:"commit"`
	BuildTime         string    `json:"build_time"`
	StartedAt         time.Time `json:"started_at"`
	UptimeSecs        float64   `json:"uptime_seconds"`
	CachedChannels    int       `json:"cached_channels"`
	PersistedChannels int       `json:"persisted_channels"`
	Modules           []string  `json:"modules"`
}

// auditItem is one row of GET /audit.
type auditItem struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	TraceID   string          `json:"trace_id"`
	ActorID   string          `json:"actor_id"`
	Action    string          `json:"action"`
	ChannelID string          `json:"channel_id,omitempty"`
	Result    string          `json:"result"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewHealthServer creates and configures the HTTP server (does not start it).
func NewHealthServer(addr string, sp statusProvider) *HealthServer {
	hs := &HealthServer{
		addr:      addr,
		status:    sp,
		startedAt: time.Now(),
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/health", hs.handleHealth)
	r.Get("/status", hs.handleStatus)
	r.Get("/audit", hs.handleAudit)
	hs.router = r
	return hs
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live listener.
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Serve listens on the configured address and serves until ctx is
// cancelled.
func (h *HealthServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listen %s: %w", h.addr, err)
	}
	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("health server shutdown error", "err", err)
		}
	}()

	slog.Info("health server listening", "addr", ln.Addr().String())
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:    "ok",
		Version:   version.Version,
		Commit:    version.GitCommit,
		BuildTime: version.BuildTime,
		StartedAt: h.startedAt,
		Modules:   []string{},
	}
	resp.UptimeSecs = time.Since(h.startedAt).Seconds()
	if h.status != nil {
		resp.CachedChannels = h.status.ChannelCount()
		if n, err := h.status.PersistedChannels(r.Context()); err == nil {
			resp.PersistedChannels = n
		} else {
			slog.Warn("status: failed to count persisted channels", "err", err)
		}
		if ids := h.status.ModuleIDs(); ids != nil {
			resp.Modules = ids
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAudit serves GET /audit?limit=N (newest first) or
// GET /audit?trace=<id> (one event's entries in write order).
func (h *HealthServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeJSON(w, http.StatusOK, []auditItem{})
		return
	}
	var (
		entries []*store.AuditEntry
		err     error
	)
	if traceID := r.URL.Query().Get("trace"); traceID != "" {
		entries, err = h.status.AuditByTrace(r.Context(), traceID)
	} else {
		limit := defaultAuditLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxAuditLimit)
		}
		entries, err = h.status.AuditLog(r.Context(), limit)
	}
	if err != nil {
		slog.Warn("audit: query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit log unavailable"})
		return
	}

	items := make([]auditItem, 0, len(entries))
	for _, e := range entries {
		item := auditItem{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			TraceID:   e.TraceID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			ChannelID: e.ChannelID.String,
			Result:    e.Result,
			Error:     e.ErrorMessage.String,
		}
		if e.PayloadJSON.Valid && json.Valid([]byte(e.PayloadJSON.String)) {
			item.Payload = json.RawMessage(e.PayloadJSON.String)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("health: failed to encode JSON response", "err", err)
	}
}
