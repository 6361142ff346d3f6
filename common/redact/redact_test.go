package redact_test

import (
	"errors"
	"testing"

	"github.com/bdobrica/Shiori/common/redact"
)

func TestRedactor_String(t *testing.T) {
	r := redact.New("syt_c2hpb3Jp_abcdef", "abc", "  ")

	tests := []struct {
		in, want string
	}{
		{in: "GET /sync failed: token syt_c2hpb3Jp_abcdef rejected", want: "GET /sync failed: token [REDACTED] rejected"},
		{in: "abc is too short to redact", want: "abc is too short to redact"},
		{in: "nothing secret", want: "nothing secret"},
	}
	for _, tt := range tests {
		if got := r.String(tt.in); got != tt.want {
			t.Errorf("String(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactor_Err(t *testing.T) {
	r := redact.New("hunter2hunter2")
	if got := r.Err(errors.New("login with hunter2hunter2 failed")); got != "login with [REDACTED] failed" {
		t.Errorf("got %q", got)
	}
	if got := r.Err(nil); got != "" {
		t.Errorf("nil error: got %q", got)
	}
}

func TestRedactor_Map(t *testing.T) {
	r := redact.New("hunter2hunter2")
	in := map[string]any{
		"pin_id":       3,
		"note":         "remember hunter2hunter2",
		"access_token": "anything",
		"AuthHeader":   "Bearer x",
		"empty_token":  "",
	}

	out := r.Map(in)
	if out["pin_id"] != 3 {
		t.Errorf("non-string value changed: %v", out["pin_id"])
	}
	if out["note"] != "remember [REDACTED]" {
		t.Errorf("note: got %v", out["note"])
	}
	if out["access_token"] != redact.Placeholder || out["AuthHeader"] != redact.Placeholder {
		t.Errorf("sensitive keys: got %v / %v", out["access_token"], out["AuthHeader"])
	}
	if out["empty_token"] != "" {
		t.Errorf("empty values stay empty, got %v", out["empty_token"])
	}
	if in["note"] != "remember hunter2hunter2" {
		t.Error("input map was modified")
	}
	if r.Map(nil) != nil {
		t.Error("nil map should stay nil")
	}
}

func TestRedactor_Nil(t *testing.T) {
	var r *redact.Redactor
	if got := r.String("keep me"); got != "keep me" {
		t.Errorf("got %q", got)
	}
	if got := r.Map(map[string]any{"token": "x"}); got["token"] != redact.Placeholder {
		t.Errorf("nil redactor should still mask sensitive keys, got %v", got["token"])
	}
}
