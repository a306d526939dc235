package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug", "json")
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line %q is not json: %v", buf.String(), err)
	}
	if entry["path"] != "/api/sessions" || entry["status"] != float64(http.StatusTeapot) || entry["size"] != float64(5) {
		t.Errorf("entry = %v, want path /api/sessions, status 418, size 5", entry)
	}
}

func TestNewWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "warn", "text").Info("hidden")
	NewWriter(&buf, "warn", "text").Warn("shown", "busid", "1-1")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("output = %q, want info suppressed at warn", buf.String())
	}
	if !strings.Contains(buf.String(), "busid=1-1") {
		t.Errorf("output = %q, want text attribute busid=1-1", buf.String())
	}
}
