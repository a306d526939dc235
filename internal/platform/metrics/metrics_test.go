package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncSessions()
	m.IncURB("CMD_SUBMIT")
	m.IncURB("CMD_SUBMIT")
	m.IncControl("GET_CUR", true)
	m.IncControl("SET_CUR", false)
	m.AddIsoPackets(32)
	m.IncFrameEvent("started")
	m.IncUnlinks(true)
	m.IncProtocolErrors()

	body := scrape(t, m, func() { m.SetActiveSessions(3) })
	for _, want := range []string{
		"uvc_sessions_total 1",
		"uvc_active_sessions 3",
		`uvc_urbs_total{command="CMD_SUBMIT"} 2`,
		`uvc_control_requests_total{request="GET_CUR",result="handled"} 1`,
		`uvc_control_requests_total{request="SET_CUR",result="unhandled"} 1`,
		"uvc_iso_packets_total 32",
		`uvc_frame_events_total{state="started"} 1`,
		`uvc_unlinks_total{cancelled="true"} 1`,
		"uvc_protocol_errors_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape is missing %q", want)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	for _, path := range []string{"/healthz", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m, nil)
	if !strings.Contains(body, "uvc_admin_requests_total 2") || !strings.Contains(body, "uvc_admin_errors_total 1") {
		t.Errorf("scrape = %q, want 2 requests and 1 error", body)
	}
}
