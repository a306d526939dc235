package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the virtual webcam.
type Metrics struct {
	registry *prometheus.Registry

	sessionsTotal       prometheus.Counter
	activeSessions      prometheus.Gauge
	urbsTotal           *prometheus.CounterVec
	controlsTotal       *prometheus.CounterVec
	isoPacketsTotal     prometheus.Counter
	framesPublished     prometheus.Counter
	framesDropped       prometheus.Counter
	frameEventsTotal    *prometheus.CounterVec
	unlinksTotal        *prometheus.CounterVec
	protocolErrorsTotal prometheus.Counter
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
}

// New creates and registers the metrics in a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvc_sessions_total",
			Help: "Total number of USB/IP connections accepted",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uvc_active_sessions",
			Help: "Number of USB/IP connections currently open",
		}),
		urbsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uvc_urbs_total",
			Help: "Total number of USB/IP commands received, by command",
		}, []string{"command"}),
		controlsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uvc_control_requests_total",
			Help: "Total number of class control requests, by request and outcome",
		}, []string{"request", "result"}),
		isoPacketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvc_iso_packets_total",
			Help: "Total number of isochronous packets sent",
		}),
		framesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvc_frames_published_total",
			Help: "Total number of frames read from the video source",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvc_frames_dropped_total",
			Help: "Total number of frames overwritten before a session sent them",
		}),
		frameEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uvc_frame_events_total",
			Help: "Total number of frames started and finished on the wire",
		}, []string{"state"}),
		unlinksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uvc_unlinks_total",
			Help: "Total number of unlink commands, by whether a pending reply was cancelled",
		}, []string{"cancelled"}),
		protocolErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvc_protocol_errors_total",
			Help: "Total number of fatal USB/IP protocol violations",
		}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvc_admin_requests_total",
			Help: "Total number of admin HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvc_admin_errors_total",
			Help: "Total number of admin HTTP responses with error status (4xx or 5xx)",
		}),
	}
	m.registry.MustRegister(
		m.sessionsTotal,
		m.activeSessions,
		m.urbsTotal,
		m.controlsTotal,
		m.isoPacketsTotal,
		m.framesPublished,
		m.framesDropped,
		m.frameEventsTotal,
		m.unlinksTotal,
		m.protocolErrorsTotal,
		m.requestsTotal,
		m.errorsTotal,
	)
	return m
}

func (m *Metrics) IncSessions() {
	m.sessionsTotal.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncURB counts one inbound command, named as on the wire (CMD_SUBMIT, ...).
func (m *Metrics) IncURB(command string) {
	m.urbsTotal.WithLabelValues(command).Inc()
}

func (m *Metrics) IncControl(request string, handled bool) {
	result := "handled"
	if !handled {
		result = "unhandled"
	}
	m.controlsTotal.WithLabelValues(request, result).Inc()
}

func (m *Metrics) AddIsoPackets(n int) {
	m.isoPacketsTotal.Add(float64(n))
}

func (m *Metrics) IncFramesPublished() {
	m.framesPublished.Inc()
}

func (m *Metrics) IncFramesDropped() {
	m.framesDropped.Inc()
}

// IncFrameEvent counts a frame state transition ("started" or "finished").
func (m *Metrics) IncFrameEvent(state string) {
	m.frameEventsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncUnlinks(cancelled bool) {
	label := "false"
	if cancelled {
		label = "true"
	}
	m.unlinksTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncProtocolErrors() {
	m.protocolErrorsTotal.Inc()
}

// IncRequests increments the admin request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the admin error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
