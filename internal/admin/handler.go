// Package admin serves the diagnostics and frame ingest HTTP API of the
// virtual webcam.
package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/jpeg"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	uvc "github.com/kevmo314/usbip-uvc"
	"github.com/kevmo314/usbip-uvc/internal/platform/logger"
	"github.com/kevmo314/usbip-uvc/internal/platform/metrics"
	"github.com/kevmo314/usbip-uvc/pkg/controls"
	"github.com/kevmo314/usbip-uvc/pkg/decode"
	"github.com/kevmo314/usbip-uvc/pkg/framesource"
	"github.com/kevmo314/usbip-uvc/pkg/usbip"
)

// Sessions lists the open USB/IP connections. *usbip.Server implements it.
type Sessions interface {
	Conns() []*usbip.Conn
	Conn(id string) (*usbip.Conn, bool)
}

// sessionDevice is what the handler needs from a connection's device.
type sessionDevice interface {
	State() uvc.DeviceState
	Controls() *controls.Store
}

// Session is one entry of GET /api/sessions.
type Session struct {
	usbip.ConnInfo
	Device *uvc.DeviceState `json:"device,omitempty"`
}

// Camera is the body of GET /api/camera.
type Camera struct {
	VendorID    uint16                       `json:"vendorId"`
	ProductID   uint16                       `json:"productId"`
	Format      string                       `json:"format"`
	Width       int                          `json:"width"`
	Height      int                          `json:"height"`
	FPS         int                          `json:"fps"`
	FrameLength int                          `json:"frameLength"`
	Frames      framesource.BroadcasterStats `json:"frames"`
	LatestFrame time.Time                    `json:"latestFrame,omitzero"`
}

// Handler exposes the admin endpoints using go-chi.
type Handler struct {
	sessions Sessions
	cam      *uvc.Camera
	publish  func([]byte)
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler. publish receives frames posted to /ws/frames;
// when nil they go straight to the camera's broadcaster. Metrics may be nil.
func NewHandler(sessions Sessions, cam *uvc.Camera, publish func([]byte), log *slog.Logger, m *metrics.Metrics) *Handler {
	if publish == nil {
		publish = cam.Frames().Publish
	}
	return &Handler{
		sessions: sessions,
		cam:      cam,
		publish:  publish,
		log:      log,
		metrics:  m,
		upgrader: websocket.Upgrader{ReadBufferSize: 64 * 1024},
	}
}

// Router mounts every endpoint.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(h.log))
	if h.metrics != nil {
		r.Use(metrics.RequestMiddleware(h.metrics))
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			h.metrics.Handler(func() { h.metrics.SetActiveSessions(len(h.sessions.Conns())) }).ServeHTTP(w, r)
		})
	}
	r.Get("/healthz", h.Healthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/camera", h.GetCamera)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{id}/controls", h.GetControls)
		r.Get("/frame.jpg", h.GetFrame)
	})
	r.Get("/ws/frames", h.IngestFrames)
	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (h *Handler) GetCamera(w http.ResponseWriter, r *http.Request) {
	cfg := h.cam.Config()
	_, at := h.cam.Frames().Latest()
	h.writeJSON(w, Camera{
		VendorID:    cfg.VendorID,
		ProductID:   cfg.ProductID,
		Format:      string(cfg.Format),
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         cfg.FPS,
		FrameLength: cfg.FrameLength(),
		Frames:      h.cam.Frames().Stats(),
		LatestFrame: at,
	})
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	conns := h.sessions.Conns()
	out := make([]Session, 0, len(conns))
	for _, c := range conns {
		s := Session{ConnInfo: c.Info()}
		if d, ok := c.Device().(sessionDevice); ok {
			st := d.State()
			s.Device = &st
		}
		out = append(out, s)
	}
	h.writeJSON(w, out)
}

// GetControls handles GET /api/sessions/{id}/controls.
func (h *Handler) GetControls(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := h.sessions.Conn(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	d, ok := c.Device().(sessionDevice)
	if !ok {
		http.Error(w, "session has no control store", http.StatusNotFound)
		return
	}
	h.writeJSON(w, d.Controls().Snapshot())
}

// GetFrame handles GET /api/frame.jpg with the most recently published frame.
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	frame, at := h.cam.Frames().Latest()
	if frame == nil {
		http.Error(w, "no frame published yet", http.StatusNotFound)
		return
	}
	cfg := h.cam.Config()
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	if cfg.Format.Compressed() {
		w.Write(frame)
		return
	}
	img, err := decode.Frame(cfg.Format, cfg.Width, cfg.Height, frame)
	if err != nil {
		h.log.Warn("decode frame failed", "format", cfg.Format, "length", len(frame), "err", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: framesource.JPEGQuality}); err != nil {
		h.log.Error("encode preview failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(buf.Bytes())
}

var errBadFrame = errors.New("bad frame")

// checkFrame rejects frames the camera could not stream as configured.
func (h *Handler) checkFrame(frame []byte) error {
	cfg := h.cam.Config()
	if cfg.Format.Compressed() {
		if len(frame) < 4 || frame[0] != 0xFF || frame[1] != 0xD8 {
			return errBadFrame
		}
		return nil
	}
	if len(frame) != cfg.FrameLength() {
		return errBadFrame
	}
	return nil
}

// IngestFrames handles GET /ws/frames. Every binary message is one frame in
// the camera's pixel format; malformed frames are answered with a text message
// and skipped.
func (h *Handler) IngestFrames(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()
	log := h.log.With("remote", r.RemoteAddr)
	log.Info("frame ingest connected")

	var accepted, rejected int
	for {
		kind, msg, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("frame ingest read failed", "err", err)
			}
			break
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := h.checkFrame(msg); err != nil {
			rejected++
			log.Warn("rejected frame", "length", len(msg), "want", h.cam.Config().FrameLength())
			ws.WriteMessage(websocket.TextMessage, []byte("rejected: frame does not match "+string(h.cam.Config().Format)))
			continue
		}
		accepted++
		h.publish(msg)
	}
	log.Info("frame ingest disconnected", "accepted", accepted, "rejected", rejected)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", "err", err)
	}
}
