// Command virtual-webcam serves an emulated UVC webcam over USB/IP. Frames
// come from a pipe, ffmpeg, GStreamer, a test pattern or the admin websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	uvc "github.com/kevmo314/usbip-uvc"
	"github.com/kevmo314/usbip-uvc/internal/admin"
	"github.com/kevmo314/usbip-uvc/internal/attach"
	"github.com/kevmo314/usbip-uvc/internal/platform/config"
	"github.com/kevmo314/usbip-uvc/internal/platform/logger"
	"github.com/kevmo314/usbip-uvc/internal/platform/metrics"
	"github.com/kevmo314/usbip-uvc/pkg/formats"
	"github.com/kevmo314/usbip-uvc/pkg/framesource"
	"github.com/kevmo314/usbip-uvc/pkg/requests"
	"github.com/kevmo314/usbip-uvc/pkg/transfers"
	"github.com/kevmo314/usbip-uvc/pkg/usbip"
)

const (
	defaultPort     = 3241
	busID           = "1-1"
	shutdownTimeout = 10 * time.Second
	attachTimeout   = 10 * time.Second
)

// hexID is a USB vendor or product ID flag accepting 0x prefixed hex.
type hexID uint16

func (h *hexID) String() string { return fmt.Sprintf("0x%04x", uint16(*h)) }

func (h *hexID) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return err
	}
	*h = hexID(n)
	return nil
}

type options struct {
	host      string
	port      int
	cfg       uvc.Config
	source    string
	input     string
	pattern   int
	loopback  bool
	admin     string
	logLevel  string
	logFormat string
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] [input]\n\n", os.Args[0])
	fmt.Fprintf(out, "input defaults to pipe:0. Anything else is opened with ffmpeg, e.g. a file,\n")
	fmt.Fprintf(out, "/dev/video0 or an X11 screen-grab such as :0.0+0,0.\n\n")
	fmt.Fprintf(out, "Without --loopback, attach manually:\n")
	fmt.Fprintf(out, "    sudo modprobe vhci-hcd\n")
	fmt.Fprintf(out, "    sudo usbip --tcp-port %d attach -r 127.0.0.1 -b %s\n", defaultPort, busID)
	fmt.Fprintf(out, "    sudo usbip --tcp-port %d detach -p 00\n\n", defaultPort)
	flag.PrintDefaults()
}

func parseFlags() (*options, error) {
	_ = config.Load()

	o := &options{cfg: uvc.DefaultConfig()}
	vendor := hexID(config.GetEnvUint16("UVC_ID_VENDOR", uvc.DefaultVendorID))
	product := hexID(config.GetEnvUint16("UVC_ID_PRODUCT", uvc.DefaultProductID))
	var format string

	flag.Usage = usage
	flag.StringVar(&o.host, "host", config.GetEnv("USBIP_HOST", "127.0.0.1"), "address to listen on and attach to")
	flag.IntVar(&o.port, "port", config.GetEnvInt("USBIP_PORT", defaultPort), "USB/IP TCP port")
	flag.IntVar(&o.port, "p", config.GetEnvInt("USBIP_PORT", defaultPort), "shorthand for --port")
	flag.IntVar(&o.cfg.Width, "width", config.GetEnvInt("UVC_WIDTH", uvc.DefaultWidth), "frame width")
	flag.IntVar(&o.cfg.Height, "height", config.GetEnvInt("UVC_HEIGHT", uvc.DefaultHeight), "frame height")
	flag.StringVar(&format, "format", config.GetEnv("UVC_FORMAT", string(uvc.DefaultFormat)), "pixel format: yuyv422, nv12, yv12, nv21 or mjpeg")
	flag.IntVar(&o.cfg.FPS, "framerate", config.GetEnvInt("UVC_FPS", uvc.DefaultFPS), "frames per second")
	flag.Var(&vendor, "id-vendor", "USB vendor ID")
	flag.Var(&product, "id-product", "USB product ID")
	flag.StringVar(&o.source, "source", config.GetEnv("UVC_SOURCE", sourceAuto), "frame source: auto, ffmpeg, pattern, image, gstreamer or ws")
	flag.IntVar(&o.pattern, "pattern", 0, "videotestsrc pattern for --source gstreamer")
	flag.BoolVar(&o.loopback, "loopback", config.GetEnvBool("UVC_LOOPBACK", false), "attach the device locally once listening")
	flag.BoolVar(&o.loopback, "l", config.GetEnvBool("UVC_LOOPBACK", false), "shorthand for --loopback")
	flag.StringVar(&o.admin, "admin", config.GetEnv("ADMIN_ADDR", ""), "admin HTTP address, e.g. 127.0.0.1:8080 (disabled when empty)")
	flag.StringVar(&o.logLevel, "log-level", config.GetEnv("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.StringVar(&o.logFormat, "log-format", config.GetEnv("LOG_FORMAT", "text"), "text or json")
	flag.Parse()

	pf, err := formats.ParsePixelFormat(format)
	if err != nil {
		return nil, err
	}
	o.cfg.Format = pf
	o.cfg.VendorID = uint16(vendor)
	o.cfg.ProductID = uint16(product)
	o.input = "pipe:0"
	if flag.NArg() > 0 {
		o.input = flag.Arg(0)
	}
	if o.source == sourceWebsocket && o.admin == "" {
		return nil, errors.New("--source ws needs --admin")
	}
	return o, o.cfg.Validate()
}

func main() {
	os.Exit(run())
}

func run() int {
	o, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	log := logger.New(o.logLevel, o.logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	frames := framesource.NewBroadcaster()
	frames.OnDrop = func(string) { met.IncFramesDropped() }
	publish := func(f []byte) {
		met.IncFramesPublished()
		frames.Publish(f)
	}

	cam, err := uvc.NewCamera(o.cfg, frames, log, uvc.Hooks{
		Frame:       func(e transfers.FrameEvent) { met.IncFrameEvent(e.State.String()) },
		Control:     func(code requests.RequestCode, handled bool) { met.IncControl(code.String(), handled) },
		Isochronous: met.AddIsoPackets,
	})
	if err != nil {
		log.Error("failed to create camera", "err", err)
		return 1
	}
	srv := usbip.NewServer(cam.NewDevice, log, usbip.Hooks{
		Session: func(opened bool) {
			if opened {
				met.IncSessions()
			}
		},
		Command:       func(c usbip.Command) { met.IncURB(c.String()) },
		Unlink:        met.IncUnlinks,
		ProtocolError: func(error) { met.IncProtocolErrors() },
	})

	src, err := newSource(o, log)
	if err != nil {
		log.Error("failed to open frame source", "source", o.source, "input", o.input, "err", err)
		return 1
	}

	addr := net.JoinHostPort(o.host, strconv.Itoa(o.port))
	ln, err := usbip.Listen(ctx, addr)
	if err != nil {
		log.Error("failed to start USB/IP server", "addr", addr, "err", err)
		return 1
	}
	log.Info("USB/IP server listening",
		"addr", ln.Addr().String(),
		"format", o.cfg.Format,
		"size", fmt.Sprintf("%dx%d", o.cfg.Width, o.cfg.Height),
		"fps", o.cfg.FPS,
		"frameLength", o.cfg.FrameLength(),
		"attach", fmt.Sprintf("usbip --tcp-port %d attach -r %s -b %s", o.port, o.host, busID),
	)

	var httpSrv *http.Server
	if o.admin != "" {
		h := admin.NewHandler(srv, cam, publish, log, met)
		httpSrv = &http.Server{Addr: o.admin, Handler: h.Router(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("admin server error", "err", err)
				stop()
			}
		}()
		log.Info("admin server listening", "addr", o.admin)
	}

	if o.loopback {
		go loopback(ctx, o, log)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Serve(ctx, ln) }()
	sourceErr := make(chan error, 1)
	go func() { sourceErr <- src.run(ctx, publish) }()

	code := 0
	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("USB/IP server stopped", "err", err)
			code = 1
		}
	case err := <-sourceErr:
		switch {
		case ctx.Err() != nil:
		case err == nil:
			log.Info("frame source closed, exiting", "input", src.name)
		default:
			log.Error("frame source failed", "input", src.name, "err", err)
			code = 1
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}
	stop()

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("admin shutdown error", "err", err)
		}
	}
	log.Info("stopped")
	return code
}

// loopback attaches the device to this machine. Failures are logged and the
// server keeps running so the device can still be attached by hand.
func loopback(ctx context.Context, o *options, log *slog.Logger) {
	a := attach.New(log)
	if err := a.EnsureModule(ctx, "vhci-hcd"); err != nil {
		log.Warn("failed to load vhci-hcd", "err", err)
	}
	_, err := a.Attach(ctx, attach.Config{
		Host:      o.host,
		Port:      o.port,
		BusID:     busID,
		VendorID:  o.cfg.VendorID,
		ProductID: o.cfg.ProductID,
		Timeout:   attachTimeout,
	})
	if err != nil && ctx.Err() == nil {
		log.Warn("failed to attach device locally", "err", err)
	}
}
