// Package gstsource produces frames from a GStreamer pipeline.
package gstsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

var ErrEndOfStream = errors.New("gstreamer: end of stream")

type Config struct {
	// Device is a V4L2 device such as /dev/video0; videotestsrc is used when empty.
	Device string
	// Pattern is the videotestsrc pattern number, 0 being SMPTE bars.
	Pattern int
	Format  formats.PixelFormat
	Width   int
	Height  int
	FPS     int
}

// Caps returns the caps the appsink negotiates for the configured format.
func (c Config) Caps() (string, error) {
	var format string
	switch c.Format {
	case formats.PixelFormatMJPEG:
		return fmt.Sprintf("image/jpeg,width=%d,height=%d,framerate=%d/1", c.Width, c.Height, c.FPS), nil
	case formats.PixelFormatYUYV422:
		format = "YUY2"
	case formats.PixelFormatNV12:
		format = "NV12"
	case formats.PixelFormatNV21:
		format = "NV21"
	case formats.PixelFormatYV12:
		format = "YV12"
	default:
		return "", fmt.Errorf("%w: %q", formats.ErrUnknownPixelFormat, string(c.Format))
	}
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=%d/1", format, c.Width, c.Height, c.FPS), nil
}

type Source struct {
	cfg      Config
	log      *slog.Logger
	pipeline *gst.Pipeline
	sink     *app.Sink
}

// New builds src → videoconvert → videoscale → videorate → capsfilter
// [→ jpegenc] → appsink without starting it.
func New(cfg Config, log *slog.Logger) (*Source, error) {
	caps, err := cfg.Caps()
	if err != nil {
		return nil, err
	}
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	var src *gst.Element
	if cfg.Device != "" {
		if src, err = gst.NewElement("v4l2src"); err != nil {
			return nil, fmt.Errorf("failed to create v4l2src: %w", err)
		}
		src.SetProperty("device", cfg.Device)
	} else {
		if src, err = gst.NewElement("videotestsrc"); err != nil {
			return nil, fmt.Errorf("failed to create videotestsrc: %w", err)
		}
		src.SetProperty("is-live", true)
		src.SetProperty("pattern", cfg.Pattern)
	}

	elems := []*gst.Element{src}
	for _, name := range []string{"videoconvert", "videoscale", "videorate"} {
		e, err := gst.NewElement(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		elems = append(elems, e)
	}

	rawCaps := caps
	if cfg.Format.Compressed() {
		rawCaps = fmt.Sprintf("video/x-raw,format=I420,width=%d,height=%d,framerate=%d/1", cfg.Width, cfg.Height, cfg.FPS)
	}
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(rawCaps))
	elems = append(elems, capsfilter)

	if cfg.Format.Compressed() {
		enc, err := gst.NewElement("jpegenc")
		if err != nil {
			return nil, fmt.Errorf("failed to create jpegenc: %w", err)
		}
		elems = append(elems, enc)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)
	elems = append(elems, sink.Element)

	if err := pipeline.AddMany(elems...); err != nil {
		return nil, fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(elems...); err != nil {
		return nil, fmt.Errorf("failed to link elements: %w", err)
	}
	log.Debug("gstreamer pipeline built", "caps", caps, "device", cfg.Device)
	return &Source{cfg: cfg, log: log, pipeline: pipeline, sink: sink}, nil
}

// Run plays the pipeline, publishing a copy of every sample, until ctx is
// cancelled or the pipeline ends or fails.
func (s *Source) Run(ctx context.Context, publish func([]byte)) error {
	s.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			sample := sink.PullSample()
			if sample == nil {
				return gst.FlowOK
			}
			buffer := sample.GetBuffer()
			if buffer == nil {
				return gst.FlowOK
			}
			data := buffer.Map(gst.MapRead).Bytes()
			frame := make([]byte, len(data))
			copy(frame, data)
			buffer.Unmap()
			if len(frame) > 0 {
				publish(frame)
			}
			return gst.FlowOK
		},
	})

	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	defer s.pipeline.SetState(gst.StateNull)

	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return ErrEndOfStream
		case gst.MessageError:
			gerr := msg.ParseError()
			s.log.Error("gstreamer pipeline error", "error", gerr.Error())
			return fmt.Errorf("gstreamer: %s", gerr.Error())
		}
	}
}
