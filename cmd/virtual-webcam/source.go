package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kevmo314/usbip-uvc/pkg/framesource"
	"github.com/kevmo314/usbip-uvc/pkg/framesource/gstsource"
)

const (
	sourceAuto      = "auto"
	sourceFFmpeg    = "ffmpeg"
	sourcePattern   = "pattern"
	sourceImage     = "image"
	sourceGStreamer = "gstreamer"
	sourceWebsocket = "ws"
)

// source publishes frames until its input ends, returning nil, or fails.
type source struct {
	name string
	run  func(ctx context.Context, publish func([]byte)) error
}

func newSource(o *options, log *slog.Logger) (*source, error) {
	cfg := o.cfg
	kind := o.source
	if kind == sourceAuto {
		kind = sourceFFmpeg
		if _, ok := framesource.PipeFD(o.input); ok {
			kind = "pipe"
		}
	}

	switch kind {
	case "pipe":
		f, err := framesource.OpenPipe(o.input)
		if err != nil {
			return nil, err
		}
		log.Info("reading frames from file descriptor", "input", o.input)
		c := framesource.NewChunker(cfg.Format, cfg.Width, cfg.Height)
		return &source{name: o.input, run: func(ctx context.Context, publish func([]byte)) error {
			defer f.Close()
			return framesource.ReadStream(ctx, f, c, publish)
		}}, nil

	case sourceFFmpeg:
		fc := framesource.FFmpegConfig{Input: o.input, Format: cfg.Format, Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS}
		return &source{name: o.input, run: func(ctx context.Context, publish func([]byte)) error {
			return framesource.RunFFmpeg(ctx, fc, log, publish)
		}}, nil

	case sourcePattern, sourceImage:
		p := &framesource.Pattern{Format: cfg.Format, Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS}
		name := "colour bars"
		if kind == sourceImage {
			img, err := framesource.LoadImage(o.input)
			if err != nil {
				return nil, err
			}
			p.Still = img
			name = o.input
		}
		return &source{name: name, run: func(ctx context.Context, publish func([]byte)) error {
			if err := p.Run(ctx, publish); ctx.Err() == nil {
				return err
			}
			return nil
		}}, nil

	case sourceGStreamer:
		gc := gstsource.Config{Pattern: o.pattern, Format: cfg.Format, Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS}
		if _, isPipe := framesource.PipeFD(o.input); !isPipe {
			gc.Device = o.input
		}
		s, err := gstsource.New(gc, log)
		if err != nil {
			return nil, err
		}
		name := gc.Device
		if name == "" {
			name = "videotestsrc"
		}
		return &source{name: name, run: func(ctx context.Context, publish func([]byte)) error {
			err := s.Run(ctx, publish)
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, gstsource.ErrEndOfStream):
				return nil
			}
			return err
		}}, nil

	case sourceWebsocket:
		return &source{name: "/ws/frames", run: func(ctx context.Context, _ func([]byte)) error {
			<-ctx.Done()
			return nil
		}}, nil
	}
	return nil, fmt.Errorf("unknown source %q", o.source)
}
