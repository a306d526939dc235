package framesource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

// screenGrab matches X11 display inputs such as ":0.0+0,0".
var screenGrab = regexp.MustCompile(`:[0-9.,+-]+`)

type FFmpegConfig struct {
	// Binary defaults to "ffmpeg" on PATH.
	Binary string
	Input  string
	Format formats.PixelFormat
	Width  int
	Height int
	FPS    int
}

// Args returns the ffmpeg argument list that transcodes Input into a raw
// stream of Format frames on stdout.
func (c FFmpegConfig) Args() []string {
	var args []string
	if screenGrab.MatchString(c.Input) {
		args = append(args, "-f", "x11grab")
	}
	args = append(args, "-i", c.Input)
	if c.Format.Compressed() {
		args = append(args, "-c:v", "mjpeg")
	} else {
		args = append(args, "-c:v", "rawvideo", "-pix_fmt", c.Format.FFmpegPixelFormat())
		if c.Format == formats.PixelFormatYV12 {
			args = append(args, "-vf", "shuffleplanes=0:2:1")
		}
	}
	args = append(args,
		"-s", fmt.Sprintf("%dx%d", c.Width, c.Height),
		"-framerate", strconv.Itoa(c.FPS),
	)
	if c.Format.Compressed() {
		args = append(args, "-f", "mjpeg")
	} else {
		args = append(args, "-f", "rawvideo")
	}
	return append(args, "pipe:1")
}

func (c FFmpegConfig) Command(ctx context.Context) *exec.Cmd {
	bin := c.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	return exec.CommandContext(ctx, bin, c.Args()...)
}

// RunFFmpeg runs ffmpeg and publishes its frames until it exits or ctx is
// cancelled. ffmpeg's stderr is discarded.
func RunFFmpeg(ctx context.Context, c FFmpegConfig, log *slog.Logger, publish func([]byte)) error {
	cmd := c.Command(ctx)
	cmd.Stderr = io.Discard
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	log.Info("starting frame source", "cmd", cmd.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	readErr := ReadStream(ctx, stdout, NewChunker(c.Format, c.Width, c.Height), publish)
	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	if waitErr != nil && ctx.Err() == nil {
		return fmt.Errorf("ffmpeg exited: %w", waitErr)
	}
	return nil
}
