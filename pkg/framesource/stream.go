package framesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

// ReadBufferSize matches the chunk size pipes usually deliver.
const ReadBufferSize = 64 * 1024

// NewChunker picks the chunker for a pixel format.
func NewChunker(pf formats.PixelFormat, width, height int) Chunker {
	if pf.Compressed() {
		return &MJPEGChunker{}
	}
	return &FixedChunker{Size: pf.FrameLength(width, height)}
}

// ReadStream pumps r through c and publishes every completed frame until r
// is exhausted or ctx is cancelled. A clean end of stream returns nil.
func ReadStream(ctx context.Context, r io.Reader, c Chunker, publish func([]byte)) error {
	buf := make([]byte, ReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			for _, f := range c.Write(buf[:n]) {
				publish(f)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var pipeInput = regexp.MustCompile(`^pipe:([0-9]+)$`)

// PipeFD reports the file descriptor named by a pipe:N input.
func PipeFD(input string) (int, bool) {
	m := pipeInput.FindStringSubmatch(input)
	if m == nil {
		return 0, false
	}
	fd, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return fd, true
}

// OpenPipe opens the file descriptor of a pipe:N input for reading.
func OpenPipe(input string) (*os.File, error) {
	fd, ok := PipeFD(input)
	if !ok {
		return nil, fmt.Errorf("not a pipe input: %q", input)
	}
	if fd == 0 {
		return os.Stdin, nil
	}
	f := os.NewFile(uintptr(fd), input)
	if f == nil {
		return nil, fmt.Errorf("file descriptor %d is not open", fd)
	}
	return f, nil
}
