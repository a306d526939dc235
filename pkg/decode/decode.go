package decode

import (
	"errors"
	"fmt"
	"image"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

var (
	ErrEAGAIN     = errors.New("EAGAIN")
	ErrShortFrame = errors.New("frame shorter than its pixel format requires")
)

type VideoDecoder interface {
	ReadFrame() (image.Image, error)
	Write(pkt []byte) (int, error)
	Close() error
}

// NewDecoder returns a decoder for whole frames of the given pixel format.
func NewDecoder(pf formats.PixelFormat, width, height int) (VideoDecoder, error) {
	if pf.Compressed() {
		return NewMJPEGDecoder()
	}
	switch pf {
	case formats.PixelFormatYUYV422, formats.PixelFormatNV12, formats.PixelFormatNV21, formats.PixelFormatYV12:
		return NewUncompressedDecoder(pf, width, height)
	}
	return nil, fmt.Errorf("%w: %q", formats.ErrUnknownPixelFormat, string(pf))
}

// Frame decodes a single frame.
func Frame(pf formats.PixelFormat, width, height int, frame []byte) (image.Image, error) {
	dec, err := NewDecoder(pf, width, height)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	if _, err := dec.Write(frame); err != nil {
		return nil, err
	}
	return dec.ReadFrame()
}
