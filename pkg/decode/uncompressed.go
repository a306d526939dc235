package decode

import (
	"fmt"
	"image"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

type UncompressedDecoder struct {
	images        []image.Image
	format        formats.PixelFormat
	width, height int
}

func NewUncompressedDecoder(pf formats.PixelFormat, width, height int) (*UncompressedDecoder, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	return &UncompressedDecoder{format: pf, width: width, height: height}, nil
}

func (d *UncompressedDecoder) ReadFrame() (image.Image, error) {
	if len(d.images) == 0 {
		return nil, ErrEAGAIN
	}
	img := d.images[0]
	d.images = d.images[1:]
	return img, nil
}

func (d *UncompressedDecoder) Write(pkt []byte) (int, error) {
	if want := d.format.FrameLength(d.width, d.height); len(pkt) < want {
		return 0, fmt.Errorf("%w: %s %dx%d has %d bytes, want %d", ErrShortFrame, d.format, d.width, d.height, len(pkt), want)
	}
	w, h := d.width, d.height
	rect := image.Rect(0, 0, w, h)
	var img *image.YCbCr
	switch d.format {
	case formats.PixelFormatYUYV422:
		img = image.NewYCbCr(rect, image.YCbCrSubsampleRatio422)
		// Y0 U Y1 V
		for i := 0; i < w*h/2; i++ {
			img.Y[2*i] = pkt[4*i]
			img.Cb[i] = pkt[4*i+1]
			img.Y[2*i+1] = pkt[4*i+2]
			img.Cr[i] = pkt[4*i+3]
		}
	case formats.PixelFormatNV12, formats.PixelFormatNV21:
		img = image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		copy(img.Y, pkt[:w*h])
		uv := pkt[w*h:]
		cb, cr := img.Cb, img.Cr
		if d.format == formats.PixelFormatNV21 {
			cb, cr = cr, cb
		}
		for i := 0; i < w*h/4; i++ {
			cb[i] = uv[2*i]
			cr[i] = uv[2*i+1]
		}
	case formats.PixelFormatYV12:
		img = image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		copy(img.Y, pkt[:w*h])
		copy(img.Cr, pkt[w*h:w*h*5/4])
		copy(img.Cb, pkt[w*h*5/4:w*h*3/2])
	default:
		return 0, fmt.Errorf("%w: %q", formats.ErrUnknownPixelFormat, string(d.format))
	}
	d.images = append(d.images, img)
	return len(pkt), nil
}

func (d *UncompressedDecoder) Close() error {
	return nil
}
