package decode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

var jpegSOI = []byte{0xFF, 0xD8}

// MJPEGDecoder decodes one JPEG image per Write. Only the most recent image
// is kept; a preview never needs the ones it skipped.
type MJPEGDecoder struct {
	latest  image.Image
	decoded int
}

func NewMJPEGDecoder() (*MJPEGDecoder, error) {
	return &MJPEGDecoder{}, nil
}

func (d *MJPEGDecoder) Write(frame []byte) (int, error) {
	if !bytes.HasPrefix(frame, jpegSOI) {
		return 0, fmt.Errorf("mjpeg frame of %d bytes does not start with SOI", len(frame))
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return 0, fmt.Errorf("mjpeg frame %d: %w", d.decoded, err)
	}
	d.latest = img
	d.decoded++
	return len(frame), nil
}

func (d *MJPEGDecoder) ReadFrame() (image.Image, error) {
	img := d.latest
	if img == nil {
		return nil, ErrEAGAIN
	}
	d.latest = nil
	return img, nil
}

func (d *MJPEGDecoder) Close() error {
	d.latest = nil
	return nil
}
