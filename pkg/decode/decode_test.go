package decode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

func TestFrame_Uncompressed(t *testing.T) {
	// a 2x2 frame whose luma is 10, 20, 30, 40 and chroma is 100, 200
	tests := []struct {
		format formats.PixelFormat
		frame  []byte
		cb, cr uint8
	}{
		{formats.PixelFormatYUYV422, []byte{10, 100, 20, 200, 30, 101, 40, 201}, 100, 200},
		{formats.PixelFormatNV12, []byte{10, 20, 30, 40, 100, 200}, 100, 200},
		{formats.PixelFormatNV21, []byte{10, 20, 30, 40, 200, 100}, 100, 200},
		{formats.PixelFormatYV12, []byte{10, 20, 30, 40, 200, 100}, 100, 200},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			img, err := Frame(tt.format, 2, 2, tt.frame)
			if err != nil {
				t.Fatalf("Frame failed: %v", err)
			}
			ycc, ok := img.(*image.YCbCr)
			if !ok {
				t.Fatalf("image type = %T, want *image.YCbCr", img)
			}
			if !bytes.Equal(ycc.Y, []byte{10, 20, 30, 40}) {
				t.Errorf("Y = %v, want [10 20 30 40]", ycc.Y)
			}
			if ycc.Cb[0] != tt.cb || ycc.Cr[0] != tt.cr {
				t.Errorf("Cb, Cr = %d, %d, want %d, %d", ycc.Cb[0], ycc.Cr[0], tt.cb, tt.cr)
			}
		})
	}
}

func TestFrame_Short(t *testing.T) {
	_, err := Frame(formats.PixelFormatYUYV422, 4, 2, make([]byte, 15))
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("Frame() = %v, want ErrShortFrame", err)
	}
}

func TestNewDecoder_Unknown(t *testing.T) {
	_, err := NewDecoder("rgb24", 2, 2)
	if !errors.Is(err, formats.ErrUnknownPixelFormat) {
		t.Errorf("NewDecoder() = %v, want ErrUnknownPixelFormat", err)
	}
}

func TestFrame_MJPEG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	img, err := Frame(formats.PixelFormatMJPEG, 16, 16, buf.Bytes())
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Errorf("bounds = %v, want 16x16", img.Bounds())
	}
	g := color.GrayModel.Convert(img.At(8, 8)).(color.Gray)
	if g.Y < 120 || g.Y > 136 {
		t.Errorf("center = %d, want about 128", g.Y)
	}
}

func TestMJPEGDecoder_Empty(t *testing.T) {
	dec, _ := NewMJPEGDecoder()
	if _, err := dec.ReadFrame(); !errors.Is(err, ErrEAGAIN) {
		t.Errorf("ReadFrame() = %v, want ErrEAGAIN", err)
	}
	if _, err := dec.Write([]byte("not a jpeg")); err == nil {
		t.Error("Write(garbage) = nil, want error")
	}
}

func TestMJPEGDecoder_KeepsLatest(t *testing.T) {
	encode := func(w, h int) []byte {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
			t.Fatalf("jpeg.Encode failed: %v", err)
		}
		return buf.Bytes()
	}
	dec, _ := NewMJPEGDecoder()
	for _, f := range [][]byte{encode(8, 8), encode(16, 8)} {
		if _, err := dec.Write(f); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	img, err := dec.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("width = %d, want 16 from the second frame", img.Bounds().Dx())
	}
	if _, err := dec.ReadFrame(); !errors.Is(err, ErrEAGAIN) {
		t.Errorf("second ReadFrame() = %v, want ErrEAGAIN", err)
	}
}
