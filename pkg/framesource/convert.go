package framesource

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

// JPEGQuality is used when encoding MJPEG frames.
const JPEGQuality = 85

// Scale resizes img to width x height.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Encode scales img and lays it out as a frame of the given pixel format.
func Encode(img image.Image, pf formats.PixelFormat, width, height int) ([]byte, error) {
	if width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("frame size %dx%d must be even", width, height)
	}
	rgba := Scale(img, width, height)
	if pf.Compressed() {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	yuv := func(x, y int) (uint8, uint8, uint8) {
		i := rgba.PixOffset(x, y)
		return color.RGBToYCbCr(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
	}
	// chroma averaged over a 2x2 block
	block := func(x, y int) (uint8, uint8) {
		var cb, cr int
		for _, p := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
			_, u, v := yuv(x+p[0], y+p[1])
			cb += int(u)
			cr += int(v)
		}
		return uint8(cb / 4), uint8(cr / 4)
	}

	out := make([]byte, pf.FrameLength(width, height))
	switch pf {
	case formats.PixelFormatYUYV422:
		i := 0
		for y := 0; y < height; y++ {
			for x := 0; x < width; x += 2 {
				y0, u0, v0 := yuv(x, y)
				y1, u1, v1 := yuv(x+1, y)
				out[i] = y0
				out[i+1] = uint8((int(u0) + int(u1)) / 2)
				out[i+2] = y1
				out[i+3] = uint8((int(v0) + int(v1)) / 2)
				i += 4
			}
		}
	case formats.PixelFormatNV12, formats.PixelFormatNV21, formats.PixelFormatYV12:
		luma := width * height
		quarter := luma / 4
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out[y*width+x], _, _ = yuv(x, y)
			}
		}
		for y := 0; y < height; y += 2 {
			for x := 0; x < width; x += 2 {
				cb, cr := block(x, y)
				j := (y/2)*(width/2) + x/2
				switch pf {
				case formats.PixelFormatNV12:
					out[luma+2*j], out[luma+2*j+1] = cb, cr
				case formats.PixelFormatNV21:
					out[luma+2*j], out[luma+2*j+1] = cr, cb
				case formats.PixelFormatYV12:
					out[luma+j], out[luma+quarter+j] = cr, cb
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", formats.ErrUnknownPixelFormat, string(pf))
	}
	return out, nil
}
