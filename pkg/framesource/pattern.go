package framesource

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	// registered for LoadImage
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/kevmo314/usbip-uvc/pkg/formats"
)

var colorBars = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// ColorBars draws seven vertical bars with a white marker whose position
// advances with tick, so consecutive frames differ.
func ColorBars(width, height, tick int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bar := max(width/len(colorBars), 1)
	for i, c := range colorBars {
		r := image.Rect(i*bar, 0, (i+1)*bar, height)
		if i == len(colorBars)-1 {
			r.Max.X = width
		}
		draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}
	marker := max(width/32, 2)
	x := (tick * marker / 2) % max(width-marker, 1)
	band := image.Rect(x, height*3/4, x+marker, height)
	draw.Draw(img, band, image.White, image.Point{}, draw.Src)
	return img
}

// LoadImage decodes a PNG or JPEG file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Pattern republishes a generated or still image at a fixed frame rate.
type Pattern struct {
	Format formats.PixelFormat
	Width  int
	Height int
	FPS    int
	// Still replaces the colour bars when set.
	Still image.Image
}

// Frame renders frame number tick.
func (p *Pattern) Frame(tick int) ([]byte, error) {
	img := p.Still
	if img == nil {
		img = ColorBars(p.Width, p.Height, tick)
	}
	return Encode(img, p.Format, p.Width, p.Height)
}

// Run publishes frames until ctx is cancelled. A still image is encoded once.
func (p *Pattern) Run(ctx context.Context, publish func([]byte)) error {
	if p.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %d", p.FPS)
	}
	var still []byte
	if p.Still != nil {
		var err error
		if still, err = p.Frame(0); err != nil {
			return err
		}
	}
	ticker := time.NewTicker(time.Second / time.Duration(p.FPS))
	defer ticker.Stop()
	for tick := 0; ; tick++ {
		frame := still
		if frame == nil {
			var err error
			if frame, err = p.Frame(tick); err != nil {
				return err
			}
		}
		publish(frame)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
