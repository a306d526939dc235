package formats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrUnknownPixelFormat = errors.New("unknown pixel format")

type CompressionFormat [16]byte

// GUIDs in canonical byte order; the descriptor encoder swaps them into the
// mixed-endian layout used on the wire.
var (
	CompressionFormatYUY2 = CompressionFormat(uuid.MustParse("32595559-0000-0010-8000-00AA00389B71"))
	CompressionFormatNV12 = CompressionFormat(uuid.MustParse("3231564E-0000-0010-8000-00AA00389B71"))
	CompressionFormatYV12 = CompressionFormat(uuid.MustParse("32315659-0000-0010-8000-00AA00389B71"))
	CompressionFormatI420 = CompressionFormat(uuid.MustParse("30323449-0000-0010-8000-00AA00389B71"))
)

func (cf CompressionFormat) String() string {
	return uuid.UUID(cf).String()
}

// FourCC returns the four character code embedded in the first GUID field.
func (cf CompressionFormat) FourCC() [4]byte {
	return [4]byte{cf[3], cf[2], cf[1], cf[0]}
}

// PixelFormat is one of the frame layouts the virtual camera can advertise.
type PixelFormat string

const (
	PixelFormatYUYV422 PixelFormat = "yuyv422"
	PixelFormatNV12    PixelFormat = "nv12"
	PixelFormatYV12    PixelFormat = "yv12"
	PixelFormatNV21    PixelFormat = "nv21"
	PixelFormatMJPEG   PixelFormat = "mjpeg"
)

var PixelFormats = []PixelFormat{PixelFormatYUYV422, PixelFormatNV12, PixelFormatYV12, PixelFormatNV21, PixelFormatMJPEG}

func ParsePixelFormat(s string) (PixelFormat, error) {
	pf := PixelFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range PixelFormats {
		if f == pf {
			return pf, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPixelFormat, s)
}

func (pf PixelFormat) Compressed() bool {
	return pf == PixelFormatMJPEG
}

// GUID returns the VS_FORMAT_UNCOMPRESSED guidFormat. nv21 frames are
// advertised with the I420 GUID.
func (pf PixelFormat) GUID() (CompressionFormat, error) {
	switch pf {
	case PixelFormatYUYV422:
		return CompressionFormatYUY2, nil
	case PixelFormatNV12:
		return CompressionFormatNV12, nil
	case PixelFormatYV12:
		return CompressionFormatYV12, nil
	case PixelFormatNV21:
		return CompressionFormatI420, nil
	}
	return CompressionFormat{}, fmt.Errorf("%w: %q has no GUID", ErrUnknownPixelFormat, string(pf))
}

// FrameLength returns the size in bytes of one frame. For MJPEG this is the
// nominal size used for descriptor bandwidth fields, not an exact length.
func (pf PixelFormat) FrameLength(width, height int) int {
	switch pf {
	case PixelFormatYUYV422:
		return width * height * 2
	case PixelFormatNV12, PixelFormatYV12, PixelFormatNV21:
		return width * height * 12 / 8
	}
	return width * height
}

// FFmpegPixelFormat is the -pix_fmt name ffmpeg understands for pf.
func (pf PixelFormat) FFmpegPixelFormat() string {
	if pf == PixelFormatYV12 {
		// ffmpeg has no yv12; yuv420p with the chroma planes swapped is equivalent
		return "yuv420p"
	}
	return string(pf)
}
