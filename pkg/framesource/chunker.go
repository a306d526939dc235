package framesource

import "bytes"

// Chunker splits a byte stream into frames.
type Chunker interface {
	// Write consumes p and returns every frame it completed.
	Write(p []byte) [][]byte
	// Buffered is the number of bytes held back for the next frame.
	Buffered() int
}

// FixedChunker emits frames of exactly Size bytes, as raw formats have.
type FixedChunker struct {
	Size int
	buf  []byte
}

func (c *FixedChunker) Write(p []byte) [][]byte {
	c.buf = append(c.buf, p...)
	var frames [][]byte
	for c.Size > 0 && len(c.buf) >= c.Size {
		frame := make([]byte, c.Size)
		copy(frame, c.buf)
		frames = append(frames, frame)
		c.buf = c.buf[c.Size:]
	}
	if len(c.buf) == 0 {
		c.buf = nil
	}
	return frames
}

func (c *FixedChunker) Buffered() int { return len(c.buf) }

var (
	markerSOI = []byte{0xFF, 0xD8}
	markerEOI = []byte{0xFF, 0xD9}
)

// MJPEGChunker emits JPEG images delimited by SOI and EOI markers. Bytes
// before the start marker are discarded, bytes after the end marker start
// the next frame.
type MJPEGChunker struct {
	buf []byte
	// scanned is how far buf has been searched for an end marker.
	scanned int
}

func (c *MJPEGChunker) Write(p []byte) [][]byte {
	c.buf = append(c.buf, p...)
	var frames [][]byte
	for {
		end := c.findEnd()
		if end < 0 {
			return frames
		}
		// the start is the last SOI ahead of the end marker
		start := bytes.LastIndex(c.buf[:end-2], markerSOI)
		frame := make([]byte, end-start)
		copy(frame, c.buf[start:end])
		frames = append(frames, frame)
		c.buf = append(c.buf[:0], c.buf[end:]...)
		c.scanned = 0
	}
}

// findEnd returns the offset just past the first EOI that follows an SOI, or -1.
func (c *MJPEGChunker) findEnd() int {
	soi := bytes.Index(c.buf, markerSOI)
	if soi < 0 {
		// keep a trailing 0xFF that may be half of a marker
		if n := len(c.buf); n > 0 && c.buf[n-1] == 0xFF {
			c.buf = append(c.buf[:0], 0xFF)
		} else {
			c.buf = c.buf[:0]
		}
		c.scanned = 0
		return -1
	}
	if soi > 0 {
		c.buf = append(c.buf[:0], c.buf[soi:]...)
		c.scanned = 0
	}
	from := max(c.scanned, 2)
	i := bytes.Index(c.buf[from:], markerEOI)
	if i < 0 {
		c.scanned = max(len(c.buf)-1, 2)
		return -1
	}
	return from + i + 2
}

func (c *MJPEGChunker) Buffered() int { return len(c.buf) }
