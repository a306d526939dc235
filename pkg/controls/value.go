package controls

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Value is one attribute of a control, such as its current or default setting.
type Value interface {
	// Len is the encoded size in bytes.
	Len() int
	// AppendTo appends at most budget bytes of the encoding.
	AppendTo(buf []byte, budget int) []byte
	// Decode returns a copy of the value with buf applied in its own shape.
	Decode(buf []byte) Value
	Clone() Value
	fmt.Stringer
}

// Scalar is a little endian integer of a fixed width.
type Scalar struct {
	Width  int
	Signed bool
	Value  int64
}

func (s Scalar) Len() int { return s.Width }

func (s Scalar) AppendTo(buf []byte, budget int) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(s.Value))
	return append(buf, tmp[:min(s.Width, budget)]...)
}

func (s Scalar) Decode(buf []byte) Value {
	n := min(len(buf), s.Width)
	if n == 0 {
		return s
	}
	var tmp [8]byte
	copy(tmp[:], buf[:n])
	v := binary.LittleEndian.Uint64(tmp[:])
	if s.Signed && tmp[n-1]&0x80 != 0 {
		v |= ^uint64(0) << (8 * n)
	}
	s.Value = int64(v)
	return s
}

func (s Scalar) Clone() Value { return s }

func (s Scalar) String() string { return fmt.Sprintf("%d", s.Value) }

// RawBytes is an opaque byte string, used for GET_INFO bitmaps.
type RawBytes []byte

func (b RawBytes) Len() int { return len(b) }

func (b RawBytes) AppendTo(buf []byte, budget int) []byte {
	return append(buf, b[:min(len(b), budget)]...)
}

func (b RawBytes) Decode(buf []byte) Value {
	return RawBytes(append([]byte(nil), buf...))
}

func (b RawBytes) Clone() Value { return RawBytes(append([]byte(nil), b...)) }

func (b RawBytes) String() string { return fmt.Sprintf("%x", []byte(b)) }

type Field struct {
	Name  string
	Width int
	Value uint64
}

// Record is an ordered list of little endian fields, such as the video probe
// and commit control block.
type Record []Field

func (r Record) Len() int {
	n := 0
	for _, f := range r {
		n += f.Width
	}
	return n
}

// AppendTo stops before the first field that would exceed budget.
func (r Record) AppendTo(buf []byte, budget int) []byte {
	var tmp [8]byte
	for _, f := range r {
		if f.Width > budget {
			break
		}
		binary.LittleEndian.PutUint64(tmp[:], f.Value)
		buf = append(buf, tmp[:f.Width]...)
		budget -= f.Width
	}
	return buf
}

// Decode overwrites fields in order until the next field no longer fits in
// buf; the remaining fields keep their previous values.
func (r Record) Decode(buf []byte) Value {
	out := r.Clone().(Record)
	off := 0
	for i, f := range out {
		if off+f.Width > len(buf) {
			break
		}
		var tmp [8]byte
		copy(tmp[:], buf[off:off+f.Width])
		out[i].Value = binary.LittleEndian.Uint64(tmp[:])
		off += f.Width
	}
	return out
}

func (r Record) Clone() Value { return append(Record(nil), r...) }

func (r Record) String() string {
	parts := make([]string, len(r))
	for i, f := range r {
		parts[i] = fmt.Sprintf("%s=%d", f.Name, f.Value)
	}
	return strings.Join(parts, " ")
}

// Field returns the named field's value.
func (r Record) Field(name string) (uint64, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Encode serializes v into exactly length bytes, zero filling whatever the
// value did not cover.
func Encode(v Value, length int) []byte {
	buf := v.AppendTo(make([]byte, 0, length), length)
	if len(buf) < length {
		buf = append(buf, make([]byte, length-len(buf))...)
	}
	return buf
}
