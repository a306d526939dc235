package descriptors

import (
	"encoding"
	"errors"
	"fmt"
)

var (
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	ErrLengthMismatch    = errors.New("descriptor length mismatch")
)

// Descriptor is a single USB descriptor that serializes to exactly Length() bytes.
type Descriptor interface {
	encoding.BinaryMarshaler
	Length() uint8
	DescriptorType() DescriptorType
}

// Marshal serializes d and checks that the encoded bytes agree with the
// declared bLength and bDescriptorType.
func Marshal(d Descriptor) ([]byte, error) {
	buf, err := d.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(buf) != int(d.Length()) || len(buf) < 2 || buf[0] != d.Length() {
		return nil, fmt.Errorf("%w: %T declares %d bytes, encoded %d", ErrLengthMismatch, d, d.Length(), len(buf))
	}
	if DescriptorType(buf[1]) != d.DescriptorType() {
		return nil, fmt.Errorf("%w: %T type %#02x", ErrInvalidDescriptor, d, buf[1])
	}
	return buf, nil
}

// MarshalAll concatenates the descriptors in order.
func MarshalAll(ds ...Descriptor) ([]byte, error) {
	var out []byte
	for _, d := range ds {
		buf, err := Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	return out, nil
}

func header(d Descriptor) []byte {
	buf := make([]byte, 2, d.Length())
	buf[0] = d.Length()
	buf[1] = byte(d.DescriptorType())
	return buf
}

func copyGUID(dst []byte, src []byte) {
	// copy according to the GUID format defined in UVC spec 1.5, section 2.9.
	dst[0] = src[3]
	dst[1] = src[2]
	dst[2] = src[1]
	dst[3] = src[0]
	dst[4] = src[5]
	dst[5] = src[4]
	dst[6] = src[7]
	dst[7] = src[6]
	copy(dst[8:16], src[8:16])
}
