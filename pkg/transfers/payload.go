package transfers

import (
	"encoding/binary"
	"io"
)

// Payload header bits as defined in UVC spec 1.5, 2.4.3.3.
const (
	HeaderBitFrameID     uint8 = 0b00000001
	HeaderBitEndOfFrame  uint8 = 0b00000010
	HeaderBitPTS         uint8 = 0b00000100
	HeaderBitSCR         uint8 = 0b00001000
	HeaderBitStillImage  uint8 = 0b00100000
	HeaderBitError       uint8 = 0b01000000
	HeaderBitEndOfHeader uint8 = 0b10000000
)

// HeaderLength is the size of a header carrying both PTS and SCR.
const HeaderLength = 12

type Payload struct {
	HeaderInfoBitmask uint8
	PTS               uint32
	SCR               struct {
		SourceTimeClock uint32
		TokenCounter    uint16
	}
	Data []byte
}

func (f *Payload) FrameID() bool {
	return f.HeaderInfoBitmask&HeaderBitFrameID != 0
}

func (f *Payload) EndOfFrame() bool {
	return f.HeaderInfoBitmask&HeaderBitEndOfFrame != 0
}

func (f *Payload) HasPTS() bool {
	return f.HeaderInfoBitmask&HeaderBitPTS != 0
}

func (f *Payload) HasSCR() bool {
	return f.HeaderInfoBitmask&HeaderBitSCR != 0
}

func (f *Payload) PayloadSpecificBit() bool {
	return f.HeaderInfoBitmask&0b00010000 != 0
}

func (f *Payload) StillImage() bool {
	return f.HeaderInfoBitmask&HeaderBitStillImage != 0
}

func (f *Payload) Error() bool {
	return f.HeaderInfoBitmask&HeaderBitError != 0
}

func (f *Payload) EndOfHeader() bool {
	return f.HeaderInfoBitmask&HeaderBitEndOfHeader != 0
}

func (f *Payload) headerLength() int {
	n := 2
	if f.HasPTS() {
		n += 4
	}
	if f.HasSCR() {
		n += 6
	}
	return n
}

// Len is the header length plus the data length.
func (f *Payload) Len() int {
	return f.headerLength() + len(f.Data)
}

// AppendTo appends the header, sized by the PTS and SCR bits, followed by the data.
func (f *Payload) AppendTo(buf []byte) []byte {
	buf = append(buf, byte(f.headerLength()), f.HeaderInfoBitmask)
	if f.HasPTS() {
		buf = binary.LittleEndian.AppendUint32(buf, f.PTS)
	}
	if f.HasSCR() {
		buf = binary.LittleEndian.AppendUint32(buf, f.SCR.SourceTimeClock)
		buf = binary.LittleEndian.AppendUint16(buf, f.SCR.TokenCounter)
	}
	return append(buf, f.Data...)
}

func (f *Payload) MarshalBinary() ([]byte, error) {
	return f.AppendTo(make([]byte, 0, f.Len())), nil
}

func (f *Payload) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	f.HeaderInfoBitmask = buf[1]
	if len(buf) < f.headerLength() {
		return io.ErrShortBuffer
	}
	offset := 2
	if f.HasPTS() {
		f.PTS = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
	}
	if f.HasSCR() {
		f.SCR.SourceTimeClock = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
		f.SCR.TokenCounter = binary.LittleEndian.Uint16(buf[offset : offset+2])
		offset += 2
	}
	f.Data = buf[offset:]
	return nil
}
