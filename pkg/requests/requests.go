package requests

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrShortSetup = errors.New("setup packet shorter than 8 bytes")

// SetupLength is the size of a control transfer setup stage.
const SetupLength = 8

type RequestType uint8

const (
	RequestTypeVideoInterfaceSetRequest RequestType = 0b00100001
	RequestTypeDataEndpointSetRequest   RequestType = 0b00100010
	RequestTypeVideoInterfaceGetRequest RequestType = 0b10100001
	RequestTypeDataEndpointGetRequest   RequestType = 0b10100010
)

// bmRequestType fields as defined in USB 2.0 spec, table 9-2.
const (
	DirectionMask RequestType = 0b10000000
	TypeMask      RequestType = 0b01100000
	RecipientMask RequestType = 0b00011111
)

type Kind uint8

const (
	KindStandard Kind = 0
	KindClass    Kind = 1
	KindVendor   Kind = 2
	KindReserved Kind = 3
)

type Recipient uint8

const (
	RecipientDevice    Recipient = 0
	RecipientInterface Recipient = 1
	RecipientEndpoint  Recipient = 2
	RecipientOther     Recipient = 3
)

func (rt RequestType) In() bool { return rt&DirectionMask != 0 }

func (rt RequestType) Kind() Kind { return Kind((rt & TypeMask) >> 5) }

func (rt RequestType) Recipient() Recipient { return Recipient(rt & RecipientMask) }

// StandardRequest as defined in USB 2.0 spec, table 9-4.
type StandardRequest uint8

const (
	StandardRequestGetStatus        StandardRequest = 0x00
	StandardRequestClearFeature     StandardRequest = 0x01
	StandardRequestSetFeature       StandardRequest = 0x03
	StandardRequestSetAddress       StandardRequest = 0x05
	StandardRequestGetDescriptor    StandardRequest = 0x06
	StandardRequestSetDescriptor    StandardRequest = 0x07
	StandardRequestGetConfiguration StandardRequest = 0x08
	StandardRequestSetConfiguration StandardRequest = 0x09
	StandardRequestGetInterface     StandardRequest = 0x0A
	StandardRequestSetInterface     StandardRequest = 0x0B
	StandardRequestSynchFrame       StandardRequest = 0x0C
)

// RequestCode as defined in UVC spec 1.5, A.8.
type RequestCode uint8

const (
	RequestCodeUndefined RequestCode = 0x00
	RequestCodeSetCur    RequestCode = 0x01
	RequestCodeSetCurAll RequestCode = 0x11
	RequestCodeGetCur    RequestCode = 0x81
	RequestCodeGetMin    RequestCode = 0x82
	RequestCodeGetMax    RequestCode = 0x83
	RequestCodeGetRes    RequestCode = 0x84
	RequestCodeGetLen    RequestCode = 0x85
	RequestCodeGetInfo   RequestCode = 0x86
	RequestCodeGetDef    RequestCode = 0x87
	RequestCodeGetCurAll RequestCode = 0x91
	RequestCodeGetMinAll RequestCode = 0x92
	RequestCodeGetMaxAll RequestCode = 0x93
	RequestCodeGetResAll RequestCode = 0x94
	RequestCodeGetDefAll RequestCode = 0x97
)

func (rc RequestCode) String() string {
	switch rc {
	case RequestCodeSetCur:
		return "SET_CUR"
	case RequestCodeGetCur:
		return "GET_CUR"
	case RequestCodeGetMin:
		return "GET_MIN"
	case RequestCodeGetMax:
		return "GET_MAX"
	case RequestCodeGetRes:
		return "GET_RES"
	case RequestCodeGetLen:
		return "GET_LEN"
	case RequestCodeGetInfo:
		return "GET_INFO"
	case RequestCodeGetDef:
		return "GET_DEF"
	}
	return fmt.Sprintf("0x%02x", uint8(rc))
}

// Setup is the eight byte setup stage of a control transfer.
type Setup struct {
	RequestType RequestType
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

func (s *Setup) UnmarshalBinary(buf []byte) error {
	if len(buf) < SetupLength {
		return ErrShortSetup
	}
	s.RequestType = RequestType(buf[0])
	s.Request = buf[1]
	s.Value = binary.LittleEndian.Uint16(buf[2:4])
	s.Index = binary.LittleEndian.Uint16(buf[4:6])
	s.Length = binary.LittleEndian.Uint16(buf[6:8])
	return nil
}

func (s *Setup) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SetupLength)
	buf[0] = byte(s.RequestType)
	buf[1] = s.Request
	binary.LittleEndian.PutUint16(buf[2:4], s.Value)
	binary.LittleEndian.PutUint16(buf[4:6], s.Index)
	binary.LittleEndian.PutUint16(buf[6:8], s.Length)
	return buf, nil
}

// DescriptorType is the high byte of wValue in GET_DESCRIPTOR.
func (s *Setup) DescriptorType() uint8 { return uint8(s.Value >> 8) }

// DescriptorIndex is the low byte of wValue in GET_DESCRIPTOR.
func (s *Setup) DescriptorIndex() uint8 { return uint8(s.Value) }

func (s Setup) String() string {
	dir := "OUT"
	if s.RequestType.In() {
		dir = "IN"
	}
	return fmt.Sprintf("%s type=%d recipient=%d request=0x%02x value=0x%04x index=0x%04x length=%d",
		dir, s.RequestType.Kind(), s.RequestType.Recipient(), s.Request, s.Value, s.Index, s.Length)
}
