// Package usbip implements the device side of the USB/IP protocol as spoken by
// the Linux vhci-hcd driver and the usbip userspace tools.
package usbip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrProtocolViolation = errors.New("usbip: protocol violation")
	ErrUnknownCommand    = errors.New("usbip: unknown command")
	ErrShortBuffer       = errors.New("usbip: short buffer")
)

// Version is the protocol version sent in OP_REP_IMPORT.
const Version uint16 = 0x0111

// OpCode identifies a handshake operation.
type OpCode uint16

const (
	OpReqImport OpCode = 0x8003
	OpRepImport OpCode = 0x0003
)

func (c OpCode) String() string {
	switch c {
	case OpReqImport:
		return "OP_REQ_IMPORT"
	case OpRepImport:
		return "OP_REP_IMPORT"
	}
	return fmt.Sprintf("OP_%#04x", uint16(c))
}

const (
	BusIDLength       = 32
	pathLength        = 256
	opHeaderLength    = 8
	ImportRequestSize = opHeaderLength + BusIDLength
	ImportReplySize   = opHeaderLength + pathLength + BusIDLength + 24
)

// Speed as reported in the device record, matching enum usb_device_speed.
type Speed uint32

const (
	SpeedUnknown Speed = iota
	SpeedLow
	SpeedFull
	SpeedHigh
	SpeedWireless
	SpeedSuper
)

// DeviceInfo is the subset of the device descriptor echoed in the import reply.
type DeviceInfo struct {
	VendorID           uint16
	ProductID          uint16
	BCDDevice          uint16
	DeviceClass        uint8
	DeviceSubClass     uint8
	DeviceProtocol     uint8
	ConfigurationValue uint8
	NumConfigurations  uint8
	NumInterfaces      uint8
}

// ImportRequest is OP_REQ_IMPORT.
type ImportRequest struct {
	Version uint16
	BusID   string
}

func (*ImportRequest) message() {}

func (r *ImportRequest) UnmarshalBinary(buf []byte) error {
	if len(buf) < ImportRequestSize {
		return ErrShortBuffer
	}
	if code := OpCode(binary.BigEndian.Uint16(buf[2:4])); code != OpReqImport {
		return fmt.Errorf("%w: %s during handshake", ErrProtocolViolation, code)
	}
	r.Version = binary.BigEndian.Uint16(buf[0:2])
	id := buf[opHeaderLength:ImportRequestSize]
	if i := bytes.IndexByte(id, 0); i >= 0 {
		id = id[:i]
	}
	r.BusID = string(id)
	return nil
}

func (r *ImportRequest) MarshalBinary() ([]byte, error) {
	if len(r.BusID) > BusIDLength {
		return nil, fmt.Errorf("%w: bus id %q longer than %d bytes", ErrProtocolViolation, r.BusID, BusIDLength)
	}
	buf := make([]byte, ImportRequestSize)
	binary.BigEndian.PutUint16(buf[0:2], r.Version)
	binary.BigEndian.PutUint16(buf[2:4], uint16(OpReqImport))
	copy(buf[opHeaderLength:], r.BusID)
	return buf, nil
}

// ImportReply is OP_REP_IMPORT with an OK status and the exported device record.
type ImportReply struct {
	BusID string
	Info  DeviceInfo
}

var nonDigits = regexp.MustCompile(`[^0-9]+`)

// SysPath is the sysfs path reported for a bus id, e.g. 1-1 becomes
// /sys/devices/pci0000:00/0000:00:11.0/usb1/1-1.
func SysPath(busID string) string {
	return "/sys/devices/pci0000:00/0000:00:" + nonDigits.ReplaceAllString(busID, "") + ".0/usb1/" + busID
}

func (r *ImportReply) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ImportReplySize)
	binary.BigEndian.PutUint16(buf[0:2], Version)
	binary.BigEndian.PutUint16(buf[2:4], uint16(OpRepImport))
	// status 0
	i := opHeaderLength
	path := SysPath(r.BusID)
	if len(path) > pathLength || len(r.BusID) > BusIDLength {
		return nil, fmt.Errorf("%w: bus id %q too long", ErrProtocolViolation, r.BusID)
	}
	copy(buf[i:], path)
	i += pathLength
	copy(buf[i:], r.BusID)
	i += BusIDLength
	binary.BigEndian.PutUint32(buf[i:], 1) // busnum
	binary.BigEndian.PutUint32(buf[i+4:], 2) // devnum
	binary.BigEndian.PutUint32(buf[i+8:], uint32(SpeedHigh))
	i += 12
	binary.BigEndian.PutUint16(buf[i:], r.Info.VendorID)
	binary.BigEndian.PutUint16(buf[i+2:], r.Info.ProductID)
	binary.BigEndian.PutUint16(buf[i+4:], r.Info.BCDDevice)
	i += 6
	buf[i] = r.Info.DeviceClass
	buf[i+1] = r.Info.DeviceSubClass
	buf[i+2] = r.Info.DeviceProtocol
	buf[i+3] = r.Info.ConfigurationValue
	buf[i+4] = r.Info.NumConfigurations
	buf[i+5] = r.Info.NumInterfaces
	return buf, nil
}
