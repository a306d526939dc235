// This file implements the descriptors as defined in the UVC spec 1.5, section 3.7.
package descriptors

import (
	"encoding/binary"
	"fmt"
)

type VideoControlInterfaceDescriptorSubtype byte

const (
	VideoControlInterfaceDescriptorSubtypeUndefined      VideoControlInterfaceDescriptorSubtype = 0x00
	VideoControlInterfaceDescriptorSubtypeHeader         VideoControlInterfaceDescriptorSubtype = 0x01
	VideoControlInterfaceDescriptorSubtypeInputTerminal  VideoControlInterfaceDescriptorSubtype = 0x02
	VideoControlInterfaceDescriptorSubtypeOutputTerminal VideoControlInterfaceDescriptorSubtype = 0x03
	VideoControlInterfaceDescriptorSubtypeSelectorUnit   VideoControlInterfaceDescriptorSubtype = 0x04
	VideoControlInterfaceDescriptorSubtypeProcessingUnit VideoControlInterfaceDescriptorSubtype = 0x05
	VideoControlInterfaceDescriptorSubtypeExtensionUnit  VideoControlInterfaceDescriptorSubtype = 0x06
	VideoControlInterfaceDescriptorSubtypeEncodingUnit   VideoControlInterfaceDescriptorSubtype = 0x07
)

type TerminalType uint16

const (
	TerminalTypeVendorSpecific TerminalType = 0x0100
	TerminalTypeStreaming      TerminalType = 0x0101
)

type InputTerminalType uint16

const (
	InputTerminalTypeVendorSpecific      InputTerminalType = 0x0200
	InputTerminalTypeCamera              InputTerminalType = 0x0201
	InputTerminalTypeMediaTransportInput InputTerminalType = 0x0202
)

// HeaderDescriptor as defined in UVC spec 1.5, 3.7.2.1
type HeaderDescriptor struct {
	UVC                            BinaryCodedDecimal
	TotalLength                    uint16
	ClockFrequency                 uint32
	VideoStreamingInterfaceIndexes []uint8
}

func (hd *HeaderDescriptor) Length() uint8 { return uint8(12 + len(hd.VideoStreamingInterfaceIndexes)) }

func (hd *HeaderDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (hd *HeaderDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(hd)
	buf = append(buf, byte(VideoControlInterfaceDescriptorSubtypeHeader))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(hd.UVC))
	buf = binary.LittleEndian.AppendUint16(buf, hd.TotalLength)
	buf = binary.LittleEndian.AppendUint32(buf, hd.ClockFrequency)
	buf = append(buf, uint8(len(hd.VideoStreamingInterfaceIndexes)))
	return append(buf, hd.VideoStreamingInterfaceIndexes...), nil
}

// CameraTerminalDescriptor as defined in UVC spec 1.5, 3.7.2.3
type CameraTerminalDescriptor struct {
	TerminalID              uint8
	AssociatedTerminalID    uint8
	DescriptionIndex        uint8
	ObjectiveFocalLengthMin uint16
	ObjectiveFocalLengthMax uint16
	OcularFocalLength       uint16
	ControlsBitmask         uint32 // three bytes on the wire
}

func (ctd *CameraTerminalDescriptor) Length() uint8 { return 0x12 }

func (ctd *CameraTerminalDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (ctd *CameraTerminalDescriptor) MarshalBinary() ([]byte, error) {
	if ctd.ControlsBitmask > 0xFFFFFF {
		return nil, fmt.Errorf("%w: camera controls %#x exceed three bytes", ErrInvalidDescriptor, ctd.ControlsBitmask)
	}
	buf := header(ctd)
	buf = append(buf, byte(VideoControlInterfaceDescriptorSubtypeInputTerminal), ctd.TerminalID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(InputTerminalTypeCamera))
	buf = append(buf, ctd.AssociatedTerminalID, ctd.DescriptionIndex)
	buf = binary.LittleEndian.AppendUint16(buf, ctd.ObjectiveFocalLengthMin)
	buf = binary.LittleEndian.AppendUint16(buf, ctd.ObjectiveFocalLengthMax)
	buf = binary.LittleEndian.AppendUint16(buf, ctd.OcularFocalLength)
	buf = append(buf, 3)
	return append(buf, byte(ctd.ControlsBitmask), byte(ctd.ControlsBitmask>>8), byte(ctd.ControlsBitmask>>16)), nil
}

// OutputTerminalDescriptor as defined in UVC spec 1.5, 3.7.2.2
type OutputTerminalDescriptor struct {
	TerminalID           uint8
	TerminalType         TerminalType
	AssociatedTerminalID uint8
	SourceID             uint8
	DescriptionIndex     uint8
}

func (otd *OutputTerminalDescriptor) Length() uint8 { return 0x09 }

func (otd *OutputTerminalDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (otd *OutputTerminalDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(otd)
	buf = append(buf, byte(VideoControlInterfaceDescriptorSubtypeOutputTerminal), otd.TerminalID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(otd.TerminalType))
	return append(buf, otd.AssociatedTerminalID, otd.SourceID, otd.DescriptionIndex), nil
}

// ProcessingUnitDescriptor in the UVC 1.0 layout, which lacks the trailing
// bmVideoStandards byte added in UVC 1.1.
type ProcessingUnitDescriptor struct {
	UnitID           uint8
	SourceID         uint8
	MaxMultiplier    uint16
	ControlsBitmask  uint32 // three bytes on the wire
	DescriptionIndex uint8
}

func (pud *ProcessingUnitDescriptor) Length() uint8 { return 0x0C }

func (pud *ProcessingUnitDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (pud *ProcessingUnitDescriptor) MarshalBinary() ([]byte, error) {
	if pud.ControlsBitmask > 0xFFFFFF {
		return nil, fmt.Errorf("%w: processing controls %#x exceed three bytes", ErrInvalidDescriptor, pud.ControlsBitmask)
	}
	buf := header(pud)
	buf = append(buf, byte(VideoControlInterfaceDescriptorSubtypeProcessingUnit), pud.UnitID, pud.SourceID)
	buf = binary.LittleEndian.AppendUint16(buf, pud.MaxMultiplier)
	buf = append(buf, 3, byte(pud.ControlsBitmask), byte(pud.ControlsBitmask>>8), byte(pud.ControlsBitmask>>16))
	return append(buf, pud.DescriptionIndex), nil
}
