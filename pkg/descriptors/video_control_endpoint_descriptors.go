// This file implements the descriptors as defined in the UVC spec 1.5, section 3.8.
package descriptors

import "encoding/binary"

type VideoControlEndpointDescriptorSubtype byte

const (
	VideoControlEndpointDescriptorSubtypeUndefined VideoControlEndpointDescriptorSubtype = 0x00
	VideoControlEndpointDescriptorSubtypeGeneral   VideoControlEndpointDescriptorSubtype = 0x01
	VideoControlEndpointDescriptorSubtypeEndpoint  VideoControlEndpointDescriptorSubtype = 0x02
	VideoControlEndpointDescriptorSubtypeInterrupt VideoControlEndpointDescriptorSubtype = 0x03
)

// ClassSpecificInterruptEndpointDescriptor as defined in UVC spec 1.5, 3.8.2.2
type ClassSpecificInterruptEndpointDescriptor struct {
	MaxTransferSize uint16
}

func (csie *ClassSpecificInterruptEndpointDescriptor) Length() uint8 { return 0x05 }

func (csie *ClassSpecificInterruptEndpointDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificEndpoint
}

func (csie *ClassSpecificInterruptEndpointDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(csie)
	buf = append(buf, byte(VideoControlEndpointDescriptorSubtypeInterrupt))
	return binary.LittleEndian.AppendUint16(buf, csie.MaxTransferSize), nil
}
