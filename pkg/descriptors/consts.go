package descriptors

type DescriptorType byte

// Standard descriptor types as defined in USB 2.0, table 9-5.
const (
	DescriptorTypeDevice                  DescriptorType = 0x01
	DescriptorTypeConfiguration           DescriptorType = 0x02
	DescriptorTypeString                  DescriptorType = 0x03
	DescriptorTypeInterface               DescriptorType = 0x04
	DescriptorTypeEndpoint                DescriptorType = 0x05
	DescriptorTypeDeviceQualifier         DescriptorType = 0x06
	DescriptorTypeOtherSpeedConfiguration DescriptorType = 0x07
	DescriptorTypeInterfacePower          DescriptorType = 0x08
	DescriptorTypeInterfaceAssociation    DescriptorType = 0x0B
)

// Class specific descriptor types as defined in UVC spec 1.5, A.4.
const (
	DescriptorTypeClassSpecificUndefined     DescriptorType = 0x20
	DescriptorTypeClassSpecificDevice        DescriptorType = 0x21
	DescriptorTypeClassSpecificConfiguration DescriptorType = 0x22
	DescriptorTypeClassSpecificString        DescriptorType = 0x23
	DescriptorTypeClassSpecificInterface     DescriptorType = 0x24
	DescriptorTypeClassSpecificEndpoint      DescriptorType = 0x25
)

type ClassCode byte

const (
	ClassCodeVideo         ClassCode = 0x0E
	ClassCodeMiscellaneous ClassCode = 0xEF
)

type SubclassCode byte

const (
	SubclassCodeUndefined                SubclassCode = 0x00
	SubclassCodeVideoControl             SubclassCode = 0x01
	SubclassCodeVideoStreaming           SubclassCode = 0x02
	SubclassCodeVideoInterfaceCollection SubclassCode = 0x03

	// used with ClassCodeMiscellaneous
	SubclassCodeCommon SubclassCode = 0x02
)

type ProtocolCode byte

const (
	ProtocolCodeUndefined ProtocolCode = 0x00
	ProtocolCode15        ProtocolCode = 0x01

	// used with ClassCodeMiscellaneous
	ProtocolCodeInterfaceAssociation ProtocolCode = 0x01
)

type EndpointTransferType byte

const (
	EndpointTransferTypeControl     EndpointTransferType = 0b00
	EndpointTransferTypeIsochronous EndpointTransferType = 0b01
	EndpointTransferTypeBulk        EndpointTransferType = 0b10
	EndpointTransferTypeInterrupt   EndpointTransferType = 0b11

	// asynchronous synchronization, bits 3..2
	EndpointSyncAsynchronous byte = 0b0100
)
