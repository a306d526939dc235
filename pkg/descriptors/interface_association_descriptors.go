// This file implements the descriptors as defined in the UVC spec 1.5, section 3.6.
package descriptors

type InterfaceAssociationDescriptor struct {
	FirstInterface   uint8
	InterfaceCount   uint8
	DescriptionIndex uint8
}

func (iad *InterfaceAssociationDescriptor) Length() uint8 { return 0x08 }

func (iad *InterfaceAssociationDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeInterfaceAssociation
}

func (iad *InterfaceAssociationDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(iad)
	buf = append(buf,
		iad.FirstInterface,
		iad.InterfaceCount,
		byte(ClassCodeVideo),
		byte(SubclassCodeVideoInterfaceCollection),
		byte(ProtocolCodeUndefined),
		iad.DescriptionIndex)
	return buf, nil
}
