package descriptors

// UncompressedFormatDescriptor as defined in the UVC payload spec for uncompressed formats, 3.1.1
type UncompressedFormatDescriptor struct {
	FormatIndex           uint8
	NumFrameDescriptors   uint8
	GUIDFormat            [16]byte // canonical (RFC 4122) byte order
	BitsPerPixel          uint8
	DefaultFrameIndex     uint8
	AspectRatioX          uint8
	AspectRatioY          uint8
	InterlaceFlagsBitmask uint8
	CopyProtect           uint8
}

func (ufd *UncompressedFormatDescriptor) isFormatDescriptor() {}

func (ufd *UncompressedFormatDescriptor) Length() uint8 { return 0x1B }

func (ufd *UncompressedFormatDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (ufd *UncompressedFormatDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(ufd)
	buf = append(buf, byte(VideoStreamingInterfaceDescriptorSubtypeFormatUncompressed), ufd.FormatIndex, ufd.NumFrameDescriptors)
	guid := make([]byte, 16)
	copyGUID(guid, ufd.GUIDFormat[:])
	buf = append(buf, guid...)
	return append(buf,
		ufd.BitsPerPixel,
		ufd.DefaultFrameIndex,
		ufd.AspectRatioX,
		ufd.AspectRatioY,
		ufd.InterlaceFlagsBitmask,
		ufd.CopyProtect), nil
}

// UncompressedFrameDescriptor as defined in the UVC payload spec for uncompressed formats, 3.1.2
type UncompressedFrameDescriptor struct {
	FrameFields
}

func (ufd *UncompressedFrameDescriptor) isFrameDescriptor() {}

func (ufd *UncompressedFrameDescriptor) Length() uint8 { return ufd.length() }

func (ufd *UncompressedFrameDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (ufd *UncompressedFrameDescriptor) MarshalBinary() ([]byte, error) {
	return ufd.appendTo(header(ufd), VideoStreamingInterfaceDescriptorSubtypeFrameUncompressed), nil
}
