package descriptors

// MJPEGFormatDescriptor as defined in the UVC payload spec for MJPEG, 3.1.1
type MJPEGFormatDescriptor struct {
	FormatIndex           uint8
	NumFrameDescriptors   uint8
	FlagsBitmask          uint8
	DefaultFrameIndex     uint8
	AspectRatioX          uint8
	AspectRatioY          uint8
	InterlaceFlagsBitmask uint8
	CopyProtect           uint8
}

func (mfd *MJPEGFormatDescriptor) isFormatDescriptor() {}

func (mfd *MJPEGFormatDescriptor) Length() uint8 { return 0x0B }

func (mfd *MJPEGFormatDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (mfd *MJPEGFormatDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(mfd)
	return append(buf,
		byte(VideoStreamingInterfaceDescriptorSubtypeFormatMJPEG),
		mfd.FormatIndex,
		mfd.NumFrameDescriptors,
		mfd.FlagsBitmask,
		mfd.DefaultFrameIndex,
		mfd.AspectRatioX,
		mfd.AspectRatioY,
		mfd.InterlaceFlagsBitmask,
		mfd.CopyProtect), nil
}

// MJPEGFrameDescriptor as defined in the UVC payload spec for MJPEG, 3.1.2
type MJPEGFrameDescriptor struct {
	FrameFields
}

func (mfd *MJPEGFrameDescriptor) isFrameDescriptor() {}

func (mfd *MJPEGFrameDescriptor) Length() uint8 { return mfd.length() }

func (mfd *MJPEGFrameDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (mfd *MJPEGFrameDescriptor) MarshalBinary() ([]byte, error) {
	return mfd.appendTo(header(mfd), VideoStreamingInterfaceDescriptorSubtypeFrameMJPEG), nil
}
