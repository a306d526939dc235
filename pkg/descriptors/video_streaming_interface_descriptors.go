// This file implements the descriptors as defined in the UVC spec 1.5, section 3.9.
package descriptors

import (
	"encoding/binary"
	"time"
)

type VideoStreamingInterfaceDescriptorSubtype byte

const (
	VideoStreamingInterfaceDescriptorSubtypeUndefined          VideoStreamingInterfaceDescriptorSubtype = 0x00
	VideoStreamingInterfaceDescriptorSubtypeInputHeader        VideoStreamingInterfaceDescriptorSubtype = 0x01
	VideoStreamingInterfaceDescriptorSubtypeOutputHeader       VideoStreamingInterfaceDescriptorSubtype = 0x02
	VideoStreamingInterfaceDescriptorSubtypeStillImageFrame    VideoStreamingInterfaceDescriptorSubtype = 0x03
	VideoStreamingInterfaceDescriptorSubtypeFormatUncompressed VideoStreamingInterfaceDescriptorSubtype = 0x04
	VideoStreamingInterfaceDescriptorSubtypeFrameUncompressed  VideoStreamingInterfaceDescriptorSubtype = 0x05
	VideoStreamingInterfaceDescriptorSubtypeFormatMJPEG        VideoStreamingInterfaceDescriptorSubtype = 0x06
	VideoStreamingInterfaceDescriptorSubtypeFrameMJPEG         VideoStreamingInterfaceDescriptorSubtype = 0x07
	VideoStreamingInterfaceDescriptorSubtypeColorFormat        VideoStreamingInterfaceDescriptorSubtype = 0x0D
)

// FormatDescriptor is either an uncompressed or an MJPEG format descriptor.
type FormatDescriptor interface {
	Descriptor
	isFormatDescriptor()
}

// FrameDescriptor is the frame descriptor matching a FormatDescriptor.
type FrameDescriptor interface {
	Descriptor
	isFrameDescriptor()
}

// InputHeaderDescriptor as defined in UVC spec 1.5, 3.9.2.1
type InputHeaderDescriptor struct {
	NumFormats         uint8
	TotalLength        uint16
	EndpointAddress    uint8
	InfoBitmask        uint8
	TerminalLink       uint8
	StillCaptureMethod uint8
	TriggerSupport     uint8
	TriggerUsage       uint8
	ControlsBitmasks   []uint8 // one byte per format
}

func (ihd *InputHeaderDescriptor) Length() uint8 { return uint8(13 + len(ihd.ControlsBitmasks)) }

func (ihd *InputHeaderDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (ihd *InputHeaderDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(ihd)
	buf = append(buf, byte(VideoStreamingInterfaceDescriptorSubtypeInputHeader), ihd.NumFormats)
	buf = binary.LittleEndian.AppendUint16(buf, ihd.TotalLength)
	buf = append(buf,
		ihd.EndpointAddress,
		ihd.InfoBitmask,
		ihd.TerminalLink,
		ihd.StillCaptureMethod,
		ihd.TriggerSupport,
		ihd.TriggerUsage,
		1) // bControlSize
	return append(buf, ihd.ControlsBitmasks...), nil
}

type ImageSize struct {
	Width, Height uint16
}

// StillImageFrameDescriptor as defined in UVC spec 1.5, 3.9.2.5
type StillImageFrameDescriptor struct {
	EndpointAddress    uint8
	ImageSizePatterns  []ImageSize
	CompressionPattern []uint8
}

func (sifd *StillImageFrameDescriptor) Length() uint8 {
	return uint8(5 + 4*len(sifd.ImageSizePatterns) + 1 + len(sifd.CompressionPattern))
}

func (sifd *StillImageFrameDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (sifd *StillImageFrameDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(sifd)
	buf = append(buf, byte(VideoStreamingInterfaceDescriptorSubtypeStillImageFrame), sifd.EndpointAddress, uint8(len(sifd.ImageSizePatterns)))
	for _, p := range sifd.ImageSizePatterns {
		buf = binary.LittleEndian.AppendUint16(buf, p.Width)
		buf = binary.LittleEndian.AppendUint16(buf, p.Height)
	}
	buf = append(buf, uint8(len(sifd.CompressionPattern)))
	return append(buf, sifd.CompressionPattern...), nil
}

// ColorMatchingDescriptor as defined in UVC spec 1.5, 3.9.2.6
type ColorMatchingDescriptor struct {
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
}

func (cmd *ColorMatchingDescriptor) Length() uint8 { return 0x06 }

func (cmd *ColorMatchingDescriptor) DescriptorType() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

func (cmd *ColorMatchingDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(cmd)
	return append(buf,
		byte(VideoStreamingInterfaceDescriptorSubtypeColorFormat),
		cmd.ColorPrimaries,
		cmd.TransferCharacteristics,
		cmd.MatrixCoefficients), nil
}

// FrameFields is the body shared by the uncompressed and MJPEG frame
// descriptors when discrete frame intervals are used.
type FrameFields struct {
	FrameIndex              uint8
	Capabilities            uint8
	Width, Height           uint16
	MinBitRate, MaxBitRate  uint32
	MaxVideoFrameBufferSize uint32
	DefaultFrameInterval    time.Duration
	DiscreteFrameIntervals  []time.Duration
}

func (ff *FrameFields) length() uint8 { return uint8(26 + 4*len(ff.DiscreteFrameIntervals)) }

func (ff *FrameFields) appendTo(buf []byte, subtype VideoStreamingInterfaceDescriptorSubtype) []byte {
	buf = append(buf, byte(subtype), ff.FrameIndex, ff.Capabilities)
	buf = binary.LittleEndian.AppendUint16(buf, ff.Width)
	buf = binary.LittleEndian.AppendUint16(buf, ff.Height)
	buf = binary.LittleEndian.AppendUint32(buf, ff.MinBitRate)
	buf = binary.LittleEndian.AppendUint32(buf, ff.MaxBitRate)
	buf = binary.LittleEndian.AppendUint32(buf, ff.MaxVideoFrameBufferSize)
	buf = binary.LittleEndian.AppendUint32(buf, IntervalUnits(ff.DefaultFrameInterval))
	buf = append(buf, uint8(len(ff.DiscreteFrameIntervals)))
	for _, d := range ff.DiscreteFrameIntervals {
		buf = binary.LittleEndian.AppendUint32(buf, IntervalUnits(d))
	}
	return buf
}

// FrameInterval is the time between frames at fps, never less than one frame
// per second.
func FrameInterval(fps uint32) time.Duration {
	return time.Second / time.Duration(max(fps, 1))
}

// IntervalUnits truncates d to the 100ns units used by every dwFrameInterval
// field, so FrameInterval(fps) becomes 10000000/fps.
func IntervalUnits(d time.Duration) uint32 {
	return uint32(d / (100 * time.Nanosecond))
}
