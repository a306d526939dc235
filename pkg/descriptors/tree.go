package descriptors

import (
	"fmt"
	"time"
)

// ClockFrequency is the device clock advertised in the VC header, 15 MHz.
const ClockFrequency uint32 = 0x00E4E1C0

const (
	InterfaceVideoControl   = 0
	InterfaceVideoStreaming = 1

	EndpointVideoStreaming uint8 = 0x81
	EndpointInterrupt      uint8 = 0x83

	TerminalIDCamera    = 1
	UnitIDProcessing    = 2
	TerminalIDStreamOut = 3

	ConfigurationValue              = 1
	IsochronousMaxPacketSize uint16 = 0x0C00

	// bmControls of the camera terminal: AE mode, AE priority, exposure time.
	CameraControls uint32 = 0x00000E
	// bmControls of the processing unit: brightness through white balance
	// temperature, backlight compensation, gain, power line frequency and
	// white balance temperature auto.
	ProcessingControls uint32 = 0x00177F
)

// DefaultStrings is the string table; index 0 is replaced by the LANGID list.
var DefaultStrings = []string{
	"",
	"USB2.0 HD UVC WebCam",
	"0x0001",
	"Azurewave",
	"USB Camera",
	"USB2.0 HD UVC WebCam",
	"???",
	"Realtek Extended Controls Unit",
}

// Config selects the variable parts of the otherwise fixed descriptor topology.
type Config struct {
	VendorID  uint16
	ProductID uint16
	Device    BinaryCodedDecimal

	Width, Height uint16
	FPS           uint32
	FrameLength   uint32

	// MJPEG selects the MJPEG format descriptor; otherwise GUIDFormat is used.
	MJPEG      bool
	GUIDFormat [16]byte

	Strings []string
}

// Tree is the immutable descriptor set served to the host.
type Tree struct {
	Device        DeviceDescriptor
	Configuration ConfigurationDescriptor
	Strings       []string

	device        []byte
	configuration []byte
}

// Build assembles and serializes every descriptor, failing if any of them
// disagrees with its declared length.
func Build(cfg Config) (*Tree, error) {
	if cfg.FPS == 0 {
		return nil, fmt.Errorf("%w: zero frame rate", ErrInvalidDescriptor)
	}
	strs := cfg.Strings
	if strs == nil {
		strs = DefaultStrings
	}

	t := &Tree{Strings: strs}
	t.Device = DeviceDescriptor{
		USB:               0x0200,
		DeviceClass:       ClassCodeMiscellaneous,
		DeviceSubClass:    SubclassCodeCommon,
		DeviceProtocol:    ProtocolCodeInterfaceAssociation,
		MaxPacketSize0:    64,
		VendorID:          cfg.VendorID,
		ProductID:         cfg.ProductID,
		Device:            cfg.Device,
		ManufacturerIndex: 3,
		ProductIndex:      1,
		SerialNumberIndex: 2,
		NumConfigurations: 1,
	}
	var err error
	if t.device, err = Marshal(&t.Device); err != nil {
		return nil, err
	}

	control := []Descriptor{
		&HeaderDescriptor{
			UVC:                            0x0100,
			ClockFrequency:                 ClockFrequency,
			VideoStreamingInterfaceIndexes: []uint8{InterfaceVideoStreaming},
		},
		&CameraTerminalDescriptor{
			TerminalID:      TerminalIDCamera,
			ControlsBitmask: CameraControls,
		},
		&ProcessingUnitDescriptor{
			UnitID:          UnitIDProcessing,
			SourceID:        TerminalIDCamera,
			ControlsBitmask: ProcessingControls,
		},
		&OutputTerminalDescriptor{
			TerminalID:   TerminalIDStreamOut,
			TerminalType: TerminalTypeStreaming,
			SourceID:     UnitIDProcessing,
		},
	}
	control[0].(*HeaderDescriptor).TotalLength = totalLength(control)

	format, frame := formatDescriptors(cfg)
	streaming := []Descriptor{
		&InputHeaderDescriptor{
			NumFormats:         1,
			EndpointAddress:    EndpointVideoStreaming,
			TerminalLink:       TerminalIDStreamOut,
			StillCaptureMethod: 1,
			TriggerSupport:     1,
			ControlsBitmasks:   []uint8{0},
		},
		format,
		frame,
		&StillImageFrameDescriptor{
			ImageSizePatterns: []ImageSize{{1280, 720}, {160, 120}, {320, 240}, {640, 480}},
		},
		&ColorMatchingDescriptor{
			ColorPrimaries:          1,
			TransferCharacteristics: 1,
			MatrixCoefficients:      4,
		},
	}
	streaming[0].(*InputHeaderDescriptor).TotalLength = totalLength(streaming)

	set := []Descriptor{
		&t.Configuration,
		&InterfaceAssociationDescriptor{
			FirstInterface:   InterfaceVideoControl,
			InterfaceCount:   2,
			DescriptionIndex: 5,
		},
		&InterfaceDescriptor{
			InterfaceNumber:   InterfaceVideoControl,
			NumEndpoints:      1,
			InterfaceClass:    ClassCodeVideo,
			InterfaceSubClass: SubclassCodeVideoControl,
			InterfaceProtocol: ProtocolCode15,
			InterfaceIndex:    5,
		},
	}
	set = append(set, control...)
	set = append(set,
		&EndpointDescriptor{
			EndpointAddress: EndpointInterrupt,
			Attributes:      byte(EndpointTransferTypeInterrupt),
			MaxPacketSize:   16,
			Interval:        6,
		},
		&ClassSpecificInterruptEndpointDescriptor{MaxTransferSize: 16},
		&InterfaceDescriptor{
			InterfaceNumber:   InterfaceVideoStreaming,
			InterfaceClass:    ClassCodeVideo,
			InterfaceSubClass: SubclassCodeVideoStreaming,
			InterfaceProtocol: ProtocolCode15,
			InterfaceIndex:    5,
		},
	)
	set = append(set, streaming...)
	set = append(set,
		&InterfaceDescriptor{
			InterfaceNumber:   InterfaceVideoStreaming,
			AlternateSetting:  1,
			NumEndpoints:      1,
			InterfaceClass:    ClassCodeVideo,
			InterfaceSubClass: SubclassCodeVideoStreaming,
			InterfaceProtocol: ProtocolCode15,
		},
		&EndpointDescriptor{
			EndpointAddress: EndpointVideoStreaming,
			Attributes:      byte(EndpointTransferTypeIsochronous) | EndpointSyncAsynchronous,
			MaxPacketSize:   IsochronousMaxPacketSize,
			Interval:        1,
		},
	)

	t.Configuration = ConfigurationDescriptor{
		TotalLength:        totalLength(set),
		NumInterfaces:      2,
		ConfigurationValue: ConfigurationValue,
		ConfigurationIndex: 4,
		Attributes:         0x80,
		MaxPower:           250,
	}
	if t.configuration, err = MarshalAll(set...); err != nil {
		return nil, err
	}
	if len(t.configuration) != int(t.Configuration.TotalLength) {
		return nil, fmt.Errorf("%w: configuration encoded %d bytes, declared %d", ErrLengthMismatch, len(t.configuration), t.Configuration.TotalLength)
	}
	for i := range t.Strings {
		if _, err := t.String(uint8(i)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func formatDescriptors(cfg Config) (FormatDescriptor, FrameDescriptor) {
	interval := FrameInterval(cfg.FPS)
	bitRate := uint64(cfg.FPS) * 8 * uint64(cfg.FrameLength)
	fields := FrameFields{
		FrameIndex:             1,
		Width:                  cfg.Width,
		Height:                 cfg.Height,
		DefaultFrameInterval:   interval,
		DiscreteFrameIntervals: []time.Duration{interval},
	}
	if cfg.MJPEG {
		fields.MinBitRate = clampUint32(bitRate / 1000)
		fields.MaxBitRate = clampUint32(bitRate / 10)
		fields.MaxVideoFrameBufferSize = clampUint32(3 * uint64(cfg.FrameLength))
		return &MJPEGFormatDescriptor{
			FormatIndex:         1,
			NumFrameDescriptors: 1,
			DefaultFrameIndex:   1,
		}, &MJPEGFrameDescriptor{FrameFields: fields}
	}
	fields.MinBitRate = clampUint32(bitRate)
	fields.MaxBitRate = clampUint32(bitRate)
	fields.MaxVideoFrameBufferSize = cfg.FrameLength
	var bpp uint8
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > 0 {
		bpp = uint8(8 * uint64(cfg.FrameLength) / pixels)
	}
	return &UncompressedFormatDescriptor{
		FormatIndex:         1,
		NumFrameDescriptors: 1,
		GUIDFormat:          cfg.GUIDFormat,
		BitsPerPixel:        bpp,
		DefaultFrameIndex:   1,
	}, &UncompressedFrameDescriptor{FrameFields: fields}
}

func totalLength(ds []Descriptor) uint16 {
	var n uint16
	for _, d := range ds {
		n += uint16(d.Length())
	}
	return n
}

func clampUint32(v uint64) uint32 {
	if v > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(v)
}

// DeviceBytes returns the 18 byte device descriptor.
func (t *Tree) DeviceBytes() []byte { return t.device }

// ConfigurationBytes returns the full configuration descriptor set, wTotalLength bytes long.
func (t *Tree) ConfigurationBytes() []byte { return t.configuration }

// ConfigurationHeader returns only the 9 byte configuration descriptor.
func (t *Tree) ConfigurationHeader() []byte {
	return t.configuration[:t.Configuration.Length()]
}

// String returns the string descriptor at index, with index 0 being the LANGID list.
func (t *Tree) String(index uint8) ([]byte, error) {
	if int(index) >= len(t.Strings) {
		return nil, fmt.Errorf("%w: string index %d", ErrInvalidDescriptor, index)
	}
	sd := &StringDescriptor{Text: t.Strings[index]}
	if index == 0 {
		sd.LanguageIDs = []uint16{LanguageIDEnglishUS}
	}
	return Marshal(sd)
}
