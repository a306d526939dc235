package controls

import (
	"time"

	"github.com/kevmo314/usbip-uvc/pkg/descriptors"
)

// VideoProbeCommitControl as defined in UVC spec 1.5, 4.3.1.1, up to the
// fields added in UVC 1.1.
type VideoProbeCommitControl struct {
	HintBitmask            uint16
	FormatIndex            uint8
	FrameIndex             uint8
	FrameInterval          time.Duration
	KeyFrameRate           uint16
	PFrameRate             uint16
	CompQuality            uint16
	CompWindowSize         uint16
	Delay                  uint16
	MaxVideoFrameSize      uint32
	MaxPayloadTransferSize uint32

	// added in uvc 1.1
	ClockFrequency     uint32
	FramingInfoBitmask uint8
	PreferedVersion    uint8
	MinVersion         uint8
	MaxVersion         uint8
}

// Record lays the control out as the 34 byte block hosts read and write.
func (vpcc *VideoProbeCommitControl) Record() Record {
	return Record{
		{"bmHint", 2, uint64(vpcc.HintBitmask)},
		{"bFormatIndex", 1, uint64(vpcc.FormatIndex)},
		{"bFrameIndex", 1, uint64(vpcc.FrameIndex)},
		{"dwFrameInterval", 4, uint64(descriptors.IntervalUnits(vpcc.FrameInterval))},
		{"wKeyFrameRate", 2, uint64(vpcc.KeyFrameRate)},
		{"wPFrameRate", 2, uint64(vpcc.PFrameRate)},
		{"wCompQuality", 2, uint64(vpcc.CompQuality)},
		{"wCompWindowSize", 2, uint64(vpcc.CompWindowSize)},
		{"wDelay", 2, uint64(vpcc.Delay)},
		{"dwMaxVideoFrameSize", 4, uint64(vpcc.MaxVideoFrameSize)},
		{"dwMaxPayloadTransferSize", 4, uint64(vpcc.MaxPayloadTransferSize)},
		{"dwClockFrequency", 4, uint64(vpcc.ClockFrequency)},
		{"bmFramingInfo", 1, uint64(vpcc.FramingInfoBitmask)},
		{"bPreferredVersion", 1, uint64(vpcc.PreferedVersion)},
		{"bMinVersion", 1, uint64(vpcc.MinVersion)},
		{"bMaxVersion", 1, uint64(vpcc.MaxVersion)},
	}
}

// FromRecord reads back a record produced by Record, possibly after the host
// overwrote it with SET_CUR.
func (vpcc *VideoProbeCommitControl) FromRecord(r Record) {
	get := func(name string) uint64 {
		v, _ := r.Field(name)
		return v
	}
	vpcc.HintBitmask = uint16(get("bmHint"))
	vpcc.FormatIndex = uint8(get("bFormatIndex"))
	vpcc.FrameIndex = uint8(get("bFrameIndex"))
	vpcc.FrameInterval = time.Duration(get("dwFrameInterval")) * 100 * time.Nanosecond
	vpcc.KeyFrameRate = uint16(get("wKeyFrameRate"))
	vpcc.PFrameRate = uint16(get("wPFrameRate"))
	vpcc.CompQuality = uint16(get("wCompQuality"))
	vpcc.CompWindowSize = uint16(get("wCompWindowSize"))
	vpcc.Delay = uint16(get("wDelay"))
	vpcc.MaxVideoFrameSize = uint32(get("dwMaxVideoFrameSize"))
	vpcc.MaxPayloadTransferSize = uint32(get("dwMaxPayloadTransferSize"))
	vpcc.ClockFrequency = uint32(get("dwClockFrequency"))
	vpcc.FramingInfoBitmask = uint8(get("bmFramingInfo"))
	vpcc.PreferedVersion = uint8(get("bPreferredVersion"))
	vpcc.MinVersion = uint8(get("bMinVersion"))
	vpcc.MaxVersion = uint8(get("bMaxVersion"))
}
