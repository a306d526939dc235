package controls

import "github.com/kevmo314/usbip-uvc/pkg/descriptors"

// GET_INFO bitmaps as defined in UVC spec 1.5, 4.1.2.
var (
	infoGetSet     = RawBytes{0b00000011}
	infoAutoUpdate = RawBytes{0b00001111}
)

// Default probe values, as returned by the cameras this device imitates.
const (
	DefaultDelay                  = 32
	DefaultMaxPayloadTransferSize = 3072
)

// ProbeDefaults is the default probe or commit block for a single format
// with a single frame.
func ProbeDefaults(fps, frameLength uint32, hint uint16) *VideoProbeCommitControl {
	return &VideoProbeCommitControl{
		HintBitmask:            hint,
		FormatIndex:            1,
		FrameIndex:             1,
		FrameInterval:          descriptors.FrameInterval(fps),
		Delay:                  DefaultDelay,
		MaxVideoFrameSize:      frameLength,
		MaxPayloadTransferSize: DefaultMaxPayloadTransferSize,
	}
}

var (
	ProbeKey  = InterfaceKey(descriptors.InterfaceVideoStreaming, uint8(VideoStreamingControlSelectorProbe))
	CommitKey = InterfaceKey(descriptors.InterfaceVideoStreaming, uint8(VideoStreamingControlSelectorCommit))
)

func cameraKey(sel CameraTerminalControlSelector) Key {
	return EntityKey(descriptors.TerminalIDCamera, descriptors.InterfaceVideoControl, uint8(sel))
}

func processingKey(sel ProcessingUnitControlSelector) Key {
	return EntityKey(descriptors.UnitIDProcessing, descriptors.InterfaceVideoControl, uint8(sel))
}

// ranged builds a GET/SET scalar control with the usual min, max and res.
func ranged(key Key, name string, width int, signed bool, def, lo, hi, res int64) Control {
	s := Scalar{Width: width, Signed: signed}
	at := func(v int64) Value { s.Value = v; return s }
	return Control{Key: key, Name: name, Attributes: map[Attribute]Value{
		AttributeInfo: infoGetSet,
		AttributeDef:  at(def),
		AttributeMin:  at(lo),
		AttributeMax:  at(hi),
		AttributeRes:  at(res),
		AttributeCur:  at(def),
	}}
}

// Defaults is the control table of the emulated camera: probe and commit on
// the streaming interface, three camera terminal controls and the processing
// unit controls advertised in its bmControls.
func Defaults(fps, frameLength uint32) []Control {
	probe := ProbeDefaults(fps, frameLength, 0)
	commit := ProbeDefaults(fps, frameLength, 1)

	wbTemperature := ranged(processingKey(ProcessingUnitWhiteBalanceTemperatureControl), "white_balance_temperature", 2, false, 4600, 2800, 6500, 10)
	wbTemperature.Attributes[AttributeInfo] = infoAutoUpdate

	powerLine := ranged(processingKey(ProcessingUnitPowerLineFrequencyControl), "power_line_frequency", 1, false, 2, 0, 2, 0)
	delete(powerLine.Attributes, AttributeRes)

	return []Control{
		{Key: ProbeKey, Name: "probe", Attributes: map[Attribute]Value{AttributeDef: probe.Record()}},
		{Key: CommitKey, Name: "commit", Attributes: map[Attribute]Value{AttributeDef: commit.Record()}},
		{Key: cameraKey(CameraTerminalControlSelectorAutoExposureModeControl), Name: "exposure_auto", Attributes: map[Attribute]Value{
			AttributeInfo: infoGetSet,
			AttributeDef:  Scalar{Width: 1, Value: 0b00001000},
			AttributeRes:  Scalar{Width: 1, Value: 0b00001001},
			AttributeCur:  Scalar{Width: 1, Value: 0b00001000},
		}},
		{Key: cameraKey(CameraTerminalControlSelectorAutoExposurePriorityControl), Name: "exposure_auto_priority", Attributes: map[Attribute]Value{
			AttributeInfo: infoGetSet,
			AttributeDef:  Scalar{Width: 1, Value: 0},
			AttributeCur:  Scalar{Width: 1, Value: 1},
		}},
		{Key: cameraKey(CameraTerminalControlSelectorExposureTimeAbsoluteControl), Name: "exposure_absolute", Attributes: map[Attribute]Value{
			AttributeInfo: infoAutoUpdate,
			AttributeDef:  Scalar{Width: 4, Value: 166},
			AttributeMin:  Scalar{Width: 4, Value: 50},
			AttributeMax:  Scalar{Width: 4, Value: 10000},
			AttributeRes:  Scalar{Width: 4, Value: 1},
			AttributeCur:  Scalar{Width: 4, Value: 166},
		}},
		ranged(processingKey(ProcessingUnitBacklightCompensationControl), "backlight_compensation", 2, false, 0, 0, 1, 1),
		ranged(processingKey(ProcessingUnitBrightnessControl), "brightness", 2, true, 0, -64, 64, 1),
		ranged(processingKey(ProcessingUnitContrastControl), "contrast", 2, false, 50, 0, 100, 1),
		ranged(processingKey(ProcessingUnitGainControl), "gain", 2, false, 0, 0, 100, 1),
		powerLine,
		ranged(processingKey(ProcessingUnitHueControl), "hue", 2, true, 0, -180, 180, 1),
		ranged(processingKey(ProcessingUnitSaturationControl), "saturation", 2, false, 64, 0, 100, 1),
		ranged(processingKey(ProcessingUnitSharpnessControl), "sharpness", 2, false, 50, 0, 100, 1),
		ranged(processingKey(ProcessingUnitGammaControl), "gamma", 2, false, 100, 72, 500, 1),
		wbTemperature,
		ranged(processingKey(ProcessingUnitWhiteBalanceTemperatureAutoControl), "white_balance_temperature_auto", 1, false, 1, 1, 1, 1),
	}
}
