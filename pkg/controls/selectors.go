package controls

// CameraTerminalControlSelector as defined in UVC spec 1.5, A.9.4.
type CameraTerminalControlSelector uint8

const (
	CameraTerminalControlSelectorUndefined                   CameraTerminalControlSelector = 0x00
	CameraTerminalControlSelectorScanningModeControl         CameraTerminalControlSelector = 0x01
	CameraTerminalControlSelectorAutoExposureModeControl     CameraTerminalControlSelector = 0x02
	CameraTerminalControlSelectorAutoExposurePriorityControl CameraTerminalControlSelector = 0x03
	CameraTerminalControlSelectorExposureTimeAbsoluteControl CameraTerminalControlSelector = 0x04
	CameraTerminalControlSelectorExposureTimeRelativeControl CameraTerminalControlSelector = 0x05
	CameraTerminalControlSelectorFocusAbsoluteControl        CameraTerminalControlSelector = 0x06
	CameraTerminalControlSelectorFocusRelativeControl        CameraTerminalControlSelector = 0x07
	CameraTerminalControlSelectorFocusAutoControl            CameraTerminalControlSelector = 0x08
	CameraTerminalControlSelectorZoomAbsoluteControl         CameraTerminalControlSelector = 0x0B
	CameraTerminalControlSelectorPrivacyControl              CameraTerminalControlSelector = 0x11
)

// ProcessingUnitControlSelector as defined in UVC spec 1.5, A.9.5.
type ProcessingUnitControlSelector uint8

const (
	ProcessingUnitControlSelectorUndefined           ProcessingUnitControlSelector = 0x00
	ProcessingUnitBacklightCompensationControl       ProcessingUnitControlSelector = 0x01
	ProcessingUnitBrightnessControl                  ProcessingUnitControlSelector = 0x02
	ProcessingUnitContrastControl                    ProcessingUnitControlSelector = 0x03
	ProcessingUnitGainControl                        ProcessingUnitControlSelector = 0x04
	ProcessingUnitPowerLineFrequencyControl          ProcessingUnitControlSelector = 0x05
	ProcessingUnitHueControl                         ProcessingUnitControlSelector = 0x06
	ProcessingUnitSaturationControl                  ProcessingUnitControlSelector = 0x07
	ProcessingUnitSharpnessControl                   ProcessingUnitControlSelector = 0x08
	ProcessingUnitGammaControl                       ProcessingUnitControlSelector = 0x09
	ProcessingUnitWhiteBalanceTemperatureControl     ProcessingUnitControlSelector = 0x0A
	ProcessingUnitWhiteBalanceTemperatureAutoControl ProcessingUnitControlSelector = 0x0B
)

// VideoStreamingControlSelector as defined in UVC spec 1.5, A.9.8.
type VideoStreamingControlSelector uint8

const (
	VideoStreamingControlSelectorUndefined VideoStreamingControlSelector = 0x00
	VideoStreamingControlSelectorProbe     VideoStreamingControlSelector = 0x01
	VideoStreamingControlSelectorCommit    VideoStreamingControlSelector = 0x02
)

// Key addresses a control the way the host does in a class request: wIndex
// carries the entity ID in its high byte and the interface in its low byte,
// wValue carries the control selector in its high byte.
type Key struct {
	Index uint16
	Value uint16
}

func EntityKey(entity, iface, selector uint8) Key {
	return Key{Index: uint16(entity)<<8 | uint16(iface), Value: uint16(selector) << 8}
}

// InterfaceKey addresses an interface control such as probe or commit.
func InterfaceKey(iface, selector uint8) Key {
	return EntityKey(0, iface, selector)
}

func (k Key) Entity() uint8    { return uint8(k.Index >> 8) }
func (k Key) Interface() uint8 { return uint8(k.Index) }
func (k Key) Selector() uint8  { return uint8(k.Value >> 8) }
