package uvc

import (
	"fmt"

	"github.com/kevmo314/usbip-uvc/pkg/controls"
	"github.com/kevmo314/usbip-uvc/pkg/descriptors"
	"github.com/kevmo314/usbip-uvc/pkg/requests"
)

// puControls maps bmControls bits of the processing unit descriptor to
// control selectors, as defined in UVC spec 1.1, 3.7.2.5. Bits without a
// selector we answer are left out.
var puControls = map[int]controls.ProcessingUnitControlSelector{
	0:  controls.ProcessingUnitBrightnessControl,
	1:  controls.ProcessingUnitContrastControl,
	2:  controls.ProcessingUnitHueControl,
	3:  controls.ProcessingUnitSaturationControl,
	4:  controls.ProcessingUnitSharpnessControl,
	5:  controls.ProcessingUnitGammaControl,
	6:  controls.ProcessingUnitWhiteBalanceTemperatureControl,
	8:  controls.ProcessingUnitBacklightCompensationControl,
	9:  controls.ProcessingUnitGainControl,
	10: controls.ProcessingUnitPowerLineFrequencyControl,
	12: controls.ProcessingUnitWhiteBalanceTemperatureAutoControl,
}

// ProcessingUnit answers processing unit controls from a device's store.
type ProcessingUnit struct {
	ControlsBitmask uint32
	store           *controls.Store
}

func (d *Device) ProcessingUnit() *ProcessingUnit {
	return &ProcessingUnit{ControlsBitmask: descriptors.ProcessingControls, store: d.store}
}

func (pu *ProcessingUnit) IsControlSupported(sel controls.ProcessingUnitControlSelector) bool {
	for bit, s := range puControls {
		if s == sel {
			return pu.ControlsBitmask&(1<<bit) != 0
		}
	}
	return false
}

// SupportedControls lists the selectors advertised in the descriptor, in bit order.
func (pu *ProcessingUnit) SupportedControls() []controls.ProcessingUnitControlSelector {
	var sels []controls.ProcessingUnitControlSelector
	for bit := 0; bit < 24; bit++ {
		if s, ok := puControls[bit]; ok && pu.ControlsBitmask&(1<<bit) != 0 {
			sels = append(sels, s)
		}
	}
	return sels
}

func (pu *ProcessingUnit) key(sel controls.ProcessingUnitControlSelector) controls.Key {
	return controls.EntityKey(descriptors.UnitIDProcessing, descriptors.InterfaceVideoControl, uint8(sel))
}

// Get returns the current value of a scalar control.
func (pu *ProcessingUnit) Get(sel controls.ProcessingUnitControlSelector) (int64, error) {
	return scalarCur(pu.store, pu.key(sel))
}

// Set stores a new current value as if the host had sent SET_CUR.
func (pu *ProcessingUnit) Set(sel controls.ProcessingUnitControlSelector, v int64) error {
	return scalarSet(pu.store, pu.key(sel), v)
}

// CameraTerminal answers camera terminal controls from a device's store.
// Its bmControls bits are the selector minus one.
type CameraTerminal struct {
	ControlsBitmask uint32
	store           *controls.Store
}

func (d *Device) CameraTerminal() *CameraTerminal {
	return &CameraTerminal{ControlsBitmask: descriptors.CameraControls, store: d.store}
}

func (ct *CameraTerminal) IsControlSupported(sel controls.CameraTerminalControlSelector) bool {
	return sel != 0 && ct.ControlsBitmask&(1<<(sel-1)) != 0
}

func (ct *CameraTerminal) SupportedControls() []controls.CameraTerminalControlSelector {
	var sels []controls.CameraTerminalControlSelector
	for bit := 0; bit < 24; bit++ {
		if ct.ControlsBitmask&(1<<bit) != 0 {
			sels = append(sels, controls.CameraTerminalControlSelector(bit+1))
		}
	}
	return sels
}

func (ct *CameraTerminal) key(sel controls.CameraTerminalControlSelector) controls.Key {
	return controls.EntityKey(descriptors.TerminalIDCamera, descriptors.InterfaceVideoControl, uint8(sel))
}

func (ct *CameraTerminal) Get(sel controls.CameraTerminalControlSelector) (int64, error) {
	return scalarCur(ct.store, ct.key(sel))
}

func (ct *CameraTerminal) Set(sel controls.CameraTerminalControlSelector, v int64) error {
	return scalarSet(ct.store, ct.key(sel), v)
}

func scalarCur(store *controls.Store, k controls.Key) (int64, error) {
	v, ok := store.Cur(k)
	if !ok {
		return 0, fmt.Errorf("%w: index 0x%04x value 0x%04x", controls.ErrUnknownControl, k.Index, k.Value)
	}
	s, ok := v.(controls.Scalar)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not a scalar", controls.ErrUnsupportedRequest, v)
	}
	return s.Value, nil
}

func scalarSet(store *controls.Store, k controls.Key, v int64) error {
	cur, ok := store.Cur(k)
	if !ok {
		return fmt.Errorf("%w: index 0x%04x value 0x%04x", controls.ErrUnknownControl, k.Index, k.Value)
	}
	s, ok := cur.(controls.Scalar)
	if !ok {
		return fmt.Errorf("%w: %T is not a scalar", controls.ErrUnsupportedRequest, cur)
	}
	s.Value = v
	data := controls.Encode(s, s.Len())
	_, err := store.SetCur(k, data, len(data))
	return err
}

// checkAdvertised verifies that every control advertised in the descriptors
// can be answered from store.
func checkAdvertised(store *controls.Store) error {
	pu := &ProcessingUnit{ControlsBitmask: descriptors.ProcessingControls, store: store}
	for _, sel := range pu.SupportedControls() {
		if _, err := store.Get(pu.key(sel), requests.RequestCodeGetCur, 0); err != nil {
			return fmt.Errorf("processing unit selector %#02x: %w", uint8(sel), err)
		}
	}
	ct := &CameraTerminal{ControlsBitmask: descriptors.CameraControls, store: store}
	for _, sel := range ct.SupportedControls() {
		if _, err := store.Get(ct.key(sel), requests.RequestCodeGetCur, 0); err != nil {
			return fmt.Errorf("camera terminal selector %#02x: %w", uint8(sel), err)
		}
	}
	return nil
}
