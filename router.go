package uvc

import (
	"github.com/kevmo314/usbip-uvc/pkg/controls"
	"github.com/kevmo314/usbip-uvc/pkg/descriptors"
	"github.com/kevmo314/usbip-uvc/pkg/requests"
)

// control answers a control transfer and returns the data stage. A nil result
// is sent as an empty reply.
func (d *Device) control(s requests.Setup, out []byte) []byte {
	switch s.RequestType.Kind() {
	case requests.KindStandard:
		return d.standard(s)
	case requests.KindClass:
		if s.RequestType.Recipient() == requests.RecipientInterface {
			return d.class(s, out)
		}
	}
	d.log.Warn("unhandled control request", "setup", s)
	return nil
}

func (d *Device) standard(s requests.Setup) []byte {
	rt := s.RequestType
	req := requests.StandardRequest(s.Request)
	switch {
	case rt.In() && rt.Recipient() == requests.RecipientDevice && req == requests.StandardRequestGetStatus:
		return make([]byte, s.Length)

	case rt.In() && rt.Recipient() == requests.RecipientDevice && req == requests.StandardRequestGetDescriptor:
		return d.descriptor(s)

	case !rt.In() && rt.Recipient() == requests.RecipientDevice && req == requests.StandardRequestSetConfiguration:
		d.mu.Lock()
		d.configuration = uint8(s.Value)
		d.mu.Unlock()
		d.log.Debug("configuration selected", "value", s.Value)
		return nil

	case !rt.In() && rt.Recipient() == requests.RecipientInterface && req == requests.StandardRequestSetInterface:
		d.mu.Lock()
		d.altSettings[uint8(s.Index)] = uint8(s.Value)
		d.mu.Unlock()
		d.log.Info("alternate setting selected", "interface", s.Index, "alt", s.Value)
		return nil
	}
	d.log.Debug("unhandled standard request", "setup", s)
	return nil
}

// descriptor answers GET_DESCRIPTOR. A configuration request for exactly the
// 9 byte header gets only the header so the host learns wTotalLength first.
func (d *Device) descriptor(s requests.Setup) []byte {
	tree := d.cam.tree
	switch t := descriptors.DescriptorType(s.DescriptorType()); t {
	case descriptors.DescriptorTypeDevice:
		dev := tree.DeviceBytes()
		if int(s.Length) >= len(dev) {
			return dev
		}
	case descriptors.DescriptorTypeConfiguration:
		hdr := tree.ConfigurationHeader()
		if int(s.Length) == len(hdr) {
			return hdr
		}
		return truncate(tree.ConfigurationBytes(), s.Length)
	case descriptors.DescriptorTypeString:
		str, err := tree.String(s.DescriptorIndex())
		if err != nil {
			d.log.Debug("unknown string", "index", s.DescriptorIndex())
			str = []byte{2, byte(descriptors.DescriptorTypeString)}
		}
		return truncate(str, s.Length)
	default:
		d.log.Warn("unsupported descriptor type", "type", t, "index", s.DescriptorIndex(), "length", s.Length)
		return nil
	}
	d.log.Warn("short device descriptor request", "length", s.Length)
	return nil
}

// class answers the video class requests on the control and streaming interfaces.
func (d *Device) class(s requests.Setup, out []byte) []byte {
	key := controls.Key{Index: s.Index, Value: s.Value}
	code := requests.RequestCode(s.Request)

	var (
		data []byte
		err  error
	)
	switch {
	case s.RequestType.In():
		data, err = d.store.Get(key, code, int(s.Length))
	case code == requests.RequestCodeSetCur:
		data, err = d.store.SetCur(key, truncate(out, s.Length), int(s.Length))
	default:
		err = controls.ErrUnsupportedRequest
	}
	if h := d.cam.hooks.Control; h != nil {
		h(code, err == nil)
	}
	if err != nil {
		d.log.Warn("unhandled class request", "request", code,
			"entity", key.Entity(), "interface", key.Interface(), "selector", key.Selector(), "err", err)
		return nil
	}
	if code == requests.RequestCodeSetCur && key == controls.CommitKey {
		if vpcc, ok := d.Commit(); ok {
			d.log.Info("streaming parameters committed",
				"format", vpcc.FormatIndex, "frame", vpcc.FrameIndex,
				"interval", vpcc.FrameInterval, "maxPayload", vpcc.MaxPayloadTransferSize)
		}
	}
	return data
}

func truncate(b []byte, length uint16) []byte {
	if len(b) > int(length) {
		return b[:length]
	}
	return b
}
