// Package uvc emulates a USB Video Class webcam behind a USB/IP server.
package uvc

import (
	"log/slog"
	"sync"

	"github.com/kevmo314/usbip-uvc/pkg/controls"
	"github.com/kevmo314/usbip-uvc/pkg/descriptors"
	"github.com/kevmo314/usbip-uvc/pkg/framesource"
	"github.com/kevmo314/usbip-uvc/pkg/requests"
	"github.com/kevmo314/usbip-uvc/pkg/transfers"
	"github.com/kevmo314/usbip-uvc/pkg/usbip"
)

// Device is the camera as seen by one attached host. It is driven from a
// single connection goroutine; only its control store and state snapshot
// may be read concurrently.
type Device struct {
	id    string
	cam   *Camera
	log   *slog.Logger
	store *controls.Store

	slot       *framesource.Slot
	reader     *transfers.FrameReader
	packetizer *transfers.Packetizer

	mu            sync.Mutex
	configuration uint8
	altSettings   map[uint8]uint8
}

func (d *Device) ID() string                { return d.id }
func (d *Device) Controls() *controls.Store { return d.store }
func (d *Device) Info() usbip.DeviceInfo    { return d.cam.Info() }
func (d *Device) Slot() *framesource.Slot   { return d.slot }
func (d *Device) Camera() *Camera           { return d.cam }

// Close unsubscribes the device from the frame broadcaster.
func (d *Device) Close() error {
	d.cam.frames.Unsubscribe(d.id)
	return nil
}

// DeviceState is a diagnostic snapshot of what the host selected.
type DeviceState struct {
	Configuration uint8                 `json:"configuration"`
	AltSettings   map[uint8]uint8       `json:"altSettings"`
	Streaming     bool                  `json:"streaming"`
	Frames        framesource.SlotStats `json:"frames"`
}

func (d *Device) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	alts := make(map[uint8]uint8, len(d.altSettings))
	for k, v := range d.altSettings {
		alts[k] = v
	}
	return DeviceState{
		Configuration: d.configuration,
		AltSettings:   alts,
		Streaming:     alts[descriptors.InterfaceVideoStreaming] != 0,
		Frames:        d.slot.Stats(),
	}
}

// Commit returns the committed streaming parameters.
func (d *Device) Commit() (*controls.VideoProbeCommitControl, bool) {
	v, ok := d.store.Cur(controls.CommitKey)
	if !ok {
		return nil, false
	}
	r, ok := v.(controls.Record)
	if !ok {
		return nil, false
	}
	vpcc := &controls.VideoProbeCommitControl{}
	vpcc.FromRecord(r)
	return vpcc, true
}

// Submit answers one URB. Isochronous IN transfers on the streaming endpoint
// carry video payloads; everything else is treated as a control transfer.
func (d *Device) Submit(s *usbip.Submit) *usbip.Reply {
	if s.Direction == usbip.DirIn && s.Endpoint == uint32(descriptors.EndpointVideoStreaming&0x0F) && s.NumberOfPackets > 0 {
		return d.isochronous(s)
	}
	if s.Endpoint != 0 {
		d.log.Debug("no data for endpoint", "ep", s.Endpoint, "dir", s.Direction)
		return &usbip.Reply{Payload: urb(nil)}
	}
	var setup requests.Setup
	if err := setup.UnmarshalBinary(s.Setup[:]); err != nil {
		d.log.Warn("malformed setup", "err", err)
		return &usbip.Reply{Payload: urb(nil)}
	}
	return &usbip.Reply{Payload: urb(d.control(setup, s.Data))}
}

func (d *Device) isochronous(s *usbip.Submit) *usbip.Reply {
	if s.TransferBufferLength/s.NumberOfPackets <= transfers.HeaderLength {
		d.log.Debug("isochronous packets leave no room for frame data",
			"length", s.TransferBufferLength, "packets", s.NumberOfPackets)
	}
	xfer := d.packetizer.Transfer(int(s.TransferBufferLength), int(s.NumberOfPackets))
	ds := make([]usbip.IsoPacketDescriptor, len(xfer.Descriptors))
	for i, pd := range xfer.Descriptors {
		ds[i] = usbip.IsoPacketDescriptor(pd)
	}
	if h := d.cam.hooks.Isochronous; h != nil {
		h(len(ds))
	}
	return &usbip.Reply{
		Payload:         urb(xfer.Data),
		StartFrame:      xfer.StartFrame,
		NumberOfPackets: s.NumberOfPackets,
		IsoDescriptors:  ds,
	}
}

func (d *Device) frameEvent(e transfers.FrameEvent) {
	d.log.Debug("frame "+e.State.String(), "index", e.FrameIndex, "length", e.Length)
	if h := d.cam.hooks.Frame; h != nil {
		h(e)
	}
}

// urb prefixes data with the 8 zeroed setup bytes every reply payload carries.
func urb(data []byte) []byte {
	buf := make([]byte, usbip.SetupLength, usbip.SetupLength+len(data))
	return append(buf, data...)
}
