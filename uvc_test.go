package uvc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/kevmo314/usbip-uvc/pkg/controls"
	"github.com/kevmo314/usbip-uvc/pkg/descriptors"
	"github.com/kevmo314/usbip-uvc/pkg/formats"
	"github.com/kevmo314/usbip-uvc/pkg/framesource"
	"github.com/kevmo314/usbip-uvc/pkg/requests"
	"github.com/kevmo314/usbip-uvc/pkg/transfers"
	"github.com/kevmo314/usbip-uvc/pkg/usbip"
)

var testLog = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestCamera(t *testing.T, cfg Config, hooks Hooks) *Camera {
	t.Helper()
	cam, err := NewCamera(cfg, framesource.NewBroadcaster(), testLog, hooks)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}
	return cam
}

func controlSubmit(seqnum uint32, setup requests.Setup, out []byte) *usbip.Submit {
	s := &usbip.Submit{
		SeqNum:               seqnum,
		Direction:            usbip.DirOut,
		TransferBufferLength: uint32(setup.Length),
		Data:                 out,
	}
	if setup.RequestType.In() {
		s.Direction = usbip.DirIn
		s.Flags = usbip.URBDirMask
		s.Data = nil
	}
	buf, _ := setup.MarshalBinary()
	copy(s.Setup[:], buf)
	return s
}

// data strips the zeroed setup prefix from a reply payload.
func data(t *testing.T, r *usbip.Reply) []byte {
	t.Helper()
	if len(r.Payload) < usbip.SetupLength {
		t.Fatalf("payload length = %d, want at least %d", len(r.Payload), usbip.SetupLength)
	}
	if !bytes.Equal(r.Payload[:usbip.SetupLength], make([]byte, usbip.SetupLength)) {
		t.Errorf("setup prefix = %x, want zeros", r.Payload[:usbip.SetupLength])
	}
	return r.Payload[usbip.SetupLength:]
}

func getDescriptor(dt descriptors.DescriptorType, index uint8, length uint16) requests.Setup {
	return requests.Setup{
		RequestType: requests.RequestType(0x80),
		Request:     uint8(requests.StandardRequestGetDescriptor),
		Value:       uint16(dt)<<8 | uint16(index),
		Length:      length,
	}
}

func classRequest(code requests.RequestCode, key controls.Key, length uint16) requests.Setup {
	rt := requests.RequestTypeVideoInterfaceSetRequest
	if code&0x80 != 0 {
		rt = requests.RequestTypeVideoInterfaceGetRequest
	}
	return requests.Setup{RequestType: rt, Request: uint8(code), Value: key.Value, Index: key.Index, Length: length}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"mjpeg odd size", func(c *Config) { c.Format = formats.PixelFormatMJPEG; c.Width = 641 }, false},
		{"yuyv odd width", func(c *Config) { c.Width = 641 }, true},
		{"nv12 odd height", func(c *Config) { c.Format = formats.PixelFormatNV12; c.Height = 479 }, true},
		{"zero fps", func(c *Config) { c.FPS = 0 }, true},
		{"zero width", func(c *Config) { c.Width = 0 }, true},
		{"unknown format", func(c *Config) { c.Format = "rgb24" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestCamera_Info(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VendorID = 0x1234
	cfg.ProductID = 0x5678
	info := newTestCamera(t, cfg, Hooks{}).Info()
	if info.VendorID != 0x1234 || info.ProductID != 0x5678 {
		t.Errorf("vendor:product = %04x:%04x, want 1234:5678", info.VendorID, info.ProductID)
	}
	if info.BCDDevice != 0x1704 || info.DeviceClass != 0xEF || info.NumInterfaces != 2 || info.ConfigurationValue != 1 {
		t.Errorf("Info() = %+v, want bcdDevice 1704, class ef, 2 interfaces, configuration 1", info)
	}
}

func TestDevice_Descriptors(t *testing.T) {
	cam := newTestCamera(t, DefaultConfig(), Hooks{})
	d := cam.newDevice("test")
	defer d.Close()

	total := binary.LittleEndian.Uint16(cam.Tree().ConfigurationHeader()[2:4])
	lang, _ := cam.Tree().String(0)

	tests := []struct {
		name  string
		setup requests.Setup
		want  []byte
	}{
		{"device", getDescriptor(descriptors.DescriptorTypeDevice, 0, 18), cam.Tree().DeviceBytes()},
		{"device long", getDescriptor(descriptors.DescriptorTypeDevice, 0, 64), cam.Tree().DeviceBytes()},
		{"device short", getDescriptor(descriptors.DescriptorTypeDevice, 0, 8), []byte{}},
		{"configuration header", getDescriptor(descriptors.DescriptorTypeConfiguration, 0, 9), cam.Tree().ConfigurationHeader()},
		{"configuration full", getDescriptor(descriptors.DescriptorTypeConfiguration, 0, total), cam.Tree().ConfigurationBytes()},
		{"configuration truncated", getDescriptor(descriptors.DescriptorTypeConfiguration, 0, 20), cam.Tree().ConfigurationBytes()[:20]},
		{"string languages", getDescriptor(descriptors.DescriptorTypeString, 0, 255), lang},
		{"string unknown", getDescriptor(descriptors.DescriptorTypeString, 99, 255), []byte{2, 3}},
		{"string truncated", getDescriptor(descriptors.DescriptorTypeString, 0, 2), lang[:2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := data(t, d.Submit(controlSubmit(1, tt.setup, nil)))
			if !bytes.Equal(got, tt.want) {
				t.Errorf("data = %x, want %x", got, tt.want)
			}
		})
	}

	if int(total) != len(cam.Tree().ConfigurationBytes()) {
		t.Errorf("wTotalLength = %d, want %d", total, len(cam.Tree().ConfigurationBytes()))
	}
}

func TestDevice_ClassControls(t *testing.T) {
	var handled, rejected int
	cam := newTestCamera(t, DefaultConfig(), Hooks{Control: func(_ requests.RequestCode, ok bool) {
		if ok {
			handled++
		} else {
			rejected++
		}
	}})
	d := cam.newDevice("test")
	defer d.Close()

	brightness := d.ProcessingUnit().key(controls.ProcessingUnitBrightnessControl)

	// -5 as a signed 16 bit value
	got := data(t, d.Submit(controlSubmit(1, classRequest(requests.RequestCodeSetCur, brightness, 2), []byte{0xFB, 0xFF})))
	if !bytes.Equal(got, []byte{0xFB, 0xFF}) {
		t.Errorf("SET_CUR data = %x, want fbff", got)
	}
	got = data(t, d.Submit(controlSubmit(2, classRequest(requests.RequestCodeGetCur, brightness, 2), nil)))
	if !bytes.Equal(got, []byte{0xFB, 0xFF}) {
		t.Errorf("GET_CUR data = %x, want fbff", got)
	}
	if v, err := d.ProcessingUnit().Get(controls.ProcessingUnitBrightnessControl); err != nil || v != -5 {
		t.Errorf("brightness = (%d, %v), want (-5, nil)", v, err)
	}

	got = data(t, d.Submit(controlSubmit(3, classRequest(requests.RequestCodeGetLen, controls.ProbeKey, 2), nil)))
	if !bytes.Equal(got, []byte{34, 0}) {
		t.Errorf("GET_LEN probe = %x, want 2200", got)
	}

	got = data(t, d.Submit(controlSubmit(4, classRequest(requests.RequestCodeGetCur, controls.Key{Index: 0x0900, Value: 0x0100}, 4), nil)))
	if len(got) != 0 {
		t.Errorf("unknown control data = %x, want empty", got)
	}

	if handled != 3 || rejected != 1 {
		t.Errorf("hooks = (%d handled, %d rejected), want (3, 1)", handled, rejected)
	}
}

func TestDevice_ProbeCommit(t *testing.T) {
	cam := newTestCamera(t, DefaultConfig(), Hooks{})
	d := cam.newDevice("test")
	defer d.Close()

	probe := data(t, d.Submit(controlSubmit(1, classRequest(requests.RequestCodeGetCur, controls.ProbeKey, 26), nil)))
	if len(probe) != 26 {
		t.Fatalf("GET_CUR probe length = %d, want 26", len(probe))
	}
	if interval := binary.LittleEndian.Uint32(probe[4:8]); interval != 333333 {
		t.Errorf("dwFrameInterval = %d, want 333333", interval)
	}
	if size := binary.LittleEndian.Uint32(probe[18:22]); size != 640*480*2 {
		t.Errorf("dwMaxVideoFrameSize = %d, want %d", size, 640*480*2)
	}

	// a host asking for 15 fps
	binary.LittleEndian.PutUint32(probe[4:8], 666666)
	d.Submit(controlSubmit(2, classRequest(requests.RequestCodeSetCur, controls.ProbeKey, 26), probe))
	d.Submit(controlSubmit(3, classRequest(requests.RequestCodeSetCur, controls.CommitKey, 26), probe))

	vpcc, ok := d.Commit()
	if !ok {
		t.Fatal("Commit() reported no commit control")
	}
	if vpcc.FrameInterval != 66666600*time.Nanosecond {
		t.Errorf("FrameInterval = %v, want %v", vpcc.FrameInterval, 66666600*time.Nanosecond)
	}
	if vpcc.FormatIndex != 1 || vpcc.FrameIndex != 1 {
		t.Errorf("format, frame = %d, %d, want 1, 1", vpcc.FormatIndex, vpcc.FrameIndex)
	}
}

func TestDevice_ProbeIntervalMatchesFrameDescriptor(t *testing.T) {
	for _, fps := range []int{5, 6, 15, 24, 30, 60, 120} {
		cfg := DefaultConfig()
		cfg.FPS = fps
		cam := newTestCamera(t, cfg, Hooks{})
		d := cam.newDevice("test")

		// the uncompressed frame descriptor follows the VS input header and format
		frame := cam.Tree().ConfigurationBytes()[99+14+27:]
		want := binary.LittleEndian.Uint32(frame[21:25])
		if want != uint32(10_000_000/fps) {
			t.Errorf("fps %d: dwDefaultFrameInterval = %d, want %d", fps, want, 10_000_000/fps)
		}
		for _, code := range []requests.RequestCode{requests.RequestCodeGetDef, requests.RequestCodeGetCur} {
			probe := data(t, d.Submit(controlSubmit(1, classRequest(code, controls.ProbeKey, 26), nil)))
			if got := binary.LittleEndian.Uint32(probe[4:8]); got != want {
				t.Errorf("fps %d: %s dwFrameInterval = %d, want %d", fps, code, got, want)
			}
		}
		d.Close()
	}
}

func TestDevice_SetInterface(t *testing.T) {
	cam := newTestCamera(t, DefaultConfig(), Hooks{})
	d := cam.newDevice("test")
	defer d.Close()

	d.Submit(controlSubmit(1, requests.Setup{Request: uint8(requests.StandardRequestSetConfiguration), Value: 1}, nil))
	d.Submit(controlSubmit(2, requests.Setup{
		RequestType: requests.RequestType(0x01),
		Request:     uint8(requests.StandardRequestSetInterface),
		Value:       1,
		Index:       uint16(descriptors.InterfaceVideoStreaming),
	}, nil))

	st := d.State()
	if st.Configuration != 1 {
		t.Errorf("Configuration = %d, want 1", st.Configuration)
	}
	if !st.Streaming || st.AltSettings[descriptors.InterfaceVideoStreaming] != 1 {
		t.Errorf("State() = %+v, want streaming interface at alt 1", st)
	}

	got := data(t, d.Submit(controlSubmit(3, requests.Setup{
		RequestType: requests.RequestType(0x80),
		Request:     uint8(requests.StandardRequestGetStatus),
		Length:      2,
	}, nil)))
	if !bytes.Equal(got, []byte{0, 0}) {
		t.Errorf("GET_STATUS = %x, want 0000", got)
	}
}

func TestDevice_Isochronous(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 16, 8

	var (
		packets int
		events  []transfers.FrameState
	)
	cam := newTestCamera(t, cfg, Hooks{
		Isochronous: func(n int) { packets += n },
		Frame:       func(e transfers.FrameEvent) { events = append(events, e.State) },
	})
	cam.Frames().Publish(bytes.Repeat([]byte{0x80}, cfg.FrameLength()))
	d := cam.newDevice("test")
	defer d.Close()

	r := d.Submit(&usbip.Submit{
		SeqNum:               1,
		Direction:            usbip.DirIn,
		Endpoint:             1,
		Flags:                usbip.URBIsoASAP | usbip.URBDirMask,
		TransferBufferLength: 8 * 64,
		NumberOfPackets:      8,
	})
	if len(r.IsoDescriptors) != 8 || r.NumberOfPackets != 8 {
		t.Fatalf("descriptors = %d, packets = %d, want 8, 8", len(r.IsoDescriptors), r.NumberOfPackets)
	}
	var sum uint32
	for _, pd := range r.IsoDescriptors {
		sum += pd.ActualLength
	}
	if sum != r.ActualLength() {
		t.Errorf("sum of actual lengths = %d, want %d", sum, r.ActualLength())
	}
	// 256 bytes of frame in 52 byte slices: the frame ends in the fifth packet
	if sum != 8*12+uint32(cfg.FrameLength()) {
		t.Errorf("actual length = %d, want %d", sum, 8*12+cfg.FrameLength())
	}
	if packets != 8 {
		t.Errorf("isochronous hook packets = %d, want 8", packets)
	}
	if len(events) != 2 || events[0] != transfers.FrameStarted || events[1] != transfers.FrameFinished {
		t.Errorf("frame events = %v, want [started finished]", events)
	}

	r = d.Submit(&usbip.Submit{SeqNum: 2, Direction: usbip.DirIn, Endpoint: 2, TransferBufferLength: 64})
	if !bytes.Equal(r.Payload, make([]byte, usbip.SetupLength)) {
		t.Errorf("non streaming endpoint payload = %x, want 8 zeros", r.Payload)
	}
}

func TestDevice_Close(t *testing.T) {
	cam := newTestCamera(t, DefaultConfig(), Hooks{})
	d := cam.newDevice("a")
	cam.newDevice("b")
	if n := len(cam.Frames().Stats().Subscribers); n != 2 {
		t.Fatalf("subscribers = %d, want 2", n)
	}
	d.Close()
	st := cam.Frames().Stats()
	if _, ok := st.Subscribers["a"]; ok || len(st.Subscribers) != 1 {
		t.Errorf("subscribers = %v, want only b", st.Subscribers)
	}
}

func TestProcessingUnit_StoreMatchesDescriptor(t *testing.T) {
	cam := newTestCamera(t, DefaultConfig(), Hooks{})
	d := cam.newDevice("test")
	defer d.Close()

	pu, ct := d.ProcessingUnit(), d.CameraTerminal()
	for _, c := range d.store.Snapshot() {
		k := controls.Key{Index: c.Index, Value: c.Value}
		switch k.Entity() {
		case descriptors.UnitIDProcessing:
			if sel := controls.ProcessingUnitControlSelector(k.Selector()); !pu.IsControlSupported(sel) {
				t.Errorf("processing unit control %s (%#02x) is served but not advertised", c.Name, uint8(sel))
			}
		case descriptors.TerminalIDCamera:
			if sel := controls.CameraTerminalControlSelector(k.Selector()); !ct.IsControlSupported(sel) {
				t.Errorf("camera terminal control %s (%#02x) is served but not advertised", c.Name, uint8(sel))
			}
		}
	}
}

func TestProcessingUnit_SupportedControls(t *testing.T) {
	cam := newTestCamera(t, DefaultConfig(), Hooks{})
	d := cam.newDevice("test")
	defer d.Close()

	pu := d.ProcessingUnit()
	sels := pu.SupportedControls()
	if len(sels) != 11 {
		t.Errorf("processing unit controls = %d, want 11", len(sels))
	}
	for _, sel := range sels {
		if !pu.IsControlSupported(sel) {
			t.Errorf("IsControlSupported(%#02x) = false, want true", uint8(sel))
		}
		if _, err := pu.Get(sel); err != nil {
			t.Errorf("Get(%#02x) failed: %v", uint8(sel), err)
		}
	}
	if err := pu.Set(controls.ProcessingUnitContrastControl, 70); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _ := pu.Get(controls.ProcessingUnitContrastControl); v != 70 {
		t.Errorf("contrast = %d, want 70", v)
	}

	ct := d.CameraTerminal()
	want := []controls.CameraTerminalControlSelector{
		controls.CameraTerminalControlSelectorAutoExposureModeControl,
		controls.CameraTerminalControlSelectorAutoExposurePriorityControl,
		controls.CameraTerminalControlSelectorExposureTimeAbsoluteControl,
	}
	got := ct.SupportedControls()
	if len(got) != len(want) {
		t.Fatalf("camera terminal controls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("camera terminal control %d = %#02x, want %#02x", i, uint8(got[i]), uint8(want[i]))
		}
	}
	if ct.IsControlSupported(controls.CameraTerminalControlSelectorZoomAbsoluteControl) {
		t.Error("IsControlSupported(zoom) = true, want false")
	}
	if v, err := ct.Get(controls.CameraTerminalControlSelectorExposureTimeAbsoluteControl); err != nil || v != 166 {
		t.Errorf("exposure = (%d, %v), want (166, nil)", v, err)
	}
	if _, err := ct.Get(controls.CameraTerminalControlSelectorZoomAbsoluteControl); !errors.Is(err, controls.ErrUnknownControl) {
		t.Errorf("Get(zoom) = %v, want ErrUnknownControl", err)
	}
}

func TestCamera_OverUSBIP(t *testing.T) {
	cam := newTestCamera(t, DefaultConfig(), Hooks{})
	dev, err := cam.NewDevice("e2e")
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	client, server := net.Pipe()
	defer client.Close()
	errc := make(chan error, 1)
	conn := usbip.NewConn("e2e", server, dev, testLog, usbip.Hooks{})
	go func() { errc <- conn.Serve(context.Background()) }()

	readFull := func(n int) []byte {
		t.Helper()
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, n)
		if _, err := io.ReadFull(client, buf); err != nil {
			t.Fatalf("read %d bytes: %v", n, err)
		}
		return buf
	}
	write := func(m interface{ MarshalBinary() ([]byte, error) }) {
		t.Helper()
		buf, _ := m.MarshalBinary()
		if _, err := client.Write(buf); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	write(&usbip.ImportRequest{Version: usbip.Version, BusID: "1-1"})
	rep := readFull(usbip.ImportReplySize)
	if vid := binary.BigEndian.Uint16(rep[308:310]); vid != DefaultVendorID {
		t.Errorf("import reply vendor = %04x, want %04x", vid, DefaultVendorID)
	}

	write(controlSubmit(9, getDescriptor(descriptors.DescriptorTypeDevice, 0, 18), nil))
	buf := readFull(usbip.ReplyHeaderLength + usbip.SetupLength + 18)
	r, err := usbip.ParseReply(buf)
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if r.Command != usbip.RetSubmit || r.SeqNum != 9 || r.Status != 0 {
		t.Errorf("reply = (%s, %d, %d), want (RET_SUBMIT, 9, 0)", r.Command, r.SeqNum, r.Status)
	}
	if actual := binary.BigEndian.Uint32(buf[24:28]); actual != 18 {
		t.Errorf("actual length = %d, want 18", actual)
	}
	if !bytes.Equal(r.Payload[usbip.SetupLength:], cam.Tree().DeviceBytes()) {
		t.Errorf("device descriptor = %x, want %x", r.Payload[usbip.SetupLength:], cam.Tree().DeviceBytes())
	}

	// a SET_CUR arrives without transfer flags, so only the header and the
	// setup bytes come back
	probe := make([]byte, 26)
	probe[2], probe[3] = 1, 1
	binary.LittleEndian.PutUint32(probe[4:], 666666)
	write(controlSubmit(10, classRequest(requests.RequestCodeSetCur, controls.ProbeKey, 26), probe))
	buf = readFull(usbip.ReplyHeaderLength + usbip.SetupLength)
	if seq := binary.BigEndian.Uint32(buf[4:8]); seq != 10 {
		t.Errorf("SET_CUR reply seqnum = %d, want 10", seq)
	}
	if actual := binary.BigEndian.Uint32(buf[24:28]); actual != 26 {
		t.Errorf("SET_CUR actual length = %d, want 26", actual)
	}

	write(controlSubmit(11, getDescriptor(descriptors.DescriptorTypeConfiguration, 0, 9), nil))
	buf = readFull(usbip.ReplyHeaderLength + usbip.SetupLength + 9)
	if seq := binary.BigEndian.Uint32(buf[4:8]); seq != 11 {
		t.Errorf("reply after SET_CUR seqnum = %d, want 11", seq)
	}
	if dt := buf[usbip.ReplyHeaderLength+usbip.SetupLength+1]; dt != byte(descriptors.DescriptorTypeConfiguration) {
		t.Errorf("descriptor type = %#x, want configuration", dt)
	}

	client.Close()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after peer close")
	}
}
