package uvc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kevmo314/usbip-uvc/pkg/controls"
	"github.com/kevmo314/usbip-uvc/pkg/descriptors"
	"github.com/kevmo314/usbip-uvc/pkg/formats"
	"github.com/kevmo314/usbip-uvc/pkg/framesource"
	"github.com/kevmo314/usbip-uvc/pkg/requests"
	"github.com/kevmo314/usbip-uvc/pkg/transfers"
	"github.com/kevmo314/usbip-uvc/pkg/usbip"
)

const (
	DefaultVendorID  uint16 = 0x13d3
	DefaultProductID uint16 = 0x56a2
	DefaultWidth            = 640
	DefaultHeight           = 480
	DefaultFPS              = 30
	DefaultFormat           = formats.PixelFormatYUYV422

	bcdDevice descriptors.BinaryCodedDecimal = 0x1704
)

// Config describes the single format and frame size the camera offers.
type Config struct {
	VendorID  uint16
	ProductID uint16
	Format    formats.PixelFormat
	Width     int
	Height    int
	FPS       int
}

func DefaultConfig() Config {
	return Config{
		VendorID:  DefaultVendorID,
		ProductID: DefaultProductID,
		Format:    DefaultFormat,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		FPS:       DefaultFPS,
	}
}

// FrameLength is the size of one raw frame, or the nominal size of an MJPEG frame.
func (c Config) FrameLength() int {
	return c.Format.FrameLength(c.Width, c.Height)
}

func (c Config) Validate() error {
	if _, err := formats.ParsePixelFormat(string(c.Format)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Width <= 0 || c.Width > 0xFFFF || c.Height <= 0 || c.Height > 0xFFFF {
		return fmt.Errorf("%w: frame size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: frame rate %d", ErrInvalidConfig, c.FPS)
	}
	if !c.Format.Compressed() && (c.Width%2 != 0 || c.Height%2 != 0) {
		return fmt.Errorf("%w: %s needs even dimensions, got %dx%d", ErrInvalidConfig, c.Format, c.Width, c.Height)
	}
	return nil
}

func (c Config) descriptorConfig() (descriptors.Config, error) {
	dc := descriptors.Config{
		VendorID:    c.VendorID,
		ProductID:   c.ProductID,
		Device:      bcdDevice,
		Width:       uint16(c.Width),
		Height:      uint16(c.Height),
		FPS:         uint32(c.FPS),
		FrameLength: uint32(c.FrameLength()),
		MJPEG:       c.Format.Compressed(),
	}
	if !dc.MJPEG {
		guid, err := c.Format.GUID()
		if err != nil {
			return dc, err
		}
		dc.GUIDFormat = guid
	}
	return dc, nil
}

// Hooks observe device activity. Nil fields are skipped.
type Hooks struct {
	Frame       func(transfers.FrameEvent)
	Control     func(code requests.RequestCode, handled bool)
	Isochronous func(packets int)
}

// Camera is the emulated webcam. It owns the descriptor tree shared by every
// connection and creates one Device per connection, each subscribed to the
// same frame broadcaster.
type Camera struct {
	cfg    Config
	tree   *descriptors.Tree
	frames *framesource.Broadcaster
	log    *slog.Logger
	hooks  Hooks

	// now is replaced in tests.
	now func() time.Time
}

func NewCamera(cfg Config, frames *framesource.Broadcaster, log *slog.Logger, hooks Hooks) (*Camera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dc, err := cfg.descriptorConfig()
	if err != nil {
		return nil, err
	}
	tree, err := descriptors.Build(dc)
	if err != nil {
		return nil, fmt.Errorf("build descriptors: %w", err)
	}
	if err := checkAdvertised(controls.NewStore(controls.Defaults(uint32(cfg.FPS), uint32(cfg.FrameLength())))); err != nil {
		return nil, fmt.Errorf("control table: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Camera{cfg: cfg, tree: tree, frames: frames, log: log, hooks: hooks, now: time.Now}, nil
}

func (c *Camera) Config() Config                   { return c.cfg }
func (c *Camera) Tree() *descriptors.Tree          { return c.tree }
func (c *Camera) Frames() *framesource.Broadcaster { return c.frames }

// Info is the device record sent in the USB/IP import reply.
func (c *Camera) Info() usbip.DeviceInfo {
	d := c.tree.Device
	return usbip.DeviceInfo{
		VendorID:           d.VendorID,
		ProductID:          d.ProductID,
		BCDDevice:          uint16(d.Device),
		DeviceClass:        uint8(d.DeviceClass),
		DeviceSubClass:     uint8(d.DeviceSubClass),
		DeviceProtocol:     uint8(d.DeviceProtocol),
		ConfigurationValue: c.tree.Configuration.ConfigurationValue,
		NumConfigurations:  d.NumConfigurations,
		NumInterfaces:      c.tree.Configuration.NumInterfaces,
	}
}

// NewDevice creates the device for connection id. It matches usbip.DeviceFactory.
func (c *Camera) NewDevice(id string) (usbip.Device, error) {
	return c.newDevice(id), nil
}

func (c *Camera) newDevice(id string) *Device {
	d := &Device{
		id:          id,
		cam:         c,
		log:         c.log.With("device", id),
		store:       controls.NewStore(controls.Defaults(uint32(c.cfg.FPS), uint32(c.cfg.FrameLength()))),
		slot:        c.frames.Subscribe(id),
		altSettings: make(map[uint8]uint8),
	}
	d.reader = transfers.NewFrameReader(d.slot, d.frameEvent, c.now)
	d.packetizer = transfers.NewPacketizer(d.reader, c.now)
	return d
}
