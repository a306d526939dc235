// Package attach attaches the emulated camera to the local machine through
// the usbip command line tool and waits for it to enumerate.
package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	usb "github.com/kevmo314/go-usb"
)

// videoInterfaceClass as defined in USB class codes, 0x0E is video.
const videoInterfaceClass = 0x0E

var ErrNotEnumerated = errors.New("attached device did not enumerate")

type Config struct {
	Host      string
	Port      int
	BusID     string
	VendorID  uint16
	ProductID uint16
	// Timeout bounds how long to wait for the device to show up after attach.
	Timeout time.Duration
}

// Device is a USB device seen on the local bus.
type Device struct {
	Path            string
	VendorID        uint16
	ProductID       uint16
	VideoInterfaces []uint8
}

// Attacher runs the attach command and polls the local bus. The function
// fields are replaced in tests.
type Attacher struct {
	Log       *slog.Logger
	Run       func(ctx context.Context, name string, args ...string) ([]byte, error)
	Enumerate func() ([]Device, error)
	Interval  time.Duration
	// Modules lists the loaded kernel modules, one per line.
	Modules string
}

func New(log *slog.Logger) *Attacher {
	return &Attacher{Log: log, Run: run, Enumerate: Enumerate, Interval: 250 * time.Millisecond, Modules: "/proc/modules"}
}

// EnsureModule loads a kernel module with modprobe unless it is listed as
// loaded already. The kernel lists modules with underscores, so vhci-hcd
// matches vhci_hcd.
func (a *Attacher) EnsureModule(ctx context.Context, name string) error {
	loaded := strings.ReplaceAll(name, "-", "_")
	if b, err := os.ReadFile(a.Modules); err == nil {
		for _, line := range strings.Split(string(b), "\n") {
			if f := strings.Fields(line); len(f) > 0 && f[0] == loaded {
				return nil
			}
		}
	}
	a.Log.Info("loading kernel module", "module", name)
	if out, err := a.Run(ctx, "modprobe", name); err != nil {
		return fmt.Errorf("modprobe %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Args is the usbip invocation for cfg.
func Args(cfg Config) []string {
	return []string{"--tcp-port", strconv.Itoa(cfg.Port), "attach", "-r", cfg.Host, "-b", cfg.BusID}
}

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Attach runs usbip attach and waits until a device with the configured IDs
// and at least one video interface is enumerated.
func (a *Attacher) Attach(ctx context.Context, cfg Config) (*Device, error) {
	args := Args(cfg)
	a.Log.Info("attaching", "cmd", "usbip "+strings.Join(args, " "))
	if out, err := a.Run(ctx, "usbip", args...); err != nil {
		return nil, fmt.Errorf("usbip attach: %w: %s", err, strings.TrimSpace(string(out)))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()
	for {
		devs, err := a.Enumerate()
		if err != nil {
			a.Log.Debug("enumerate failed", "err", err)
		}
		for i := range devs {
			d := &devs[i]
			if d.VendorID == cfg.VendorID && d.ProductID == cfg.ProductID && len(d.VideoInterfaces) > 0 {
				a.Log.Info("device enumerated", "path", d.Path, "interfaces", d.VideoInterfaces)
				return d, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %04x:%04x after %v", ErrNotEnumerated, cfg.VendorID, cfg.ProductID, cfg.Timeout)
		case <-ticker.C:
		}
	}
}

// Enumerate lists local USB devices and the video class interfaces of their
// active configuration. Devices that cannot be opened are listed without
// interfaces.
func Enumerate() ([]Device, error) {
	devices, err := usb.DeviceList()
	if err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(devices))
	for _, dev := range devices {
		d := Device{Path: dev.Path, VendorID: dev.Descriptor.VendorID, ProductID: dev.Descriptor.ProductID}
		handle, err := dev.Open()
		if err == nil {
			if config, err := handle.GetActiveConfigDescriptor(); err == nil {
				for _, iface := range config.Interfaces {
					for _, alt := range iface.AltSettings {
						if alt.InterfaceClass == videoInterfaceClass && !slices.Contains(d.VideoInterfaces, alt.InterfaceNumber) {
							d.VideoInterfaces = append(d.VideoInterfaces, alt.InterfaceNumber)
						}
					}
				}
			}
			handle.Close()
		}
		out = append(out, d)
	}
	return out, nil
}
