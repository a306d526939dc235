package attach

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

var testLog = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func TestArgs(t *testing.T) {
	got := Args(Config{Host: "127.0.0.1", Port: 3241, BusID: "1-1"})
	want := []string{"--tcp-port", "3241", "attach", "-r", "127.0.0.1", "-b", "1-1"}
	if !slices.Equal(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestAttacher_Attach(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 3241, BusID: "1-1", VendorID: 0x13d3, ProductID: 0x56a2, Timeout: time.Second}

	var ran []string
	polls := 0
	a := &Attacher{
		Log:      testLog,
		Interval: time.Millisecond,
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			ran = append([]string{name}, args...)
			return nil, nil
		},
		Enumerate: func() ([]Device, error) {
			polls++
			devs := []Device{{Path: "/dev/bus/usb/001/001", VendorID: 0x1d6b, ProductID: 0x0002}}
			if polls >= 3 {
				devs = append(devs, Device{Path: "/dev/bus/usb/003/002", VendorID: 0x13d3, ProductID: 0x56a2, VideoInterfaces: []uint8{0, 1}})
			}
			return devs, nil
		},
	}
	d, err := a.Attach(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if d.Path != "/dev/bus/usb/003/002" {
		t.Errorf("Path = %q, want /dev/bus/usb/003/002", d.Path)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
	if len(ran) == 0 || ran[0] != "usbip" {
		t.Errorf("ran = %v, want usbip", ran)
	}
}

func TestAttacher_Errors(t *testing.T) {
	cfg := Config{VendorID: 0x13d3, ProductID: 0x56a2, Timeout: 20 * time.Millisecond}
	novideo := func() ([]Device, error) {
		return []Device{{VendorID: 0x13d3, ProductID: 0x56a2}}, nil
	}

	tests := []struct {
		name    string
		run     func(context.Context, string, ...string) ([]byte, error)
		wantErr error
	}{
		{"command fails", func(context.Context, string, ...string) ([]byte, error) {
			return []byte("usbip: error: open vhci_driver"), errors.New("exit status 1")
		}, nil},
		{"never enumerates", func(context.Context, string, ...string) ([]byte, error) { return nil, nil }, ErrNotEnumerated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Attacher{Log: testLog, Interval: time.Millisecond, Run: tt.run, Enumerate: novideo}
			_, err := a.Attach(context.Background(), cfg)
			if err == nil {
				t.Fatal("Attach() = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Attach() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAttacher_EnsureModule(t *testing.T) {
	modules := filepath.Join(t.TempDir(), "modules")
	content := "usbip_core 32768 1 vhci_hcd, Live 0x0000000000000000\nvhci_hcd 57344 0 - Live 0x0000000000000000\n"
	if err := os.WriteFile(modules, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		module  string
		wantRun bool
	}{
		{"vhci_hcd", false},
		{"vhci-hcd", false},
		{"vhci", true},
		{"v4l2loopback", true},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			ran := false
			a := &Attacher{Log: testLog, Modules: modules, Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
				ran = name == "modprobe" && slices.Equal(args, []string{tt.module})
				return nil, nil
			}}
			if err := a.EnsureModule(context.Background(), tt.module); err != nil {
				t.Fatalf("EnsureModule failed: %v", err)
			}
			if ran != tt.wantRun {
				t.Errorf("ran modprobe = %v, want %v", ran, tt.wantRun)
			}
		})
	}
}
