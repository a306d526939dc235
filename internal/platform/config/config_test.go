package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("UVC_TEST_SET", "mjpeg")
	t.Setenv("UVC_TEST_EMPTY", "")

	if got := GetEnv("UVC_TEST_SET", "yuyv422"); got != "mjpeg" {
		t.Errorf("GetEnv(set) = %q, want %q", got, "mjpeg")
	}
	if got := GetEnv("UVC_TEST_EMPTY", "yuyv422"); got != "yuyv422" {
		t.Errorf("GetEnv(empty) = %q, want %q", got, "yuyv422")
	}
}

func TestGetEnvNumbers(t *testing.T) {
	tests := []struct {
		value   string
		wantInt int
		wantU16 uint16
	}{
		{"", 30, 0x13d3},
		{"15", 15, 15},
		{"0x046d", 30, 0x046d},
		{"70000", 70000, 0x13d3},
		{"abc", 30, 0x13d3},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("UVC_TEST_NUM", tt.value)
			if got := GetEnvInt("UVC_TEST_NUM", 30); got != tt.wantInt {
				t.Errorf("GetEnvInt(%q) = %d, want %d", tt.value, got, tt.wantInt)
			}
			if got := GetEnvUint16("UVC_TEST_NUM", 0x13d3); got != tt.wantU16 {
				t.Errorf("GetEnvUint16(%q) = %#04x, want %#04x", tt.value, got, tt.wantU16)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("UVC_TEST_BOOL", "true")
	if !GetEnvBool("UVC_TEST_BOOL", false) {
		t.Error("GetEnvBool(true) = false, want true")
	}
	t.Setenv("UVC_TEST_BOOL", "maybe")
	if GetEnvBool("UVC_TEST_BOOL", false) {
		t.Error("GetEnvBool(maybe) = true, want fallback false")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("UVC_TEST_LOADED=640\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UVC_TEST_LOADED", "")
	os.Unsetenv("UVC_TEST_LOADED")
	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := GetEnvInt("UVC_TEST_LOADED", 0); got != 640 {
		t.Errorf("GetEnvInt after Load = %d, want 640", got)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Load(missing) = nil, want error")
	}
}
