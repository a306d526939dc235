package requests

import (
	"errors"
	"testing"
)

func TestSetup_UnmarshalBinary(t *testing.T) {
	var s Setup
	// GET_DESCRIPTOR(CONFIGURATION), wLength 9
	if err := s.UnmarshalBinary([]byte{0x80, 0x06, 0x00, 0x02, 0x00, 0x00, 0x09, 0x00}); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if !s.RequestType.In() {
		t.Errorf("In() = false, want true")
	}
	if got := s.RequestType.Kind(); got != KindStandard {
		t.Errorf("Kind() = %d, want %d", got, KindStandard)
	}
	if got := s.RequestType.Recipient(); got != RecipientDevice {
		t.Errorf("Recipient() = %d, want %d", got, RecipientDevice)
	}
	if StandardRequest(s.Request) != StandardRequestGetDescriptor {
		t.Errorf("Request = %#x, want %#x", s.Request, StandardRequestGetDescriptor)
	}
	if s.DescriptorType() != 2 || s.DescriptorIndex() != 0 {
		t.Errorf("descriptor = (%d, %d), want (2, 0)", s.DescriptorType(), s.DescriptorIndex())
	}
	if s.Length != 9 {
		t.Errorf("Length = %d, want 9", s.Length)
	}
}

func TestSetup_ClassInterface(t *testing.T) {
	var s Setup
	// GET_CUR on the probe control: wValue 0x0100, wIndex 0x0001, wLength 26
	if err := s.UnmarshalBinary([]byte{0xa1, 0x81, 0x00, 0x01, 0x01, 0x00, 0x1a, 0x00}); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if s.RequestType != RequestTypeVideoInterfaceGetRequest {
		t.Errorf("RequestType = %#08b, want %#08b", s.RequestType, RequestTypeVideoInterfaceGetRequest)
	}
	if got := s.RequestType.Kind(); got != KindClass {
		t.Errorf("Kind() = %d, want %d", got, KindClass)
	}
	if s.Value != 0x0100 || s.Index != 0x0001 || s.Length != 26 {
		t.Errorf("Setup = %v, want value 0x0100 index 0x0001 length 26", s)
	}
	if got := RequestCode(s.Request).String(); got != "GET_CUR" {
		t.Errorf("RequestCode.String() = %q, want GET_CUR", got)
	}
}

func TestSetup_Short(t *testing.T) {
	var s Setup
	if err := s.UnmarshalBinary([]byte{0x80, 0x06}); !errors.Is(err, ErrShortSetup) {
		t.Errorf("UnmarshalBinary error = %v, want ErrShortSetup", err)
	}
}
