package controls

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/kevmo314/usbip-uvc/pkg/requests"
)

func TestDefaults_Keys(t *testing.T) {
	tests := []struct {
		name string
		key  Key
	}{
		{"probe", Key{Index: 0x0001, Value: 0x0100}},
		{"commit", Key{Index: 0x0001, Value: 0x0200}},
		{"exposure_auto", Key{Index: 0x0100, Value: 0x0200}},
		{"brightness", Key{Index: 0x0200, Value: 0x0200}},
		{"white_balance_temperature_auto", Key{Index: 0x0200, Value: 0x0b00}},
	}
	byName := map[string]Key{}
	for _, c := range Defaults(30, 614400) {
		byName[c.Name] = c.Key
	}
	for _, tt := range tests {
		if got := byName[tt.name]; got != tt.key {
			t.Errorf("key of %s = %+v, want %+v", tt.name, got, tt.key)
		}
	}
}

func TestStore_ProbeDefaults(t *testing.T) {
	s := NewStore(Defaults(30, 614400))
	got, err := s.Get(ProbeKey, requests.RequestCodeGetCur, 26)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := []byte{
		0x00, 0x00, // bmHint
		0x01, 0x01, // bFormatIndex, bFrameIndex
		0x15, 0x16, 0x05, 0x00, // dwFrameInterval 333333
		0, 0, 0, 0, 0, 0, 0, 0, // key frame rate, p frame rate, quality, window
		0x20, 0x00, // wDelay
		0x00, 0x60, 0x09, 0x00, // dwMaxVideoFrameSize
		0x00, 0x0c, 0x00, 0x00, // dwMaxPayloadTransferSize
	}
	if !bytes.Equal(got, want) {
		t.Errorf("GET_CUR probe = %x, want %x", got, want)
	}

	commit, err := s.Get(CommitKey, requests.RequestCodeGetDef, 34)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(commit) != 34 || commit[0] != 1 {
		t.Errorf("GET_DEF commit = %x, want 34 bytes with bmHint 1", commit)
	}
}

func TestStore_SetThenGet(t *testing.T) {
	s := NewStore(Defaults(30, 614400))
	set := []byte{0x01, 0x00, 0x01, 0x01, 0x2a, 0x2c, 0x0a, 0x00}
	echo, err := s.SetCur(ProbeKey, set, 8)
	if err != nil {
		t.Fatalf("SetCur failed: %v", err)
	}
	if !bytes.Equal(echo, set) {
		t.Errorf("SetCur echo = %x, want %x", echo, set)
	}
	got, err := s.Get(ProbeKey, requests.RequestCodeGetCur, 26)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got[:8], set) {
		t.Errorf("GET_CUR prefix = %x, want %x", got[:8], set)
	}
	// the partial write leaves the later fields alone
	if got[16] != 0x20 {
		t.Errorf("wDelay = %#x, want 0x20", got[16])
	}
	def, _ := s.Get(ProbeKey, requests.RequestCodeGetDef, 26)
	if def[0] != 0 || def[4] != 0x15 {
		t.Errorf("GET_DEF changed after SET_CUR: %x", def)
	}

	cur, ok := s.Cur(ProbeKey)
	if !ok {
		t.Fatal("Cur(ProbeKey) not found")
	}
	var vpcc VideoProbeCommitControl
	vpcc.FromRecord(cur.(Record))
	if vpcc.FrameInterval != 666666*100*time.Nanosecond {
		t.Errorf("FrameInterval = %v, want %v", vpcc.FrameInterval, 666666*100*time.Nanosecond)
	}
}

func TestStore_Scalars(t *testing.T) {
	s := NewStore(Defaults(30, 614400))
	brightness := processingKey(ProcessingUnitBrightnessControl)
	tests := []struct {
		code   requests.RequestCode
		length int
		want   []byte
	}{
		{requests.RequestCodeGetMin, 2, []byte{0xc0, 0xff}},
		{requests.RequestCodeGetMax, 2, []byte{0x40, 0x00}},
		{requests.RequestCodeGetInfo, 1, []byte{0x03}},
		{requests.RequestCodeGetCur, 4, []byte{0x00, 0x00, 0x00, 0x00}},
		{requests.RequestCodeGetLen, 2, []byte{0x02, 0x00}},
		{requests.RequestCodeGetMax, 1, []byte{0x40}},
	}
	for _, tt := range tests {
		got, err := s.Get(brightness, tt.code, tt.length)
		if err != nil {
			t.Errorf("Get(%s) failed: %v", tt.code, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Get(%s, %d) = %x, want %x", tt.code, tt.length, got, tt.want)
		}
	}

	if _, err := s.SetCur(brightness, []byte{0xf6, 0xff}, 2); err != nil {
		t.Fatalf("SetCur failed: %v", err)
	}
	cur, _ := s.Cur(brightness)
	if got := cur.(Scalar).Value; got != -10 {
		t.Errorf("brightness cur = %d, want -10", got)
	}
}

func TestStore_Errors(t *testing.T) {
	s := NewStore(Defaults(30, 614400))
	if _, err := s.Get(Key{Index: 0x0500, Value: 0x0100}, requests.RequestCodeGetCur, 1); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("Get unknown error = %v, want ErrUnknownControl", err)
	}
	powerLine := processingKey(ProcessingUnitPowerLineFrequencyControl)
	if _, err := s.Get(powerLine, requests.RequestCodeGetRes, 1); !errors.Is(err, ErrUnsupportedRequest) {
		t.Errorf("Get power line res error = %v, want ErrUnsupportedRequest", err)
	}
	if _, err := s.SetCur(Key{}, []byte{1}, 1); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("SetCur unknown error = %v, want ErrUnknownControl", err)
	}
}

func TestNewStore_DefaultsAreCopied(t *testing.T) {
	key := Key{Index: 0x0300, Value: 0x0100}
	def := Record{{"a", 1, 7}, {"b", 2, 9}}
	s := NewStore([]Control{{Key: key, Name: "test", Attributes: map[Attribute]Value{AttributeDef: def}}})
	if _, err := s.SetCur(key, []byte{1, 2, 3}, 3); err != nil {
		t.Fatalf("SetCur failed: %v", err)
	}
	lo, err := s.Get(key, requests.RequestCodeGetMin, 3)
	if err != nil {
		t.Fatalf("Get min failed: %v", err)
	}
	if want := []byte{7, 9, 0}; !bytes.Equal(lo, want) {
		t.Errorf("GET_MIN = %x, want %x", lo, want)
	}
	if def[0].Value != 7 {
		t.Errorf("input record mutated: %v", def)
	}
}

func TestRecord_Budget(t *testing.T) {
	r := Record{{"a", 2, 0x0102}, {"b", 4, 0x03040506}}
	tests := []struct {
		length int
		want   []byte
	}{
		{6, []byte{0x02, 0x01, 0x06, 0x05, 0x04, 0x03}},
		{4, []byte{0x02, 0x01, 0x00, 0x00}},
		{8, []byte{0x02, 0x01, 0x06, 0x05, 0x04, 0x03, 0x00, 0x00}},
		{1, []byte{0x00}},
	}
	for _, tt := range tests {
		if got := Encode(r, tt.length); !bytes.Equal(got, tt.want) {
			t.Errorf("Encode(record, %d) = %x, want %x", tt.length, got, tt.want)
		}
	}
	// decode stops at the first field that does not fit
	got := r.Decode([]byte{0xaa, 0xbb, 0xcc}).(Record)
	if got[0].Value != 0xbbaa || got[1].Value != 0x03040506 {
		t.Errorf("Decode = %v, want a=0xbbaa b unchanged", got)
	}
}

func TestSnapshot(t *testing.T) {
	s := NewStore(Defaults(30, 614400))
	snap := s.Snapshot()
	if len(snap) != 16 {
		t.Fatalf("len(Snapshot()) = %d, want 16", len(snap))
	}
	if snap[0].Name != "probe" {
		t.Errorf("Snapshot()[0].Name = %q, want probe", snap[0].Name)
	}
	if got := snap[0].Attributes["cur"]; got == "" {
		t.Error("probe snapshot has no cur")
	}
}

func TestEntityKey(t *testing.T) {
	k := EntityKey(2, 0, 0x02)
	if k != (Key{Index: 0x0200, Value: 0x0200}) {
		t.Errorf("EntityKey(2, 0, 2) = %+v, want {0x0200 0x0200}", k)
	}
	if k.Entity() != 2 || k.Interface() != 0 || k.Selector() != 0x02 {
		t.Errorf("accessors = (%d, %d, %d), want (2, 0, 2)", k.Entity(), k.Interface(), k.Selector())
	}
	if got := InterfaceKey(1, 0x01); got != ProbeKey {
		t.Errorf("InterfaceKey(1, 1) = %+v, want %+v", got, ProbeKey)
	}
}
