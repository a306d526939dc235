package controls

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kevmo314/usbip-uvc/pkg/requests"
)

var (
	ErrUnknownControl     = errors.New("unknown control")
	ErrUnsupportedRequest = errors.New("control does not support request")
)

type Attribute uint8

const (
	AttributeCur Attribute = iota
	AttributeMin
	AttributeMax
	AttributeRes
	AttributeDef
	AttributeInfo
)

func (a Attribute) String() string {
	switch a {
	case AttributeCur:
		return "cur"
	case AttributeMin:
		return "min"
	case AttributeMax:
		return "max"
	case AttributeRes:
		return "res"
	case AttributeDef:
		return "def"
	case AttributeInfo:
		return "info"
	}
	return fmt.Sprintf("attribute(%d)", uint8(a))
}

// AttributeFor maps a GET_* request to the attribute it reads. GET_LEN has no
// stored attribute and reports false.
func AttributeFor(code requests.RequestCode) (Attribute, bool) {
	switch code {
	case requests.RequestCodeGetCur:
		return AttributeCur, true
	case requests.RequestCodeGetMin:
		return AttributeMin, true
	case requests.RequestCodeGetMax:
		return AttributeMax, true
	case requests.RequestCodeGetRes:
		return AttributeRes, true
	case requests.RequestCodeGetDef:
		return AttributeDef, true
	case requests.RequestCodeGetInfo:
		return AttributeInfo, true
	}
	return 0, false
}

type Control struct {
	Key        Key
	Name       string
	Attributes map[Attribute]Value
}

// Store is the table of class-specific controls for one device instance.
type Store struct {
	mu       sync.RWMutex
	controls map[Key]*Control
}

// NewStore copies the given controls into a store. Missing cur, min and max
// attributes are filled with independent copies of def.
func NewStore(cs []Control) *Store {
	s := &Store{controls: make(map[Key]*Control, len(cs))}
	for _, c := range cs {
		attrs := make(map[Attribute]Value, len(c.Attributes)+3)
		for a, v := range c.Attributes {
			attrs[a] = v.Clone()
		}
		if def, ok := attrs[AttributeDef]; ok {
			for _, a := range []Attribute{AttributeCur, AttributeMin, AttributeMax} {
				if _, ok := attrs[a]; !ok {
					attrs[a] = def.Clone()
				}
			}
		}
		s.controls[c.Key] = &Control{Key: c.Key, Name: c.Name, Attributes: attrs}
	}
	return s
}

// Get answers a GET_* request with exactly length bytes.
func (s *Store) Get(key Key, code requests.RequestCode, length int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[key]
	if !ok {
		return nil, fmt.Errorf("%w: index 0x%04x value 0x%04x", ErrUnknownControl, key.Index, key.Value)
	}
	if code == requests.RequestCodeGetLen {
		cur, ok := c.Attributes[AttributeCur]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no cur for %s", ErrUnsupportedRequest, c.Name, code)
		}
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(cur.Len()))
		return Encode(RawBytes(buf[:]), length), nil
	}
	attr, ok := AttributeFor(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedRequest, c.Name, code)
	}
	v, ok := c.Attributes[attr]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s", ErrUnsupportedRequest, c.Name, attr)
	}
	return Encode(v, length), nil
}

// SetCur decodes data into the control's current value and returns the new
// value encoded in length bytes.
func (s *Store) SetCur(key Key, data []byte, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controls[key]
	if !ok {
		return nil, fmt.Errorf("%w: index 0x%04x value 0x%04x", ErrUnknownControl, key.Index, key.Value)
	}
	cur, ok := c.Attributes[AttributeCur]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no cur", ErrUnsupportedRequest, c.Name)
	}
	c.Attributes[AttributeCur] = cur.Decode(data)
	return Encode(c.Attributes[AttributeCur], length), nil
}

// Cur returns a copy of the control's current value.
func (s *Store) Cur(key Key) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[key]
	if !ok {
		return nil, false
	}
	v, ok := c.Attributes[AttributeCur]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

type ControlSnapshot struct {
	Index      uint16            `json:"index"`
	Value      uint16            `json:"value"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

// Snapshot renders every control, ordered by key.
func (s *Store) Snapshot() []ControlSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ControlSnapshot, 0, len(s.controls))
	for _, c := range s.controls {
		attrs := make(map[string]string, len(c.Attributes))
		for a, v := range c.Attributes {
			attrs[a.String()] = v.String()
		}
		out = append(out, ControlSnapshot{Index: c.Key.Index, Value: c.Key.Value, Name: c.Name, Attributes: attrs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Value < out[j].Value
	})
	return out
}
