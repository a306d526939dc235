package framesource

import "sync"

// Slot is a single-frame mailbox. A new frame overwrites one that has not
// been taken yet; the overwritten frame counts as dropped.
type Slot struct {
	mu    sync.Mutex
	frame []byte
	drops uint64
	sets  uint64
}

// Set stores frame, replacing any pending one. It reports whether a pending
// frame was dropped.
func (s *Slot) Set(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := s.frame != nil
	if dropped {
		s.drops++
	}
	s.sets++
	s.frame = frame
	return dropped
}

// Take returns the pending frame and clears the slot, or nil when empty.
func (s *Slot) Take() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frame
	s.frame = nil
	return f
}

type SlotStats struct {
	Frames  uint64 `json:"frames"`
	Drops   uint64 `json:"drops"`
	Pending bool   `json:"pending"`
}

func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotStats{Frames: s.sets, Drops: s.drops, Pending: s.frame != nil}
}
