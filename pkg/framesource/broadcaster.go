package framesource

import (
	"sync"
	"sync/atomic"
	"time"
)

// Broadcaster fans every published frame out to the slots of all
// subscribed sessions, so each session consumes the same stream at its own pace.
type Broadcaster struct {
	mu    sync.RWMutex
	slots map[string]*Slot

	latest    atomic.Pointer[[]byte]
	latestAt  atomic.Int64
	published atomic.Uint64
	dropped   atomic.Uint64

	// OnDrop, when set, is called for every frame overwritten before a
	// session took it.
	OnDrop func(id string)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{slots: make(map[string]*Slot)}
}

// Subscribe registers a session and returns its slot. The most recent frame,
// if any, is placed in the slot so a new session does not start empty.
func (b *Broadcaster) Subscribe(id string) *Slot {
	s := &Slot{}
	if f := b.latest.Load(); f != nil {
		s.Set(*f)
	}
	b.mu.Lock()
	b.slots[id] = s
	b.mu.Unlock()
	return s
}

func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.slots, id)
	b.mu.Unlock()
}

// Publish hands frame to every subscriber. Subscribers share the slice and
// must not modify it.
func (b *Broadcaster) Publish(frame []byte) {
	b.latest.Store(&frame)
	b.latestAt.Store(time.Now().UnixNano())
	b.published.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, s := range b.slots {
		if s.Set(frame) {
			b.dropped.Add(1)
			if b.OnDrop != nil {
				b.OnDrop(id)
			}
		}
	}
}

// Latest returns the most recently published frame and when it was published.
func (b *Broadcaster) Latest() ([]byte, time.Time) {
	f := b.latest.Load()
	if f == nil {
		return nil, time.Time{}
	}
	return *f, time.Unix(0, b.latestAt.Load())
}

type BroadcasterStats struct {
	Published   uint64               `json:"published"`
	Dropped     uint64               `json:"dropped"`
	Subscribers map[string]SlotStats `json:"subscribers"`
}

func (b *Broadcaster) Stats() BroadcasterStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := BroadcasterStats{
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: make(map[string]SlotStats, len(b.slots)),
	}
	for id, s := range b.slots {
		st.Subscribers[id] = s.Stats()
	}
	return st
}
