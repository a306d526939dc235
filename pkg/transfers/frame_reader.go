package transfers

import "time"

// FrameSource hands over the most recent complete frame, or nil if none is
// pending. Taking a frame clears it.
type FrameSource interface {
	Take() []byte
}

type FrameState int

const (
	FrameStarted FrameState = iota
	FrameFinished
)

func (s FrameState) String() string {
	if s == FrameStarted {
		return "started"
	}
	return "finished"
}

// FrameEvent reports that a frame started or finished being sent to the host.
type FrameEvent struct {
	State      FrameState
	Length     int
	Epoch      time.Time
	FrameIndex int
}

// Slice is the next piece of the current frame.
type Slice struct {
	Data       []byte
	EOF        bool
	Epoch      time.Time
	FrameIndex int
}

// FrameReader slices frames taken from a FrameSource into payload sized
// pieces. It is not safe for concurrent use.
type FrameReader struct {
	src      FrameSource
	now      func() time.Time
	observer func(FrameEvent)

	index  int
	offset int
	frame  []byte
	epoch  time.Time
}

func NewFrameReader(src FrameSource, observer func(FrameEvent), now func() time.Time) *FrameReader {
	if now == nil {
		now = time.Now
	}
	return &FrameReader{src: src, now: now, observer: observer, index: -1}
}

func (r *FrameReader) emit(state FrameState) {
	if r.observer != nil {
		r.observer(FrameEvent{State: state, Length: len(r.frame), Epoch: r.epoch, FrameIndex: r.index})
	}
}

// Index is the index of the frame last taken, -1 before the first.
func (r *FrameReader) Index() int { return r.index }

// Next returns up to n bytes of the current frame. When no frame is in
// progress it takes the pending one; if there is none it returns an empty
// slice marked EOF. Next with n <= 0 returns an empty slice and takes nothing.
func (r *FrameReader) Next(n int) Slice {
	if n <= 0 {
		return Slice{Epoch: r.now(), FrameIndex: r.index}
	}
	if len(r.frame) == 0 {
		r.epoch = r.now()
		if f := r.src.Take(); f != nil {
			r.frame = f
			r.index++
			r.offset = 0
			if len(f) > 0 {
				r.emit(FrameStarted)
			}
		}
	}
	s := Slice{Epoch: r.epoch, FrameIndex: r.index}
	switch {
	case len(r.frame) == 0:
		s.EOF = true
	case r.offset+n >= len(r.frame):
		s.Data = r.frame[r.offset:]
		s.EOF = true
		r.emit(FrameFinished)
		r.frame = nil
	default:
		s.Data = r.frame[r.offset : r.offset+n]
		r.offset += n
	}
	return s
}
