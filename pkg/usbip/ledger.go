package usbip

import "time"

// Pending is a submit whose reply has been deferred by its interval.
type Pending struct {
	Submit *Submit
	timer  *time.Timer
}

// Ledger tracks deferred replies by sequence number. It is owned by a single
// session goroutine; timers only hand the entry back through fire and never
// touch the ledger themselves.
type Ledger struct {
	entries map[uint32]*Pending
	fire    func(*Pending)
}

// NewLedger returns a ledger whose timers call fire when they expire. fire
// runs on the timer goroutine and must only forward the entry to the owner.
func NewLedger(fire func(*Pending)) *Ledger {
	return &Ledger{entries: make(map[uint32]*Pending), fire: fire}
}

// Schedule defers s by d, replacing any entry with the same sequence number.
func (l *Ledger) Schedule(s *Submit, d time.Duration) *Pending {
	l.Cancel(s.SeqNum)
	p := &Pending{Submit: s}
	p.timer = time.AfterFunc(d, func() { l.fire(p) })
	l.entries[s.SeqNum] = p
	return p
}

// Cancel stops and removes the entry for seqnum, reporting whether one existed.
func (l *Ledger) Cancel(seqnum uint32) bool {
	p, ok := l.entries[seqnum]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(l.entries, seqnum)
	return true
}

// Claim removes p if it is still the current entry for its sequence number.
// A fired entry that was replaced or unlinked in the meantime is not claimed
// and its reply must be dropped.
func (l *Ledger) Claim(p *Pending) bool {
	if l.entries[p.Submit.SeqNum] != p {
		return false
	}
	delete(l.entries, p.Submit.SeqNum)
	return true
}

func (l *Ledger) Len() int { return len(l.entries) }

// Stop cancels every entry.
func (l *Ledger) Stop() {
	for seqnum := range l.entries {
		l.Cancel(seqnum)
	}
}
