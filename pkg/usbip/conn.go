package usbip

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const readBufferSize = 64 * 1024

type State int32

const (
	StateAwaitingImport State = iota
	StateAttached
)

func (s State) String() string {
	if s == StateAttached {
		return "attached"
	}
	return "awaiting-import"
}

// Device is the emulated USB device behind one connection.
type Device interface {
	Info() DeviceInfo
	// Submit returns the reply to s. Command and sequence number are filled
	// in by the caller; a nil reply is sent as 8 zero setup bytes.
	Submit(s *Submit) *Reply
}

// Hooks observe transport events. Nil fields are skipped.
type Hooks struct {
	Session       func(opened bool)
	Command       func(cmd Command)
	Unlink        func(cancelled bool)
	ProtocolError func(err error)
}

func (h Hooks) command(c Command) {
	if h.Command != nil {
		h.Command(c)
	}
}

func (h Hooks) protocolError(err error) {
	if h.ProtocolError != nil {
		h.ProtocolError(err)
	}
}

// ConnInfo is a point in time view of a connection for diagnostics.
type ConnInfo struct {
	ID       string    `json:"id"`
	Remote   string    `json:"remote"`
	BusID    string    `json:"busId"`
	State    string    `json:"state"`
	Started  time.Time `json:"started"`
	Submits  uint64    `json:"submits"`
	Unlinks  uint64    `json:"unlinks"`
	Deferred int64     `json:"deferred"`
}

// Conn is the device side of one USB/IP connection. Every message, reply and
// deferred timer is handled on the goroutine running Serve.
type Conn struct {
	id      string
	conn    net.Conn
	dev     Device
	log     *slog.Logger
	hooks   Hooks
	started time.Time

	mu    sync.RWMutex
	busID string
	state State

	buf    []byte
	out    []byte
	ledger *Ledger
	fired  chan *Pending
	done   chan struct{}

	submits  atomic.Uint64
	unlinks  atomic.Uint64
	deferred atomic.Int64
}

func NewConn(id string, conn net.Conn, dev Device, log *slog.Logger, hooks Hooks) *Conn {
	c := &Conn{
		id:      id,
		conn:    conn,
		dev:     dev,
		log:     log,
		hooks:   hooks,
		started: time.Now(),
		fired:   make(chan *Pending),
		done:    make(chan struct{}),
	}
	c.ledger = NewLedger(func(p *Pending) {
		select {
		case c.fired <- p:
		case <-c.done:
		}
	})
	return c
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) Device() Device { return c.dev }

func (c *Conn) Info() ConnInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConnInfo{
		ID:       c.id,
		Remote:   c.conn.RemoteAddr().String(),
		BusID:    c.busID,
		State:    c.state.String(),
		Started:  c.started,
		Submits:  c.submits.Load(),
		Unlinks:  c.unlinks.Load(),
		Deferred: c.deferred.Load(),
	}
}

// Serve runs the connection until the peer disconnects, ctx is cancelled or
// the peer violates the protocol. A clean disconnect returns nil.
func (c *Conn) Serve(ctx context.Context) error {
	defer close(c.done)
	defer c.ledger.Stop()
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			b := make([]byte, readBufferSize)
			n, err := c.conn.Read(b)
			if n > 0 {
				select {
				case chunks <- b[:n]:
				case <-c.done:
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case b := <-chunks:
			if err := c.consume(b); err != nil {
				return err
			}
		case p := <-c.fired:
			if !c.ledger.Claim(p) {
				continue
			}
			c.deferred.Store(int64(c.ledger.Len()))
			if err := c.reply(p.Submit); err != nil {
				return err
			}
		case err := <-readErr:
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Conn) consume(b []byte) error {
	c.buf = append(c.buf, b...)
	for len(c.buf) > 0 {
		var (
			msg Message
			n   int
			err error
		)
		if c.currentState() == StateAwaitingImport {
			msg, n, err = ParseHandshake(c.buf)
		} else {
			msg, n, err = ParseCommand(c.buf)
		}
		switch {
		case errors.Is(err, ErrUnknownCommand):
			c.log.Warn("dropping unrecognized command", "err", err, "buffered", len(c.buf))
			c.hooks.protocolError(err)
			c.buf = c.buf[:0]
			return nil
		case err != nil:
			c.log.Error("usbip protocol violation", "err", err, "buffer", hex.EncodeToString(c.buf))
			c.hooks.protocolError(err)
			return err
		case msg == nil:
			return nil
		}
		c.buf = append(c.buf[:0], c.buf[n:]...)
		if err := c.handle(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) currentState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conn) handle(msg Message) error {
	switch m := msg.(type) {
	case *ImportRequest:
		c.mu.Lock()
		c.busID = m.BusID
		c.state = StateAttached
		c.mu.Unlock()
		c.log.Info("device imported", "busid", m.BusID, "version", m.Version)
		rep, err := (&ImportReply{BusID: m.BusID, Info: c.dev.Info()}).MarshalBinary()
		if err != nil {
			return err
		}
		return c.write(rep)

	case *Submit:
		c.submits.Add(1)
		c.hooks.command(CmdSubmit)
		if m.Interval == 0 {
			return c.reply(m)
		}
		c.ledger.Schedule(m, time.Duration(m.Interval)*time.Millisecond)
		c.deferred.Store(int64(c.ledger.Len()))
		return nil

	case *Unlink:
		c.unlinks.Add(1)
		c.hooks.command(CmdUnlink)
		cancelled := c.ledger.Cancel(m.UnlinkSeqNum)
		c.deferred.Store(int64(c.ledger.Len()))
		if c.hooks.Unlink != nil {
			c.hooks.Unlink(cancelled)
		}
		c.log.Debug("unlink", "seqnum", m.SeqNum, "target", m.UnlinkSeqNum, "cancelled", cancelled)
		r := &Reply{Command: RetUnlink, SeqNum: m.SeqNum, Status: StatusUnlinked, Payload: make([]byte, SetupLength)}
		c.out = r.AppendTo(c.out[:0], 0)
		return c.write(c.out)
	}
	return nil
}

// reply builds the reply to s now and sends it.
func (c *Conn) reply(s *Submit) error {
	r := c.dev.Submit(s)
	if r == nil {
		r = &Reply{Payload: make([]byte, SetupLength)}
	}
	r.Command = RetSubmit
	r.SeqNum = s.SeqNum
	c.out = r.AppendTo(c.out[:0], s.Flags)
	return c.write(c.out)
}

func (c *Conn) write(b []byte) error {
	_, err := c.conn.Write(b)
	return err
}
