package usbip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// DefaultPort is the port usbip attach connects to unless told otherwise.
const DefaultPort = 3240

// DeviceFactory creates the device for a new connection. Every connection
// gets its own device; if it implements io.Closer it is closed when the
// connection ends.
type DeviceFactory func(id string) (Device, error)

// Server accepts USB/IP connections and serves one device per connection.
type Server struct {
	NewDevice DeviceFactory
	Log       *slog.Logger
	Hooks     Hooks

	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewServer(newDevice DeviceFactory, log *slog.Logger, hooks Hooks) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{NewDevice: newDevice, Log: log, Hooks: hooks, conns: make(map[string]*Conn)}
}

// Listen opens a TCP listener with SO_REUSEADDR and TCP_NODELAY set.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlSocket}
	return lc.Listen(ctx, "tcp", addr)
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := Listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.Log.Info("usbip server listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, returning nil, or
// until a connection violates the protocol, returning that error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if cause := context.Cause(ctx); errors.Is(cause, ErrProtocolViolation) {
				return cause
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.serveConn(ctx, nc); errors.Is(err, ErrProtocolViolation) {
				cancel(err)
			}
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) error {
	defer nc.Close()
	id := uuid.NewString()
	log := s.Log.With("session", id, "remote", nc.RemoteAddr().String())

	dev, err := s.NewDevice(id)
	if err != nil {
		log.Error("failed to create device", "err", err)
		return err
	}
	if cl, ok := dev.(io.Closer); ok {
		defer cl.Close()
	}

	c := NewConn(id, nc, dev, log, s.Hooks)
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
	}()
	if s.Hooks.Session != nil {
		s.Hooks.Session(true)
		defer s.Hooks.Session(false)
	}

	log.Info("connection opened")
	err = c.Serve(ctx)
	if err != nil {
		log.Warn("connection closed", "err", err)
	} else {
		log.Info("connection closed")
	}
	return err
}

// Conns returns the open connections, oldest first.
func (s *Server) Conns() []*Conn {
	s.mu.RLock()
	cs := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		cs = append(cs, c)
	}
	s.mu.RUnlock()
	sort.Slice(cs, func(i, j int) bool { return cs[i].started.Before(cs[j].started) })
	return cs
}

func (s *Server) Conn(id string) (*Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}
