// Package debug composes the protocol core into the operations an
// operator (or calling agent) works with: a supervisor owning the set
// of attached sessions for one debug endpoint, plus capture and
// interaction primitives built on raw protocol domains.
package debug

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/cdp"
	"github.com/glasspane/glasspane/internal/logbuf"
)

// Error kinds for supervisor-state preconditions and selector
// resolution. Transport and protocol kinds live in package cdp.
var (
	ErrNotConnected    = errors.New("not connected")
	ErrAmbiguousTarget = errors.New("ambiguous target")
	ErrUnknownTarget   = errors.New("unknown target")
	ErrElementNotFound = errors.New("element not found")
	ErrWaitTimeout     = errors.New("wait timed out")
)

// Supervisor owns at most one live connection state: the host:port it
// is attached to and one session per discovered target. A retarget
// tears every existing session down before attaching to the new set,
// so superseded pending commands fail with cdp.ErrSessionClosed before
// anything can succeed against the new endpoint.
type Supervisor struct {
	log *zap.Logger
	buf *logbuf.Buffer

	mu        sync.Mutex
	connected bool
	host      string
	port      int
	sessions  map[string]*cdp.Conn
	order     []string // attach order, for deterministic listings
}

// NewSupervisor returns a disconnected supervisor ingesting log events
// into buf. logger may be nil.
func NewSupervisor(buf *logbuf.Buffer, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		log:      logger,
		buf:      buf,
		sessions: make(map[string]*cdp.Conn),
	}
}

// Buffer returns the log buffer this supervisor ingests into.
func (s *Supervisor) Buffer() *logbuf.Buffer {
	return s.buf
}

// Connect discovers the targets at host:port and attaches a session to
// each. Any prior connection state is torn down first, best-effort,
// even when this connect subsequently fails; on discovery or attach
// failure the supervisor reverts to disconnected and returns the
// triggering error. Concurrent calls serialize rather than interleave.
func (s *Supervisor) Connect(ctx context.Context, host string, port int) ([]cdp.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()

	targets, err := cdp.ListTargets(ctx, host, port)
	if err != nil {
		return nil, err
	}

	opened := make(map[string]*cdp.Conn)
	var order []string
	fail := func(err error) ([]cdp.Target, error) {
		for _, conn := range opened {
			conn.Close()
		}
		return nil, err
	}

	attached := make([]cdp.Target, 0, len(targets))
	for _, t := range targets {
		if t.Endpoint == "" {
			// Some directories list targets another debugger already
			// claimed; those carry no websocket URL.
			s.log.Debug("skipping target without endpoint", zap.String("target", t.ID))
			continue
		}
		conn, err := cdp.Dial(ctx, t, s.ingest, s.log)
		if err != nil {
			return fail(err)
		}
		opened[t.ID] = conn
		order = append(order, t.ID)

		s.enableEvents(ctx, conn)

		t.Attached = true
		attached = append(attached, t)
	}

	s.connected = true
	s.host = host
	s.port = port
	s.sessions = opened
	s.order = order

	s.log.Info("connected",
		zap.String("host", host),
		zap.Int("port", port),
		zap.Int("sessions", len(opened)))

	return attached, nil
}

// enableEvents turns on the domains that deliver console/log events.
// Best-effort: a worker target may lack the Page domain, and a session
// without events is still usable for commands.
func (s *Supervisor) enableEvents(ctx context.Context, conn *cdp.Conn) {
	for _, method := range []string{"Runtime.enable", "Log.enable", "Page.enable"} {
		if _, err := conn.Call(ctx, method, nil); err != nil {
			s.log.Debug("enable failed",
				zap.String("target", conn.Target().ID),
				zap.String("method", method),
				zap.Error(err))
		}
	}
}

// Disconnect tears down all sessions and returns to the disconnected
// state. Transport errors during teardown are swallowed.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// teardownLocked closes every session best-effort. Each close rejects
// that session's pending commands with cdp.ErrSessionClosed.
func (s *Supervisor) teardownLocked() {
	for id, conn := range s.sessions {
		if err := conn.Close(); err != nil {
			s.log.Debug("teardown close", zap.String("target", id), zap.Error(err))
		}
	}
	s.sessions = make(map[string]*cdp.Conn)
	s.order = nil
	s.connected = false
	s.host = ""
	s.port = 0
}

// Connected reports whether a connection state is live.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Endpoint returns the connected host and port.
func (s *Supervisor) Endpoint() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host, s.port
}

// Targets lists the currently attached targets in attach order.
func (s *Supervisor) Targets() ([]cdp.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	out := make([]cdp.Target, 0, len(s.order))
	for _, id := range s.order {
		t := s.sessions[id].Target()
		t.Attached = true
		out = append(out, t)
	}
	return out, nil
}

// conn resolves a target id to its session. An empty id resolves to
// the sole attached session, or to the sole page-kind session when the
// others are workers; anything less determinate is ambiguous.
func (s *Supervisor) conn(targetID string) (*cdp.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	if targetID != "" {
		c, ok := s.sessions[targetID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, targetID)
		}
		return c, nil
	}

	if len(s.order) == 1 {
		return s.sessions[s.order[0]], nil
	}

	var page *cdp.Conn
	for _, id := range s.order {
		c := s.sessions[id]
		if c.Target().Kind == "page" {
			if page != nil {
				return nil, fmt.Errorf("%w: %d page targets attached, pass a target id", ErrAmbiguousTarget, len(s.order))
			}
			page = c
		}
	}
	if page != nil {
		return page, nil
	}
	return nil, fmt.Errorf("%w: %d targets attached, pass a target id", ErrAmbiguousTarget, len(s.order))
}
