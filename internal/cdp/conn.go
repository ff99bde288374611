// Package cdp implements the wire level of the remote-debugging
// protocol: target discovery, one duplex connection per attached target,
// and correlation of command responses against the unsolicited event
// stream sharing the same socket.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultCallTimeout bounds how long a command waits for its matched
// response before failing with ErrCommandTimeout.
const DefaultCallTimeout = 30 * time.Second

// EventFunc receives unsolicited protocol events, tagged with the id of
// the target whose connection delivered them. It is called from the
// connection's reader goroutine and must not block.
type EventFunc func(targetID, method string, params json.RawMessage)

// Conn is one live session: the duplex connection to a single target
// plus the correlation state for commands in flight on it.
type Conn struct {
	target  Target
	ws      *websocket.Conn
	log     *zap.Logger
	onEvent EventFunc

	writeMu   sync.Mutex
	commandID atomic.Int64
	pending   map[int64]chan callResult
	pendingMu sync.Mutex

	callTimeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	closeCh   chan struct{}
}

type callResult struct {
	result json.RawMessage
	err    *RemoteError
}

// Outbound command frame and inbound frame. An inbound frame is either a
// response (ID set) or an event (Method set); the reader dispatches on
// that tag rather than inspecting payloads.
type commandFrame struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type inboundFrame struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Dial attaches to the target's websocket endpoint. onEvent may be nil
// when the caller has no use for events; logger may be nil.
func Dial(ctx context.Context, target Target, onEvent EventFunc, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if target.Endpoint == "" {
		return nil, fmt.Errorf("%w: target %s has no websocket endpoint", ErrAttachFailed, target.ID)
	}

	dialer := websocket.Dialer{}
	ws, _, err := dialer.DialContext(ctx, target.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAttachFailed, target.ID, err)
	}

	c := &Conn{
		target:      target,
		ws:          ws,
		log:         logger.With(zap.String("target", target.ID)),
		onEvent:     onEvent,
		pending:     make(map[int64]chan callResult),
		callTimeout: DefaultCallTimeout,
		closeCh:     make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

// Target returns the target this connection is attached to.
func (c *Conn) Target() Target {
	return c.target
}

// SetCallTimeout overrides the per-command response bound. It only
// affects commands issued after the call.
func (c *Conn) SetCallTimeout(d time.Duration) {
	if d > 0 {
		c.callTimeout = d
	}
}

// Close tears the connection down. Every command still pending fails
// with ErrSessionClosed rather than being left unresolved. Close is
// idempotent and safe to call from any goroutine.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)
		err = c.ws.Close()

		// Wake up all pending callers; a closed channel reads as
		// ErrSessionClosed in Call.
		c.pendingMu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		c.pending = make(map[int64]chan callResult)
		c.pendingMu.Unlock()

		c.log.Debug("session closed")
	})
	return err
}

// Call sends a command and blocks until its matched response arrives.
// It returns the raw result payload, or an error of kind ErrCommand
// (remote-reported, as *RemoteError), ErrCommandTimeout, or
// ErrSessionClosed.
func (c *Conn) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, method)
	}

	id := c.commandID.Add(1)

	frame := commandFrame{ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling params for %s: %w", method, err)
		}
		frame.Params = data
	}

	respChan := make(chan callResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.ws.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", ErrSessionClosed, method, err)
	}

	c.log.Debug("command sent", zap.Int64("id", id), zap.String("method", method))

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case res, ok := <-respChan:
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSessionClosed, method)
		}
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w", method, res.err)
		}
		return res.result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrCommandTimeout, method, c.callTimeout)
	case <-c.closeCh:
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, method)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLoop dispatches inbound frames: responses resolve exactly one
// pending command by id, everything else is an event handed to the
// sink. It runs until the socket errors or the connection closes.
func (c *Conn) readLoop() {
	defer c.Close()

	for {
		var frame inboundFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			return
		}

		if frame.ID > 0 {
			c.pendingMu.Lock()
			if ch, ok := c.pending[frame.ID]; ok {
				delete(c.pending, frame.ID)
				ch <- callResult{result: frame.Result, err: frame.Error}
			}
			c.pendingMu.Unlock()
			continue
		}

		if frame.Method != "" && c.onEvent != nil {
			c.onEvent(c.target.ID, frame.Method, frame.Params)
		}
	}
}
