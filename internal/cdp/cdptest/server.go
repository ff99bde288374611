// Package cdptest provides an in-process fake of a remote-debugging
// endpoint: an HTTP target directory plus one websocket per fake target
// with a scriptable command handler. Tests drive the real client code
// against it without a running application.
package cdptest

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Call is one command a client sent to the fake endpoint.
type Call struct {
	TargetID string
	ID       int64
	Method   string
	Params   json.RawMessage
}

// ErrorReply is a protocol-level error the fake returns for a command.
type ErrorReply struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Reply is the scripted response to a command. A nil *Reply from the
// handler means the command is deliberately left unanswered (for
// timeout and teardown tests).
type Reply struct {
	Result interface{}
	Error  *ErrorReply
}

// OK wraps a result value in a Reply.
func OK(result interface{}) *Reply {
	return &Reply{Result: result}
}

// Fail builds an error Reply.
func Fail(code int, message string) *Reply {
	return &Reply{Error: &ErrorReply{Code: code, Message: message}}
}

// Server is the fake endpoint. Set Handle before clients connect; when
// it is nil every command gets an empty result object.
type Server struct {
	Handle func(Call) *Reply

	hs       *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	ids   []string
	calls []Call
	conns map[string]*targetConn
}

type targetConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (tc *targetConn) writeJSON(v interface{}) error {
	tc.writeMu.Lock()
	defer tc.writeMu.Unlock()
	return tc.ws.WriteJSON(v)
}

// NewServer starts a fake endpoint exposing one page target per id.
func NewServer(targetIDs ...string) *Server {
	s := &Server{
		ids:   targetIDs,
		conns: make(map[string]*targetConn),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/json", s.handleDirectory)
	mux.HandleFunc("/devtools/page/", s.handleSocket)
	s.hs = httptest.NewServer(mux)
	return s
}

// Close shuts the endpoint down, dropping every live target connection.
func (s *Server) Close() {
	s.mu.Lock()
	for _, tc := range s.conns {
		tc.ws.Close()
	}
	s.mu.Unlock()
	s.hs.Close()
}

// Host returns the listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr())
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	_, portStr, _ := net.SplitHostPort(s.addr())
	port, _ := strconv.Atoi(portStr)
	return port
}

func (s *Server) addr() string {
	return strings.TrimPrefix(s.hs.URL, "http://")
}

// Calls returns every recorded command with the given method, in
// arrival order. An empty method matches everything.
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Emit pushes an unsolicited event frame to the client attached to the
// given target.
func (s *Server) Emit(targetID, method string, params interface{}) error {
	s.mu.Lock()
	tc, ok := s.conns[targetID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no client attached to target %s", targetID)
	}

	frame := struct {
		Method string      `json:"method"`
		Params interface{} `json:"params,omitempty"`
	}{Method: method, Params: params}
	return tc.writeJSON(frame)
}

// DropTarget severs the connection to a target, as if the renderer died.
func (s *Server) DropTarget(targetID string) {
	s.mu.Lock()
	tc, ok := s.conns[targetID]
	delete(s.conns, targetID)
	s.mu.Unlock()
	if ok {
		tc.ws.Close()
	}
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID                   string `json:"id"`
		Type                 string `json:"type"`
		Title                string `json:"title"`
		URL                  string `json:"url"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}

	s.mu.Lock()
	ids := append([]string(nil), s.ids...)
	s.mu.Unlock()

	entries := make([]entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, entry{
			ID:                   id,
			Type:                 "page",
			Title:                "window " + id,
			URL:                  "app://" + id,
			WebSocketDebuggerURL: "ws://" + s.addr() + "/devtools/page/" + id,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	targetID := strings.TrimPrefix(r.URL.Path, "/devtools/page/")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	tc := &targetConn{ws: ws}

	s.mu.Lock()
	s.conns[targetID] = tc
	s.mu.Unlock()

	for {
		var frame struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}

		call := Call{TargetID: targetID, ID: frame.ID, Method: frame.Method, Params: frame.Params}
		s.mu.Lock()
		s.calls = append(s.calls, call)
		handle := s.Handle
		s.mu.Unlock()

		var reply *Reply
		if handle != nil {
			reply = handle(call)
		} else {
			reply = OK(map[string]interface{}{})
		}
		if reply == nil {
			continue // scripted silence
		}

		resp := struct {
			ID     int64       `json:"id"`
			Result interface{} `json:"result,omitempty"`
			Error  *ErrorReply `json:"error,omitempty"`
		}{ID: frame.ID, Error: reply.Error}
		if reply.Error == nil {
			if reply.Result == nil {
				reply.Result = map[string]interface{}{}
			}
			resp.Result = reply.Result
		}
		if err := tc.writeJSON(resp); err != nil {
			return
		}
	}
}
