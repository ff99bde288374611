package debug_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/glasspane/glasspane/internal/cdp"
	"github.com/glasspane/glasspane/internal/cdp/cdptest"
	"github.com/glasspane/glasspane/internal/debug"
	"github.com/glasspane/glasspane/internal/logbuf"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// evalReply wraps a value the way Runtime.evaluate returns it.
func evalReply(v interface{}) *cdptest.Reply {
	return cdptest.OK(map[string]interface{}{
		"result": map[string]interface{}{"type": "object", "value": v},
	})
}

func newSupervisor() *debug.Supervisor {
	return debug.NewSupervisor(logbuf.New(), nil)
}

func connect(t *testing.T, sup *debug.Supervisor, srv *cdptest.Server) []cdp.Target {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	targets, err := sup.Connect(ctx, srv.Host(), srv.Port())
	require.NoError(t, err)
	return targets
}

func TestSupervisor_ConnectAttachesAllTargets(t *testing.T) {
	srv := cdptest.NewServer("w1", "w2")
	defer srv.Close()

	sup := newSupervisor()
	defer sup.Disconnect()

	targets := connect(t, sup, srv)
	require.Len(t, targets, 2)
	assert.True(t, targets[0].Attached)
	assert.True(t, sup.Connected())

	host, port := sup.Endpoint()
	assert.Equal(t, srv.Host(), host)
	assert.Equal(t, srv.Port(), port)

	listed, err := sup.Targets()
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "w1", listed[0].ID)
	assert.Equal(t, "w2", listed[1].ID)

	// Each session gets its event domains enabled.
	assert.Len(t, srv.Calls("Runtime.enable"), 2)
	assert.Len(t, srv.Calls("Log.enable"), 2)
	assert.Len(t, srv.Calls("Page.enable"), 2)
}

func TestSupervisor_DisconnectedPreconditions(t *testing.T) {
	sup := newSupervisor()
	ctx := context.Background()

	_, err := sup.Targets()
	assert.ErrorIs(t, err, debug.ErrNotConnected)

	_, err = sup.Eval(ctx, "", "1+1")
	assert.ErrorIs(t, err, debug.ErrNotConnected)

	err = sup.Click(ctx, debug.ClickOptions{Selector: "#x"})
	assert.ErrorIs(t, err, debug.ErrNotConnected)

	_, err = sup.Screenshot(ctx, debug.ScreenshotOptions{})
	assert.ErrorIs(t, err, debug.ErrNotConnected)
}

func TestSupervisor_TargetResolution(t *testing.T) {
	srv := cdptest.NewServer("w1", "w2")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply(true)
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	ctx := context.Background()

	// Two page targets: no unambiguous default.
	_, err := sup.Eval(ctx, "", "true")
	assert.ErrorIs(t, err, debug.ErrAmbiguousTarget)

	// Explicit id works.
	_, err = sup.Eval(ctx, "w2", "true")
	assert.NoError(t, err)

	// Unknown id is its own failure, not ambiguity.
	_, err = sup.Eval(ctx, "nope", "true")
	assert.ErrorIs(t, err, debug.ErrUnknownTarget)
}

func TestSupervisor_SingleTargetDefault(t *testing.T) {
	srv := cdptest.NewServer("only")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply(42.0)
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	value, err := sup.Eval(context.Background(), "", "42")
	require.NoError(t, err)
	assert.Equal(t, 42.0, value)
}

func TestSupervisor_RetargetRejectsPending(t *testing.T) {
	srv1 := cdptest.NewServer("old")
	defer srv1.Close()
	srv2 := cdptest.NewServer("new")
	defer srv2.Close()

	// srv1 swallows evaluations so a command stays pending.
	srv1.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return nil
		}
		return cdptest.OK(nil)
	}
	srv2.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply("fresh")
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv1)

	errCh := make(chan error, 1)
	go func() {
		_, err := sup.Eval(context.Background(), "", "'blocked'")
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return len(srv1.Calls("Runtime.evaluate")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Retarget: the superseded session's pending command must fail with
	// SessionClosed, and the new endpoint must then serve commands.
	connect(t, sup, srv2)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, cdp.ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending command survived retarget")
	}

	value, err := sup.Eval(context.Background(), "", "'fresh'")
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
}

func TestSupervisor_FailedConnectRevertsToDisconnected(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	sup := newSupervisor()
	connect(t, sup, srv)
	require.True(t, sup.Connected())

	// Unreachable endpoint: the old state is gone and nothing replaces it.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := sup.Connect(ctx, "localhost", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, cdp.ErrDirectoryUnreachable)

	assert.False(t, sup.Connected())
	_, err = sup.Targets()
	assert.ErrorIs(t, err, debug.ErrNotConnected)
}

func TestSupervisor_IngestsConsoleEvents(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	require.NoError(t, srv.Emit("w1", "Runtime.consoleAPICalled", map[string]interface{}{
		"type": "error",
		"args": []map[string]interface{}{
			{"type": "string", "value": "boom:"},
			{"type": "number", "value": 7},
		},
	}))

	buf := sup.Buffer()
	require.Eventually(t, func() bool { return buf.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	entries, cursor := buf.Query(logbuf.Filter{})
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), cursor)
	assert.Equal(t, "error", entries[0].Level)
	assert.Equal(t, "w1", entries[0].TargetID)
	assert.Equal(t, "boom: 7", entries[0].Text)
	assert.Equal(t, "console", entries[0].Source)
}

func TestSupervisor_IngestsLogAndExceptionEvents(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	require.NoError(t, srv.Emit("w1", "Log.entryAdded", map[string]interface{}{
		"entry": map[string]interface{}{
			"source": "network",
			"level":  "verbose",
			"text":   "request finished",
		},
	}))
	require.NoError(t, srv.Emit("w1", "Runtime.exceptionThrown", map[string]interface{}{
		"exceptionDetails": map[string]interface{}{
			"text": "Uncaught",
			"exception": map[string]interface{}{
				"description": "TypeError: x is not a function",
			},
		},
	}))
	// Non-log events are dropped.
	require.NoError(t, srv.Emit("w1", "Page.loadEventFired", map[string]interface{}{}))

	buf := sup.Buffer()
	require.Eventually(t, func() bool { return buf.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	entries, _ := buf.Query(logbuf.Filter{})
	require.Len(t, entries, 2)

	assert.Equal(t, "debug", entries[0].Level, "verbose maps to debug")
	assert.Equal(t, "log.network", entries[0].Source)
	assert.Equal(t, "request finished", entries[0].Text)

	assert.Equal(t, "error", entries[1].Level)
	assert.Equal(t, "exception", entries[1].Source)
	assert.Equal(t, "TypeError: x is not a function", entries[1].Text)
}

func TestSupervisor_SequencesInterleaveAcrossTargets(t *testing.T) {
	srv := cdptest.NewServer("w1", "w2")
	defer srv.Close()

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	for i := 0; i < 5; i++ {
		require.NoError(t, srv.Emit("w1", "Runtime.consoleAPICalled", consoleParams("from w1")))
		require.NoError(t, srv.Emit("w2", "Runtime.consoleAPICalled", consoleParams("from w2")))
	}

	buf := sup.Buffer()
	require.Eventually(t, func() bool { return buf.Len() == 10 }, 2*time.Second, 10*time.Millisecond)

	entries, _ := buf.Query(logbuf.Filter{})
	var last uint64
	for _, e := range entries {
		assert.Greater(t, e.Sequence, last, "global sequence across targets")
		last = e.Sequence
	}

	w1, _ := sup.Buffer().Query(logbuf.Filter{TargetID: "w1"})
	assert.Len(t, w1, 5)
}

func consoleParams(text string) map[string]interface{} {
	return map[string]interface{}{
		"type": "log",
		"args": []map[string]interface{}{{"type": "string", "value": text}},
	}
}
