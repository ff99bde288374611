package debug_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/glasspane/internal/cdp/cdptest"
	"github.com/glasspane/glasspane/internal/debug"
)

func TestWaitFor_SucceedsAfterPolling(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	var probes atomic.Int64
	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			// Element appears on the third probe.
			return evalReply(probes.Add(1) >= 3)
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	start := time.Now()
	err := sup.WaitFor(context.Background(), debug.WaitOptions{
		Selector: "#late",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 2*debug.PollInterval)
	assert.EqualValues(t, 3, probes.Load())
}

func TestWaitFor_TimeoutWindow(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply(false)
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	timeout := 500 * time.Millisecond
	start := time.Now()
	err := sup.WaitFor(context.Background(), debug.WaitOptions{
		Selector: "#never",
		Timeout:  timeout,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, debug.ErrWaitTimeout)
	assert.Contains(t, err.Error(), "#never")

	// Failure must come no earlier than the timeout, and no later than
	// one poll interval past it (plus scheduling slack).
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+debug.PollInterval+300*time.Millisecond)
}

func TestWaitFor_VisibleChecksComputedStyle(t *testing.T) {
	srv := cdptest.NewServer("w1")
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

	require.NoError(t, sup.WaitFor(context.Background(), debug.WaitOptions{
		Selector: "#panel",
		Visible:  true,
	}))

	evals := srv.Calls("Runtime.evaluate")
	require.Len(t, evals, 1)
	expr := string(evals[0].Params)
	assert.Contains(t, expr, "getComputedStyle")
	assert.Contains(t, expr, "getBoundingClientRect")
}

func TestWaitFor_ContextCancel(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply(false)
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := sup.WaitFor(ctx, debug.WaitOptions{
		Selector: "#never",
		Timeout:  10 * time.Second,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDOMSnapshot(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply(map[string]interface{}{
				"tag":        "html",
				"display":    "block",
				"visibility": "visible",
				"color":      "rgb(0, 0, 0)",
				"rect":       map[string]interface{}{"x": 0, "y": 0, "width": 800, "height": 600},
				"children": []map[string]interface{}{
					{
						"tag":        "body",
						"display":    "flex",
						"visibility": "visible",
						"rect":       map[string]interface{}{"x": 0, "y": 0, "width": 800, "height": 600},
					},
				},
			})
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	root, err := sup.DOMSnapshot(context.Background(), "", 0)
	require.NoError(t, err)

	assert.Equal(t, "html", root.Tag)
	assert.Equal(t, "block", root.Display)
	assert.Equal(t, 800.0, root.Rect.Width)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "body", root.Children[0].Tag)
	assert.Equal(t, "flex", root.Children[0].Display)
}

func TestDOMSnapshot_DepthBoundInExpression(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply(map[string]interface{}{
				"tag":  "html",
				"rect": map[string]interface{}{"x": 0, "y": 0, "width": 1, "height": 1},
			})
		}
		return cdptest.OK(nil)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	_, err := sup.DOMSnapshot(context.Background(), "", 3)
	require.NoError(t, err)

	evals := srv.Calls("Runtime.evaluate")
	require.Len(t, evals, 1)
	assert.Contains(t, string(evals[0].Params), "0, 3)")
}
