package debug_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/glasspane/internal/cdp/cdptest"
	"github.com/glasspane/glasspane/internal/debug"
)

var fakeImage = []byte("\x89PNG fake image bytes")

// captureHandler answers the layout and screenshot commands a capture
// issues, with a 800x600 viewport inside 800x2000 of content.
func captureHandler(call cdptest.Call) *cdptest.Reply {
	switch call.Method {
	case "Page.getLayoutMetrics":
		return cdptest.OK(map[string]interface{}{
			"cssLayoutViewport": map[string]interface{}{
				"clientWidth": 800, "clientHeight": 600,
			},
			"cssContentSize": map[string]interface{}{
				"width": 800, "height": 2000,
			},
		})
	case "Page.captureScreenshot":
		return cdptest.OK(map[string]interface{}{
			"data": base64.StdEncoding.EncodeToString(fakeImage),
		})
	case "Runtime.evaluate":
		return evalReply(map[string]interface{}{
			"x": 100, "y": 200, "width": 300, "height": 80,
		})
	default:
		return cdptest.OK(nil)
	}
}

type screenshotParams struct {
	Format                string `json:"format"`
	Quality               *int   `json:"quality"`
	CaptureBeyondViewport bool   `json:"captureBeyondViewport"`
	Clip                  *struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"clip"`
}

func lastScreenshotParams(t *testing.T, srv *cdptest.Server) screenshotParams {
	t.Helper()
	calls := srv.Calls("Page.captureScreenshot")
	require.NotEmpty(t, calls)
	var p screenshotParams
	require.NoError(t, json.Unmarshal(calls[len(calls)-1].Params, &p))
	return p
}

func TestScreenshot_Viewport(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = captureHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	res, err := sup.Screenshot(context.Background(), debug.ScreenshotOptions{})
	require.NoError(t, err)

	assert.Equal(t, "png", res.Format)
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 600, res.Height)
	assert.Equal(t, fakeImage, res.Bytes)
	assert.Equal(t, len(fakeImage), res.Size)
	assert.Empty(t, res.Path)

	p := lastScreenshotParams(t, srv)
	assert.Equal(t, "png", p.Format)
	assert.Nil(t, p.Quality)
	assert.False(t, p.CaptureBeyondViewport)
	assert.Nil(t, p.Clip, "viewport capture sends no clip")
}

func TestScreenshot_FullPage(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = captureHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	res, err := sup.Screenshot(context.Background(), debug.ScreenshotOptions{FullPage: true})
	require.NoError(t, err)

	// Full page is one capture clipped to the content extent, not a
	// stitch of viewport tiles.
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 2000, res.Height)
	assert.Len(t, srv.Calls("Page.captureScreenshot"), 1)

	p := lastScreenshotParams(t, srv)
	assert.True(t, p.CaptureBeyondViewport)
	require.NotNil(t, p.Clip)
	assert.Equal(t, 0.0, p.Clip.X)
	assert.Equal(t, 800.0, p.Clip.Width)
	assert.Equal(t, 2000.0, p.Clip.Height)
}

func TestScreenshot_JpegQuality(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = captureHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	_, err := sup.Screenshot(context.Background(), debug.ScreenshotOptions{
		Format:  "jpeg",
		Quality: 70,
	})
	require.NoError(t, err)

	p := lastScreenshotParams(t, srv)
	assert.Equal(t, "jpeg", p.Format)
	require.NotNil(t, p.Quality)
	assert.Equal(t, 70, *p.Quality)
}

func TestScreenshot_QualityIgnoredForPng(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = captureHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	_, err := sup.Screenshot(context.Background(), debug.ScreenshotOptions{Quality: 70})
	require.NoError(t, err)

	p := lastScreenshotParams(t, srv)
	assert.Nil(t, p.Quality)
}

func TestScreenshot_SavePath(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = captureHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	path := filepath.Join(t.TempDir(), "shot.png")
	res, err := sup.Screenshot(context.Background(), debug.ScreenshotOptions{SavePath: path})
	require.NoError(t, err)

	assert.Equal(t, path, res.Path)
	assert.Nil(t, res.Bytes)
	assert.Equal(t, len(fakeImage), res.Size)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fakeImage, written)
}

func TestScreenshotElement_PaddedClip(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = captureHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	// Element at (100,200) 300x80 plus 10 of padding on every side.
	res, err := sup.ScreenshotElement(context.Background(), "#panel", 10, debug.ScreenshotOptions{})
	require.NoError(t, err)

	p := lastScreenshotParams(t, srv)
	require.NotNil(t, p.Clip)
	assert.Equal(t, 90.0, p.Clip.X)
	assert.Equal(t, 190.0, p.Clip.Y)
	assert.Equal(t, 320.0, p.Clip.Width)
	assert.Equal(t, 100.0, p.Clip.Height)

	assert.Equal(t, 320, res.Width)
	assert.Equal(t, 100, res.Height)
}

func TestScreenshotElement_ClampsToViewport(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			// Element hugging the top-left corner.
			return evalReply(map[string]interface{}{
				"x": 2, "y": 3, "width": 50, "height": 40,
			})
		}
		return captureHandler(call)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	_, err := sup.ScreenshotElement(context.Background(), "#corner", 20, debug.ScreenshotOptions{})
	require.NoError(t, err)

	p := lastScreenshotParams(t, srv)
	require.NotNil(t, p.Clip)
	assert.Equal(t, 0.0, p.Clip.X)
	assert.Equal(t, 0.0, p.Clip.Y)
	assert.Equal(t, 72.0, p.Clip.Width, "padding past the edge is trimmed")
	assert.Equal(t, 63.0, p.Clip.Height)
}

func TestScreenshotElement_NotFound(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()

	srv.Handle = func(call cdptest.Call) *cdptest.Reply {
		if call.Method == "Runtime.evaluate" {
			return evalReply(nil)
		}
		return captureHandler(call)
	}

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	_, err := sup.ScreenshotElement(context.Background(), "#gone", 0, debug.ScreenshotOptions{})
	assert.ErrorIs(t, err, debug.ErrElementNotFound)
	assert.Empty(t, srv.Calls("Page.captureScreenshot"))
}

func htmlHandler(call cdptest.Call) *cdptest.Reply {
	switch call.Method {
	case "DOM.getDocument":
		return cdptest.OK(map[string]interface{}{
			"root": map[string]interface{}{"nodeId": 1},
		})
	case "DOM.querySelector":
		var params struct {
			Selector string `json:"selector"`
		}
		json.Unmarshal(call.Params, &params)
		if params.Selector == "#gone" {
			return cdptest.OK(map[string]interface{}{"nodeId": 0})
		}
		return cdptest.OK(map[string]interface{}{"nodeId": 7})
	case "DOM.getOuterHTML":
		var params struct {
			NodeID int `json:"nodeId"`
		}
		json.Unmarshal(call.Params, &params)
		if params.NodeID == 1 {
			return cdptest.OK(map[string]interface{}{"outerHTML": "<html><body>whole page</body></html>"})
		}
		return cdptest.OK(map[string]interface{}{"outerHTML": "<div id=\"panel\">inner</div>"})
	default:
		return cdptest.OK(nil)
	}
}

func TestGetHTML_Document(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = htmlHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	html, err := sup.GetHTML(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "<html><body>whole page</body></html>", html)
	assert.Empty(t, srv.Calls("DOM.querySelector"), "no selector means the document root")
}

func TestGetHTML_Selector(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = htmlHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	html, err := sup.GetHTML(context.Background(), "", "#panel")
	require.NoError(t, err)
	assert.Equal(t, "<div id=\"panel\">inner</div>", html)
}

func TestGetHTML_SelectorNotFound(t *testing.T) {
	srv := cdptest.NewServer("w1")
	defer srv.Close()
	srv.Handle = htmlHandler

	sup := newSupervisor()
	defer sup.Disconnect()
	connect(t, sup, srv)

	_, err := sup.GetHTML(context.Background(), "", "#gone")
	assert.ErrorIs(t, err, debug.ErrElementNotFound)
}
