package debug

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/glasspane/glasspane/internal/cdp"
)

// ScreenshotOptions configures a page or element capture.
type ScreenshotOptions struct {
	TargetID string
	Format   string // "png" (default), "jpeg", "webp"
	Quality  int    // lossy formats only
	FullPage bool
	SavePath string // when set, bytes are written here instead of returned
}

// CaptureResult describes a completed capture. Exactly one of Bytes and
// Path is populated, depending on whether a save path was given.
type CaptureResult struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
	Path   string `json:"path,omitempty"`
	Bytes  []byte `json:"-"`
}

type layoutMetrics struct {
	viewportWidth  float64
	viewportHeight float64
	contentWidth   float64
	contentHeight  float64
}

func (s *Supervisor) layoutMetrics(ctx context.Context, c *cdp.Conn) (*layoutMetrics, error) {
	result, err := c.Call(ctx, "Page.getLayoutMetrics", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		CSSLayoutViewport struct {
			ClientWidth  float64 `json:"clientWidth"`
			ClientHeight float64 `json:"clientHeight"`
		} `json:"cssLayoutViewport"`
		CSSContentSize struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"cssContentSize"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parsing layout metrics: %w", err)
	}

	return &layoutMetrics{
		viewportWidth:  resp.CSSLayoutViewport.ClientWidth,
		viewportHeight: resp.CSSLayoutViewport.ClientHeight,
		contentWidth:   resp.CSSContentSize.Width,
		contentHeight:  resp.CSSContentSize.Height,
	}, nil
}

// Screenshot captures the viewport, or the full scrollable extent when
// FullPage is set.
func (s *Supervisor) Screenshot(ctx context.Context, opts ScreenshotOptions) (*CaptureResult, error) {
	c, err := s.conn(opts.TargetID)
	if err != nil {
		return nil, err
	}

	metrics, err := s.layoutMetrics(ctx, c)
	if err != nil {
		return nil, err
	}

	format := opts.Format
	if format == "" {
		format = "png"
	}

	params := map[string]interface{}{"format": format}
	if opts.Quality > 0 && (format == "jpeg" || format == "webp") {
		params["quality"] = opts.Quality
	}

	width, height := metrics.viewportWidth, metrics.viewportHeight
	if opts.FullPage {
		width, height = metrics.contentWidth, metrics.contentHeight
		params["captureBeyondViewport"] = true
		params["clip"] = map[string]interface{}{
			"x": 0, "y": 0,
			"width":  width,
			"height": height,
			"scale":  1,
		}
	}

	data, err := s.captureScreenshot(ctx, c, params)
	if err != nil {
		return nil, err
	}

	return s.finishCapture(data, format, int(width), int(height), opts.SavePath)
}

// ScreenshotElement resolves selector to its bounding rectangle,
// expands it by padding, clamps to the viewport, and captures that
// region.
func (s *Supervisor) ScreenshotElement(ctx context.Context, selector string, padding float64, opts ScreenshotOptions) (*CaptureResult, error) {
	c, err := s.conn(opts.TargetID)
	if err != nil {
		return nil, err
	}

	rect, err := s.boundingBox(ctx, c, selector)
	if err != nil {
		return nil, err
	}

	metrics, err := s.layoutMetrics(ctx, c)
	if err != nil {
		return nil, err
	}

	clip := clampRect(Rect{
		X:      rect.X - padding,
		Y:      rect.Y - padding,
		Width:  rect.Width + 2*padding,
		Height: rect.Height + 2*padding,
	}, metrics.viewportWidth, metrics.viewportHeight)

	format := opts.Format
	if format == "" {
		format = "png"
	}

	params := map[string]interface{}{
		"format": format,
		"clip": map[string]interface{}{
			"x":      clip.X,
			"y":      clip.Y,
			"width":  clip.Width,
			"height": clip.Height,
			"scale":  1,
		},
	}
	if opts.Quality > 0 && (format == "jpeg" || format == "webp") {
		params["quality"] = opts.Quality
	}

	data, err := s.captureScreenshot(ctx, c, params)
	if err != nil {
		return nil, err
	}

	return s.finishCapture(data, format, int(clip.Width), int(clip.Height), opts.SavePath)
}

func (s *Supervisor) captureScreenshot(ctx context.Context, c *cdp.Conn, params map[string]interface{}) ([]byte, error) {
	result, err := c.Call(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parsing screenshot response: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot data: %w", err)
	}
	return data, nil
}

func (s *Supervisor) finishCapture(data []byte, format string, width, height int, savePath string) (*CaptureResult, error) {
	res := &CaptureResult{
		Format: format,
		Width:  width,
		Height: height,
		Size:   len(data),
	}
	if savePath == "" {
		res.Bytes = data
		return res, nil
	}
	if err := os.WriteFile(savePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing capture: %w", err)
	}
	res.Path = savePath
	return res, nil
}

// clampRect trims a rectangle to the viewport, keeping at least a
// 1-pixel extent so a fully off-screen clip still captures.
func clampRect(r Rect, maxW, maxH float64) Rect {
	if r.X < 0 {
		r.Width += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.Height += r.Y
		r.Y = 0
	}
	if maxW > 0 && r.X+r.Width > maxW {
		r.Width = maxW - r.X
	}
	if maxH > 0 && r.Y+r.Height > maxH {
		r.Height = maxH - r.Y
	}
	if r.Width < 1 {
		r.Width = 1
	}
	if r.Height < 1 {
		r.Height = 1
	}
	return r
}

// GetHTML returns the outer markup of the document root, or of the
// first element matching selector when one is given.
func (s *Supervisor) GetHTML(ctx context.Context, targetID, selector string) (string, error) {
	c, err := s.conn(targetID)
	if err != nil {
		return "", err
	}

	docResult, err := c.Call(ctx, "DOM.getDocument", nil)
	if err != nil {
		return "", err
	}
	var docResp struct {
		Root struct {
			NodeID int `json:"nodeId"`
		} `json:"root"`
	}
	if err := json.Unmarshal(docResult, &docResp); err != nil {
		return "", fmt.Errorf("parsing document response: %w", err)
	}

	nodeID := docResp.Root.NodeID
	if selector != "" {
		queryResult, err := c.Call(ctx, "DOM.querySelector", map[string]interface{}{
			"nodeId":   nodeID,
			"selector": selector,
		})
		if err != nil {
			return "", err
		}
		var queryResp struct {
			NodeID int `json:"nodeId"`
		}
		if err := json.Unmarshal(queryResult, &queryResp); err != nil {
			return "", fmt.Errorf("parsing query response: %w", err)
		}
		if queryResp.NodeID == 0 {
			return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
		}
		nodeID = queryResp.NodeID
	}

	htmlResult, err := c.Call(ctx, "DOM.getOuterHTML", map[string]interface{}{
		"nodeId": nodeID,
	})
	if err != nil {
		return "", err
	}
	var htmlResp struct {
		OuterHTML string `json:"outerHTML"`
	}
	if err := json.Unmarshal(htmlResult, &htmlResp); err != nil {
		return "", fmt.Errorf("parsing HTML response: %w", err)
	}
	return htmlResp.OuterHTML, nil
}
