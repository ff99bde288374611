package debug

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glasspane/glasspane/internal/cdp"
)

// Rect is an element's bounding rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Eval evaluates a JavaScript expression in the target's page context
// and returns its JSON value.
func (s *Supervisor) Eval(ctx context.Context, targetID, expression string) (interface{}, error) {
	c, err := s.conn(targetID)
	if err != nil {
		return nil, err
	}
	return s.evalOn(ctx, c, expression)
}

// evalOn runs an expression with returnByValue and surfaces script
// exceptions as errors.
func (s *Supervisor) evalOn(ctx context.Context, c *cdp.Conn, expression string) (interface{}, error) {
	result, err := c.Call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			Type  string      `json:"type"`
			Value interface{} `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parsing evaluate response: %w", err)
	}

	if resp.ExceptionDetails != nil {
		text := resp.ExceptionDetails.Text
		if resp.ExceptionDetails.Exception.Description != "" {
			text = resp.ExceptionDetails.Exception.Description
		}
		return nil, fmt.Errorf("script exception: %s", text)
	}

	return resp.Result.Value, nil
}

// boundingBox resolves a selector to its bounding rectangle, or
// ErrElementNotFound when nothing matches.
func (s *Supervisor) boundingBox(ctx context.Context, c *cdp.Conn, selector string) (*Rect, error) {
	js := fmt.Sprintf(`
		(function() {
			const el = document.querySelector(%q);
			if (!el) return null;
			const rect = el.getBoundingClientRect();
			return { x: rect.x, y: rect.y, width: rect.width, height: rect.height };
		})()
	`, selector)

	value, err := s.evalOn(ctx, c, js)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var rect Rect
	if err := json.Unmarshal(data, &rect); err != nil {
		return nil, fmt.Errorf("unexpected bounding box shape: %w", err)
	}
	return &rect, nil
}
