package debug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glasspane/glasspane/internal/cdp"
)

// ClickOptions describes a click. Either Selector or coordinates must
// be given; a selector resolves to its rectangle's center.
type ClickOptions struct {
	TargetID   string
	Selector   string
	X, Y       float64
	HasCoords  bool
	Button     string // "left" (default), "middle", "right"
	ClickCount int    // 2 issues a double-click; default 1
}

// Click dispatches a mouse press/release at the resolved point.
func (s *Supervisor) Click(ctx context.Context, opts ClickOptions) error {
	c, err := s.conn(opts.TargetID)
	if err != nil {
		return err
	}

	x, y := opts.X, opts.Y
	if opts.Selector != "" {
		rect, err := s.boundingBox(ctx, c, opts.Selector)
		if err != nil {
			return err
		}
		x, y = rect.Center()
	} else if !opts.HasCoords {
		return errors.New("click needs a selector or coordinates")
	}

	button := opts.Button
	if button == "" {
		button = "left"
	}
	clickCount := opts.ClickCount
	if clickCount < 1 {
		clickCount = 1
	}

	if _, err := c.Call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
		"type": "mouseMoved",
		"x":    x,
		"y":    y,
	}); err != nil {
		return err
	}
	if _, err := c.Call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
		"type":       "mousePressed",
		"x":          x,
		"y":          y,
		"button":     button,
		"clickCount": clickCount,
	}); err != nil {
		return err
	}
	if _, err := c.Call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
		"type":       "mouseReleased",
		"x":          x,
		"y":          y,
		"button":     button,
		"clickCount": clickCount,
	}); err != nil {
		return err
	}
	return nil
}

// TypeOptions describes a typing operation.
type TypeOptions struct {
	TargetID   string
	Selector   string // when set, focus this element first
	Text       string
	Clear      bool // select all existing content and delete it first
	PressEnter bool // dispatch Enter after the text
}

// Type directs keystrokes at the focused element, or at the element
// Selector resolves to.
func (s *Supervisor) Type(ctx context.Context, opts TypeOptions) error {
	c, err := s.conn(opts.TargetID)
	if err != nil {
		return err
	}

	if opts.Selector != "" {
		if err := s.focus(ctx, c, opts.Selector); err != nil {
			return err
		}
	}

	if opts.Clear {
		if _, err := s.evalOn(ctx, c,
			`document.execCommand('selectAll'); document.execCommand('delete'); true`); err != nil {
			return err
		}
	}

	if _, err := c.Call(ctx, "Input.insertText", map[string]interface{}{
		"text": opts.Text,
	}); err != nil {
		return err
	}

	if opts.PressEnter {
		return s.PressKey(ctx, opts.TargetID, "Enter", 0)
	}
	return nil
}

// focus resolves a selector via the DOM domain and focuses the node.
func (s *Supervisor) focus(ctx context.Context, c *cdp.Conn, selector string) error {
	docResult, err := c.Call(ctx, "DOM.getDocument", nil)
	if err != nil {
		return err
	}
	var docResp struct {
		Root struct {
			NodeID int `json:"nodeId"`
		} `json:"root"`
	}
	if err := json.Unmarshal(docResult, &docResp); err != nil {
		return fmt.Errorf("parsing document response: %w", err)
	}

	queryResult, err := c.Call(ctx, "DOM.querySelector", map[string]interface{}{
		"nodeId":   docResp.Root.NodeID,
		"selector": selector,
	})
	if err != nil {
		return err
	}
	var queryResp struct {
		NodeID int `json:"nodeId"`
	}
	if err := json.Unmarshal(queryResult, &queryResp); err != nil {
		return fmt.Errorf("parsing query response: %w", err)
	}
	if queryResp.NodeID == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}

	_, err = c.Call(ctx, "DOM.focus", map[string]interface{}{
		"nodeId": queryResp.NodeID,
	})
	return err
}

// Navigate issues a navigation without waiting for load completion;
// callers combine it with WaitFor.
func (s *Supervisor) Navigate(ctx context.Context, targetID, url string) error {
	c, err := s.conn(targetID)
	if err != nil {
		return err
	}

	result, err := c.Call(ctx, "Page.navigate", map[string]interface{}{
		"url": url,
	})
	if err != nil {
		return err
	}

	var resp struct {
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("parsing navigate response: %w", err)
	}
	if resp.ErrorText != "" {
		return fmt.Errorf("navigation failed: %s", resp.ErrorText)
	}
	return nil
}

// ScrollTo scrolls the page to explicit coordinates.
func (s *Supervisor) ScrollTo(ctx context.Context, targetID string, x, y float64) error {
	c, err := s.conn(targetID)
	if err != nil {
		return err
	}
	_, err = s.evalOn(ctx, c, fmt.Sprintf(`window.scrollTo(%g, %g); true`, x, y))
	return err
}

// ScrollIntoView scrolls the first element matching selector into view.
func (s *Supervisor) ScrollIntoView(ctx context.Context, targetID, selector string) error {
	c, err := s.conn(targetID)
	if err != nil {
		return err
	}

	js := fmt.Sprintf(`
		(function() {
			const el = document.querySelector(%q);
			if (!el) return false;
			el.scrollIntoView({ block: 'center', inline: 'center' });
			return true;
		})()
	`, selector)

	value, err := s.evalOn(ctx, c, js)
	if err != nil {
		return err
	}
	if found, _ := value.(bool); !found {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}
