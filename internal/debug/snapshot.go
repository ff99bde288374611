package debug

import (
	"context"
	"encoding/json"
	"fmt"
)

// SnapshotNode is one node of a layout snapshot: tag, the computed
// style properties that matter for layout diagnosis, and geometry.
// Enough to reason about layout without pixels.
type SnapshotNode struct {
	Tag        string         `json:"tag"`
	Display    string         `json:"display,omitempty"`
	Visibility string         `json:"visibility,omitempty"`
	Color      string         `json:"color,omitempty"`
	Rect       Rect           `json:"rect"`
	Children   []SnapshotNode `json:"children,omitempty"`
}

// defaultSnapshotDepth bounds the walk; deep component trees get noisy
// well before this.
const defaultSnapshotDepth = 12

// DOMSnapshot walks the rendered tree from the document root and emits
// a compact per-node structure. depth <= 0 uses the default bound.
func (s *Supervisor) DOMSnapshot(ctx context.Context, targetID string, depth int) (*SnapshotNode, error) {
	c, err := s.conn(targetID)
	if err != nil {
		return nil, err
	}

	if depth <= 0 {
		depth = defaultSnapshotDepth
	}

	js := fmt.Sprintf(`
		(function() {
			function walk(el, d, max) {
				if (!el) return null;
				const rect = el.getBoundingClientRect();
				const style = window.getComputedStyle(el);
				const node = {
					tag: el.tagName.toLowerCase(),
					display: style.display,
					visibility: style.visibility,
					color: style.color,
					rect: { x: rect.x, y: rect.y, width: rect.width, height: rect.height }
				};
				if (d < max && el.children.length > 0) {
					node.children = [];
					for (const child of el.children) {
						node.children.push(walk(child, d + 1, max));
					}
				}
				return node;
			}
			return walk(document.documentElement, 0, %d);
		})()
	`, depth)

	value, err := s.evalOn(ctx, c, js)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("document has no root element")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var root SnapshotNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unexpected snapshot shape: %w", err)
	}
	return &root, nil
}
