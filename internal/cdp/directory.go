package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Target describes one inspectable surface (window/renderer) exposed by
// the debugged application's directory endpoint. Targets are discovered
// fresh on every listing and never persisted.
type Target struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"` // "page", "worker", or the raw type for anything else
	Title    string `json:"title"`
	URL      string `json:"url"`
	Endpoint string `json:"endpoint"` // websocket debugger URL
	Attached bool   `json:"attached"`
}

// directoryClient is shared across listings; the directory is a plain
// HTTP endpoint and a short timeout keeps unreachable hosts from
// stalling a connect.
var directoryClient = &http.Client{Timeout: 10 * time.Second}

// ListTargets fetches the target directory at host:port and returns the
// debuggable targets it enumerates. It does not retry; the caller
// decides whether a failed listing is worth another attempt.
func ListTargets(ctx context.Context, host string, port int) ([]Target, error) {
	url := fmt.Sprintf("http://%s:%d/json", host, port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrDirectoryUnreachable, err)
	}

	resp, err := directoryClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: directory returned status %d", ErrDirectoryMalformed, resp.StatusCode)
	}

	var raw []struct {
		ID                   string `json:"id"`
		Type                 string `json:"type"`
		Title                string `json:"title"`
		URL                  string `json:"url"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding target list: %v", ErrDirectoryMalformed, err)
	}

	targets := make([]Target, 0, len(raw))
	for _, t := range raw {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: target entry missing id", ErrDirectoryMalformed)
		}
		kind := t.Type
		switch kind {
		case "page", "worker":
		default:
			if kind == "" {
				kind = "other"
			}
		}
		targets = append(targets, Target{
			ID:       t.ID,
			Kind:     kind,
			Title:    t.Title,
			URL:      t.URL,
			Endpoint: t.WebSocketDebuggerURL,
		})
	}

	return targets, nil
}
