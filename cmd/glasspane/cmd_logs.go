package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/glasspane/glasspane/internal/debug"
	"github.com/glasspane/glasspane/internal/logbuf"
)

// LogsResult is one page of captured log entries plus the cursor to
// continue from.
type LogsResult struct {
	Entries []logbuf.Entry `json:"entries"`
	Cursor  uint64         `json:"cursor"`
}

func cmdLogs(cfg *Config, args []string) int {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	level := fs.String("level", "", "Comma-separated levels: debug,info,warning,error")
	target := fs.String("target", "", "Only entries from this target id")
	search := fs.String("search", "", "Only entries containing this substring")
	since := fs.Int64("since", -1, "Cursor: only entries after this sequence")
	follow := fs.Bool("follow", false, "Stream new entries as they arrive")
	duration := fs.Duration("duration", 0, "How long to collect (default 2s, 10s with --follow)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	collect := *duration
	if collect <= 0 {
		if *follow {
			collect = 10 * time.Second
		} else {
			collect = 2 * time.Second
		}
	}

	filter := logbuf.Filter{
		TargetID: *target,
		Search:   *search,
	}
	if *level != "" {
		for _, l := range strings.Split(*level, ",") {
			if l = strings.TrimSpace(l); l != "" {
				filter.Levels = append(filter.Levels, l)
			}
		}
	}

	// The cursor threads through the shell session unless the caller
	// pins one explicitly.
	if *since >= 0 {
		filter.Since = uint64(*since)
	} else if cfg.session != nil {
		filter.Since = cfg.cursor
	}

	return withSessionFor(cfg, collect, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		if *follow {
			return followLogs(ctx, cfg, sup.Buffer(), filter, collect)
		}

		// A one-shot invocation has an empty buffer at attach time, so
		// give events a window to arrive. The shell's buffer is already
		// warm and reads immediately unless a window was asked for.
		if cfg.session == nil || *duration > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(collect):
			}
		}

		entries, cursor := sup.Buffer().Query(filter)
		if cfg.session != nil {
			cfg.cursor = cursor
		}
		if entries == nil {
			entries = []logbuf.Entry{}
		}
		return LogsResult{Entries: entries, Cursor: cursor}, nil
	})
}

// FollowResult summarizes a completed --follow stream.
type FollowResult struct {
	Streamed int    `json:"streamed"`
	Cursor   uint64 `json:"cursor"`
}

// followLogs polls the buffer and emits new entries as they arrive,
// one JSON object per line, until the window closes.
func followLogs(ctx context.Context, cfg *Config, buf *logbuf.Buffer, filter logbuf.Filter, window time.Duration) (FollowResult, error) {
	enc := json.NewEncoder(cfg.Stdout)
	deadline := time.After(window)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	cursor := filter.Since
	streamed := 0
	for {
		f := filter
		f.Since = cursor
		entries, next := buf.Query(f)
		cursor = next
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return FollowResult{}, err
			}
			streamed++
		}

		done := FollowResult{Streamed: streamed, Cursor: cursor}
		select {
		case <-ctx.Done():
			return done, nil
		case <-deadline:
			if cfg.session != nil {
				cfg.cursor = cursor
			}
			return done, nil
		case <-ticker.C:
		}
	}
}

func cmdClearLogs(cfg *Config) int {
	// Only meaningful against a held session: a one-shot invocation
	// would clear a buffer nobody reads again.
	if cfg.session == nil {
		fmt.Fprintln(cfg.Stderr, "clear-logs only applies inside the shell")
		return ExitError
	}
	cfg.session.Buffer().Clear()
	return outputResult(cfg, map[string]bool{"cleared": true})
}
