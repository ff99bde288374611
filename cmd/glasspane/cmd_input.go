package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/glasspane/glasspane/internal/debug"
)

// ClickResult reports what was clicked.
type ClickResult struct {
	Selector   string  `json:"selector,omitempty"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Button     string  `json:"button"`
	ClickCount int     `json:"clickCount"`
}

// parsePoint parses "x,y" into coordinates.
func parsePoint(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected x,y: %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad x coordinate: %q", xs)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad y coordinate: %q", ys)
	}
	return x, y, nil
}

func cmdClick(cfg *Config, args []string) int {
	fs := flag.NewFlagSet("click", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	at := fs.String("at", "", "Click at coordinates x,y instead of a selector")
	button := fs.String("button", "left", "Mouse button: left, middle, right")
	count := fs.Int("count", 1, "Click count (2 = double-click)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	opts := debug.ClickOptions{
		TargetID:   cfg.Target,
		Button:     *button,
		ClickCount: *count,
	}
	if rest := fs.Args(); len(rest) > 0 {
		opts.Selector = rest[0]
	}
	if *at != "" {
		x, y, err := parsePoint(*at)
		if err != nil {
			fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
			return ExitError
		}
		opts.X, opts.Y, opts.HasCoords = x, y, true
	}
	if opts.Selector == "" && !opts.HasCoords {
		return cmdMissingArg(cfg, "usage: glasspane click <selector> | click --at x,y [--button left|middle|right] [--count n]")
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		if err := sup.Click(ctx, opts); err != nil {
			return nil, err
		}
		return ClickResult{
			Selector:   opts.Selector,
			X:          opts.X,
			Y:          opts.Y,
			Button:     *button,
			ClickCount: *count,
		}, nil
	})
}

// TypeResult reports a completed typing operation.
type TypeResult struct {
	Selector string `json:"selector,omitempty"`
	Typed    int    `json:"typed"`
	Cleared  bool   `json:"cleared,omitempty"`
	Entered  bool   `json:"entered,omitempty"`
}

func cmdType(cfg *Config, text string, args []string) int {
	fs := flag.NewFlagSet("type", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	sel := fs.String("select", "", "Focus this element before typing")
	clear := fs.Bool("clear", false, "Clear existing content first")
	enter := fs.Bool("enter", false, "Press Enter after the text")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		err := sup.Type(ctx, debug.TypeOptions{
			TargetID:   cfg.Target,
			Selector:   *sel,
			Text:       text,
			Clear:      *clear,
			PressEnter: *enter,
		})
		if err != nil {
			return nil, err
		}
		return TypeResult{
			Selector: *sel,
			Typed:    len(text),
			Cleared:  *clear,
			Entered:  *enter,
		}, nil
	})
}

// KeyResult reports a dispatched key press.
type KeyResult struct {
	Key       string `json:"key"`
	Modifiers int    `json:"modifiers"`
}

// parseModifiers turns a comma list of modifier names into the wire
// bitmask: 1 alt, 2 ctrl, 4 meta, 8 shift.
func parseModifiers(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	mods := 0
	for _, name := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "alt":
			mods |= debug.ModAlt
		case "ctrl", "control":
			mods |= debug.ModCtrl
		case "meta", "cmd", "command":
			mods |= debug.ModMeta
		case "shift":
			mods |= debug.ModShift
		case "":
		default:
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
	}
	return mods, nil
}

func cmdKey(cfg *Config, key string, args []string) int {
	fs := flag.NewFlagSet("key", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	mod := fs.String("mod", "", "Comma-separated modifiers: alt, ctrl, meta, shift")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	mods, err := parseModifiers(*mod)
	if err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return ExitError
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		if err := sup.PressKey(ctx, cfg.Target, key, mods); err != nil {
			return nil, err
		}
		return KeyResult{Key: key, Modifiers: mods}, nil
	})
}
