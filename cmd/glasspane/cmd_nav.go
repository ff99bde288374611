package main

import (
	"context"
	"flag"
	"time"

	"github.com/glasspane/glasspane/internal/debug"
)

// GotoResult reports a navigation that was issued.
type GotoResult struct {
	URL string `json:"url"`
}

func cmdGoto(cfg *Config, url string) int {
	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		if err := sup.Navigate(ctx, cfg.Target, url); err != nil {
			return nil, err
		}
		return GotoResult{URL: url}, nil
	})
}

// WaitResult reports a satisfied wait.
type WaitResult struct {
	Selector string `json:"selector"`
	Visible  bool   `json:"visible,omitempty"`
	Elapsed  string `json:"elapsed"`
}

func cmdWait(cfg *Config, selector string, args []string) int {
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	visible := fs.Bool("visible", false, "Require the element to be visibly rendered")
	timeout := fs.Duration("timeout", 10*time.Second, "How long to wait before failing")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	return withSessionFor(cfg, *timeout, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		start := time.Now()
		err := sup.WaitFor(ctx, debug.WaitOptions{
			TargetID: cfg.Target,
			Selector: selector,
			Visible:  *visible,
			Timeout:  *timeout,
		})
		if err != nil {
			return nil, err
		}
		return WaitResult{
			Selector: selector,
			Visible:  *visible,
			Elapsed:  time.Since(start).Round(time.Millisecond).String(),
		}, nil
	})
}

// ScrollResult reports a completed scroll.
type ScrollResult struct {
	Selector string  `json:"selector,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
}

func cmdScroll(cfg *Config, args []string) int {
	fs := flag.NewFlagSet("scroll", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	to := fs.String("to", "", "Scroll to coordinates x,y")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	selector := ""
	if rest := fs.Args(); len(rest) > 0 {
		selector = rest[0]
	}
	if selector == "" && *to == "" {
		return cmdMissingArg(cfg, "usage: glasspane scroll <selector> | scroll --to x,y")
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		if selector != "" {
			if err := sup.ScrollIntoView(ctx, cfg.Target, selector); err != nil {
				return nil, err
			}
			return ScrollResult{Selector: selector}, nil
		}

		x, y, err := parsePoint(*to)
		if err != nil {
			return nil, err
		}
		if err := sup.ScrollTo(ctx, cfg.Target, x, y); err != nil {
			return nil, err
		}
		return ScrollResult{X: x, Y: y}, nil
	})
}

// EvalResult wraps an evaluated expression's value.
type EvalResult struct {
	Value interface{} `json:"value"`
}

func cmdEval(cfg *Config, expression string) int {
	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		value, err := sup.Eval(ctx, cfg.Target, expression)
		if err != nil {
			return nil, err
		}
		return EvalResult{Value: value}, nil
	})
}
