package main

import (
	"context"
	"encoding/base64"
	"flag"

	"github.com/glasspane/glasspane/internal/debug"
)

// CaptureSummary is the screenshot command output. Data carries the
// base64 image when no --out path was given.
type CaptureSummary struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
	Path   string `json:"path,omitempty"`
	Data   string `json:"data,omitempty"`
}

func summarize(res *debug.CaptureResult) CaptureSummary {
	out := CaptureSummary{
		Format: res.Format,
		Width:  res.Width,
		Height: res.Height,
		Size:   res.Size,
		Path:   res.Path,
	}
	if res.Path == "" {
		out.Data = base64.StdEncoding.EncodeToString(res.Bytes)
	}
	return out
}

func cmdScreenshot(cfg *Config, args []string) int {
	fs := flag.NewFlagSet("screenshot", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	out := fs.String("out", "", "Output file path (default: base64 in the result)")
	format := fs.String("format", "png", "Image format: png, jpeg, webp")
	quality := fs.Int("quality", 0, "JPEG/WebP quality (1-100)")
	fullPage := fs.Bool("full-page", false, "Capture the full scrollable extent")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		res, err := sup.Screenshot(ctx, debug.ScreenshotOptions{
			TargetID: cfg.Target,
			Format:   *format,
			Quality:  *quality,
			FullPage: *fullPage,
			SavePath: *out,
		})
		if err != nil {
			return nil, err
		}
		return summarize(res), nil
	})
}

func cmdShotElement(cfg *Config, selector string, args []string) int {
	fs := flag.NewFlagSet("shot-element", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	out := fs.String("out", "", "Output file path (default: base64 in the result)")
	format := fs.String("format", "png", "Image format: png, jpeg, webp")
	quality := fs.Int("quality", 0, "JPEG/WebP quality (1-100)")
	pad := fs.Float64("pad", 0, "Padding in pixels around the element")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		res, err := sup.ScreenshotElement(ctx, selector, *pad, debug.ScreenshotOptions{
			TargetID: cfg.Target,
			Format:   *format,
			Quality:  *quality,
			SavePath: *out,
		})
		if err != nil {
			return nil, err
		}
		return summarize(res), nil
	})
}

func cmdSnapshot(cfg *Config, args []string) int {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	depth := fs.Int("depth", 0, "Maximum tree depth (default 12)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		return sup.DOMSnapshot(ctx, cfg.Target, *depth)
	})
}

// HTMLResult wraps extracted markup.
type HTMLResult struct {
	Selector string `json:"selector,omitempty"`
	HTML     string `json:"html"`
}

func cmdHTML(cfg *Config, args []string) int {
	selector := ""
	if len(args) > 0 {
		selector = args[0]
	}

	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		html, err := sup.GetHTML(ctx, cfg.Target, selector)
		if err != nil {
			return nil, err
		}
		return HTMLResult{Selector: selector, HTML: html}, nil
	})
}
