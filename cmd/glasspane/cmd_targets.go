package main

import (
	"context"

	"github.com/glasspane/glasspane/internal/cdp"
	"github.com/glasspane/glasspane/internal/debug"
)

// TargetsResult lists the targets attached by the current connection.
type TargetsResult struct {
	Host    string       `json:"host"`
	Port    int          `json:"port"`
	Targets []cdp.Target `json:"targets"`
}

// VersionResult is the version command output.
type VersionResult struct {
	Version string `json:"version"`
}

func cmdTargets(cfg *Config) int {
	return withSession(cfg, func(ctx context.Context, sup *debug.Supervisor) (interface{}, error) {
		targets, err := sup.Targets()
		if err != nil {
			return nil, err
		}
		host, port := sup.Endpoint()
		return TargetsResult{Host: host, Port: port, Targets: targets}, nil
	})
}

func cmdVersion(cfg *Config) int {
	return outputResult(cfg, VersionResult{Version: version})
}
