package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/cdp"
	"github.com/glasspane/glasspane/internal/debug"
	"github.com/glasspane/glasspane/internal/logbuf"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitError      = 1
	ExitConnFailed = 2
	ExitTimeout    = 3
)

const version = "0.3.0"

// Config holds the CLI configuration.
type Config struct {
	Port    int
	Host    string
	Timeout time.Duration
	Output  string // json, ndjson, text
	Quiet   bool
	Target  string // default target id for commands

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	logger *zap.Logger

	// session is the live supervisor inside the shell; one-shot
	// commands attach and detach per invocation instead.
	session *debug.Supervisor
	// cursor threads the log read position across shell commands.
	cursor uint64
}

// DefaultConfig returns the built-in defaults. The rc file, environment
// and flags are layered on later in the config chain.
func DefaultConfig() *Config {
	return &Config{
		Port:    9222,
		Host:    "localhost",
		Timeout: 10 * time.Second,
		Output:  "json",
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func main() {
	cfg := DefaultConfig()
	os.Exit(run(os.Args[1:], cfg))
}

// flagValues stores values parsed from CLI flags before the rest of the
// config chain gets a chance to overwrite them.
type flagValues struct {
	port    int
	host    string
	timeout time.Duration
	output  string
	quiet   bool
	target  string
}

func run(args []string, cfg *Config) int {
	var fv flagValues
	fs := flag.NewFlagSet("glasspane", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	fs.IntVar(&fv.port, "port", cfg.Port, "Debug endpoint port (env: GLASSPANE_PORT)")
	fs.StringVar(&fv.host, "host", cfg.Host, "Debug endpoint host (env: GLASSPANE_HOST)")
	fs.DurationVar(&fv.timeout, "timeout", cfg.Timeout, "Command timeout")
	fs.StringVar(&fv.output, "output", cfg.Output, "Output format: json, ndjson, text (env: GLASSPANE_OUTPUT)")
	fs.BoolVar(&fv.quiet, "quiet", cfg.Quiet, "Suppress non-essential output")
	fs.StringVar(&fv.target, "target", cfg.Target, "Target window id (env: GLASSPANE_TARGET)")

	fs.Usage = func() { printUsage(cfg, fs) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitError
	}

	// Track which flags were explicitly set on the command line.
	explicitFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = true
	})

	// Config precedence: built-in defaults < .glasspanerc < env vars < CLI flags
	loadConfigFile(cfg)
	applyEnvVars(cfg, explicitFlags)
	reapplyExplicitFlags(cfg, &fv, explicitFlags)

	if cfg.logger == nil {
		cfg.logger = newLogger()
	}

	remaining := fs.Args()
	if len(remaining) < 1 {
		printUsage(cfg, fs)
		return ExitError
	}

	cmd := remaining[0]

	info, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(cfg.Stderr, "unknown command: %s\n", cmd)
		return ExitError
	}
	return info.Run(cfg, remaining[1:])
}

// newLogger builds the diagnostic logger. Nop unless GLASSPANE_LOG asks
// for output; debug wiring goes to stderr so it never pollutes results.
func newLogger() *zap.Logger {
	switch os.Getenv("GLASSPANE_LOG") {
	case "debug", "info":
		logger, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return logger
	default:
		return zap.NewNop()
	}
}

// applyEnvVars applies environment variables to cfg, but only for
// fields not already set by explicit CLI flags.
func applyEnvVars(cfg *Config, explicit map[string]bool) {
	if !explicit["port"] {
		if v := os.Getenv("GLASSPANE_PORT"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				cfg.Port = i
			}
		}
	}
	if !explicit["host"] {
		if v := os.Getenv("GLASSPANE_HOST"); v != "" {
			cfg.Host = v
		}
	}
	if !explicit["target"] {
		if v := os.Getenv("GLASSPANE_TARGET"); v != "" {
			cfg.Target = v
		}
	}
	if !explicit["output"] {
		if v := os.Getenv("GLASSPANE_OUTPUT"); v != "" {
			cfg.Output = v
		}
	}
}

// reapplyExplicitFlags re-applies flag values that were explicitly set
// on the command line, since the rc file may have overwritten them.
func reapplyExplicitFlags(cfg *Config, fv *flagValues, explicit map[string]bool) {
	if explicit["port"] {
		cfg.Port = fv.port
	}
	if explicit["host"] {
		cfg.Host = fv.host
	}
	if explicit["timeout"] {
		cfg.Timeout = fv.timeout
	}
	if explicit["output"] {
		cfg.Output = fv.output
	}
	if explicit["quiet"] {
		cfg.Quiet = fv.quiet
	}
	if explicit["target"] {
		cfg.Target = fv.target
	}
}

// withSession executes fn against a connected supervisor. Inside the
// shell the long-lived session is reused (connecting it on first use);
// one-shot invocations attach for the duration of the command only.
func withSession(cfg *Config, fn func(ctx context.Context, sup *debug.Supervisor) (interface{}, error)) int {
	return withSessionFor(cfg, 0, fn)
}

// withSessionFor is withSession with extra headroom on the deadline,
// for commands that deliberately spend time (log collection, waits).
func withSessionFor(cfg *Config, extra time.Duration, fn func(ctx context.Context, sup *debug.Supervisor) (interface{}, error)) int {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+extra)
	defer cancel()

	sup := cfg.session
	if sup == nil {
		sup = debug.NewSupervisor(logbuf.New(), cfg.logger)
		if _, err := sup.Connect(ctx, cfg.Host, cfg.Port); err != nil {
			fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
			return ExitConnFailed
		}
		defer sup.Disconnect()
	} else if !sup.Connected() {
		if _, err := sup.Connect(ctx, cfg.Host, cfg.Port); err != nil {
			fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
			return ExitConnFailed
		}
	}

	result, err := fn(ctx, sup)
	if err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return exitCode(ctx, err)
	}

	return outputResult(cfg, result)
}

// exitCode maps a command failure onto the exit-code contract.
func exitCode(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, cdp.ErrDirectoryUnreachable),
		errors.Is(err, cdp.ErrAttachFailed):
		return ExitConnFailed
	case errors.Is(err, cdp.ErrCommandTimeout),
		errors.Is(err, debug.ErrWaitTimeout),
		ctx.Err() == context.DeadlineExceeded:
		return ExitTimeout
	default:
		return ExitError
	}
}
