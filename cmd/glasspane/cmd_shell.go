package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/glasspane/glasspane/internal/debug"
	"github.com/glasspane/glasspane/internal/logbuf"
)

// cmdShell runs the REPL. The session supervisor lives for the whole
// shell, so log cursors advance across commands and `.connect` retargets
// the one live connection instead of opening a second.
func cmdShell(cfg *Config) int {
	if cfg.session != nil {
		fmt.Fprintln(cfg.Stderr, "already inside a shell")
		return ExitError
	}

	sup := debug.NewSupervisor(logbuf.New(), cfg.logger)
	cfg.session = sup
	defer func() {
		sup.Disconnect()
		cfg.session = nil
		cfg.cursor = 0
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	if _, err := sup.Connect(ctx, cfg.Host, cfg.Port); err != nil {
		cancel()
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return ExitConnFailed
	}
	cancel()

	if !cfg.Quiet {
		host, port := sup.Endpoint()
		fmt.Fprintf(cfg.Stdout, "connected to %s:%d\n", host, port)
	}

	scanner := bufio.NewScanner(cfg.Stdin)

	for {
		fmt.Fprint(cfg.Stdout, "glasspane> ")

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// REPL-specific commands
		if line == ".quit" || line == ".exit" {
			return ExitSuccess
		}
		if strings.HasPrefix(line, ".target") {
			cfg.Target = strings.TrimSpace(strings.TrimPrefix(line, ".target"))
			fmt.Fprintf(cfg.Stdout, "target set to %q\n", cfg.Target)
			continue
		}
		if strings.HasPrefix(line, ".output ") {
			cfg.Output = strings.TrimSpace(strings.TrimPrefix(line, ".output"))
			fmt.Fprintf(cfg.Stdout, "output set to %q\n", cfg.Output)
			continue
		}
		if strings.HasPrefix(line, ".connect") {
			shellConnect(cfg, sup, strings.TrimSpace(strings.TrimPrefix(line, ".connect")))
			continue
		}

		parts := splitArgs(line)
		if len(parts) == 0 {
			continue
		}

		cmdName := parts[0]
		cmdArgs := parts[1:]

		if cmdName == "shell" {
			fmt.Fprintln(cfg.Stderr, "already inside a shell")
			continue
		}

		info, ok := commands[cmdName]
		if !ok {
			fmt.Fprintf(cfg.Stderr, "unknown command: %s\n", cmdName)
			continue
		}

		info.Run(cfg, cmdArgs)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(cfg.Stderr, "error reading input: %v\n", err)
		return ExitError
	}

	return ExitSuccess
}

// shellConnect retargets the held session. The old sessions are torn
// down before the new endpoint attaches; pending commands against them
// fail rather than resolve against the new target set.
func shellConnect(cfg *Config, sup *debug.Supervisor, arg string) {
	host, port := cfg.Host, cfg.Port
	if arg != "" {
		h, p, ok := strings.Cut(arg, ":")
		if !ok {
			fmt.Fprintln(cfg.Stderr, "usage: .connect <host>:<port>")
			return
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			fmt.Fprintf(cfg.Stderr, "bad port: %q\n", p)
			return
		}
		host, port = h, n
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	targets, err := sup.Connect(ctx, host, port)
	if err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return
	}

	cfg.Host, cfg.Port = host, port
	cfg.Target = ""
	cfg.cursor = 0
	fmt.Fprintf(cfg.Stdout, "connected to %s:%d (%d targets)\n", host, port, len(targets))
}

// splitArgs splits a shell line into arguments, honoring single and
// double quotes.
func splitArgs(line string) []string {
	var args []string
	var cur strings.Builder
	inQuote := rune(0)

	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}

	for _, r := range line {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			inQuote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return args
}
