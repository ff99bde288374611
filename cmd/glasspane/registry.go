package main

import (
	"flag"
	"fmt"
	"sort"
	"strings"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name     string
	Desc     string
	Category string
	Run      func(cfg *Config, args []string) int
}

// commands is the registry of all available commands.
var commands = map[string]CommandInfo{
	// Connection
	"targets": {Name: "targets", Desc: "List debuggable targets", Category: "Connect", Run: func(cfg *Config, args []string) int { return cmdTargets(cfg) }},
	"version": {Name: "version", Desc: "Show tool version", Category: "Connect", Run: func(cfg *Config, args []string) int { return cmdVersion(cfg) }},

	// Logs
	"logs":       {Name: "logs", Desc: "Read captured console/log events", Category: "Logs", Run: func(cfg *Config, args []string) int { return cmdLogs(cfg, args) }},
	"clear-logs": {Name: "clear-logs", Desc: "Drop captured log entries", Category: "Logs", Run: func(cfg *Config, args []string) int { return cmdClearLogs(cfg) }},

	// Capture
	"screenshot": {Name: "screenshot", Desc: "Capture the viewport or full page", Category: "Capture", Run: func(cfg *Config, args []string) int { return cmdScreenshot(cfg, args) }},
	"shot-element": {Name: "shot-element", Desc: "Capture one element's region", Category: "Capture", Run: func(cfg *Config, args []string) int {
		if len(args) < 1 {
			return cmdMissingArg(cfg, "usage: glasspane shot-element <selector> [--pad <px>] [--out <file>]")
		}
		return cmdShotElement(cfg, args[0], args[1:])
	}},
	"snapshot": {Name: "snapshot", Desc: "Dump the rendered layout tree", Category: "Capture", Run: func(cfg *Config, args []string) int { return cmdSnapshot(cfg, args) }},
	"html":     {Name: "html", Desc: "Get document or element HTML", Category: "Capture", Run: func(cfg *Config, args []string) int { return cmdHTML(cfg, args) }},

	// Interact
	"click": {Name: "click", Desc: "Click an element or point", Category: "Interact", Run: func(cfg *Config, args []string) int { return cmdClick(cfg, args) }},
	"type": {Name: "type", Desc: "Type text into the page", Category: "Interact", Run: func(cfg *Config, args []string) int {
		if len(args) < 1 {
			return cmdMissingArg(cfg, "usage: glasspane type <text> [--select <css>] [--clear] [--enter]")
		}
		return cmdType(cfg, args[0], args[1:])
	}},
	"key": {Name: "key", Desc: "Press a key, optionally with modifiers", Category: "Interact", Run: func(cfg *Config, args []string) int {
		if len(args) < 1 {
			return cmdMissingArg(cfg, "usage: glasspane key <name> [--mod alt,ctrl,meta,shift]")
		}
		return cmdKey(cfg, args[0], args[1:])
	}},
	"goto": {Name: "goto", Desc: "Navigate the target", Category: "Interact", Run: func(cfg *Config, args []string) int {
		if len(args) < 1 {
			return cmdMissingArg(cfg, "usage: glasspane goto <url>")
		}
		return cmdGoto(cfg, args[0])
	}},
	"wait": {Name: "wait", Desc: "Wait for a selector to appear", Category: "Interact", Run: func(cfg *Config, args []string) int {
		if len(args) < 1 {
			return cmdMissingArg(cfg, "usage: glasspane wait <selector> [--visible] [--timeout <duration>]")
		}
		return cmdWait(cfg, args[0], args[1:])
	}},
	"scroll": {Name: "scroll", Desc: "Scroll to a point or element", Category: "Interact", Run: func(cfg *Config, args []string) int { return cmdScroll(cfg, args) }},

	// Advanced
	"eval": {Name: "eval", Desc: "Evaluate a JavaScript expression", Category: "Advanced", Run: func(cfg *Config, args []string) int {
		if len(args) < 1 {
			return cmdMissingArg(cfg, "usage: glasspane eval <expression>")
		}
		return cmdEval(cfg, args[0])
	}},
}

func init() {
	commands["shell"] = CommandInfo{Name: "shell", Desc: "Interactive session with a held connection", Category: "Advanced", Run: func(cfg *Config, args []string) int { return cmdShell(cfg) }}
	commands["help"] = CommandInfo{Name: "help", Desc: "Show help for a command", Category: "Advanced", Run: func(cfg *Config, args []string) int { return cmdHelp(cfg, args) }}
}

// cmdMissingArg prints a usage message and returns ExitError.
func cmdMissingArg(cfg *Config, usage string) int {
	fmt.Fprintln(cfg.Stderr, usage)
	return ExitError
}

// categoryOrder defines the display order for command categories.
var categoryOrder = []string{
	"Connect",
	"Logs",
	"Capture",
	"Interact",
	"Advanced",
}

// commandsByCategory returns commands grouped by category, sorted by
// name within each category.
func commandsByCategory() []struct {
	Category string
	Commands []CommandInfo
} {
	grouped := make(map[string][]CommandInfo)
	for _, cmd := range commands {
		grouped[cmd.Category] = append(grouped[cmd.Category], cmd)
	}

	var result []struct {
		Category string
		Commands []CommandInfo
	}

	for _, cat := range categoryOrder {
		cmds := grouped[cat]
		if len(cmds) == 0 {
			continue
		}
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		result = append(result, struct {
			Category string
			Commands []CommandInfo
		}{Category: cat, Commands: cmds})
	}

	return result
}

// printUsage prints the usage message with commands grouped by category.
func printUsage(cfg *Config, fs *flag.FlagSet) {
	fmt.Fprintln(cfg.Stderr, "usage: glasspane [flags] <command>")
	fmt.Fprintln(cfg.Stderr)

	for _, group := range commandsByCategory() {
		fmt.Fprintf(cfg.Stderr, "  %s:\n", group.Category)
		names := make([]string, len(group.Commands))
		for i, cmd := range group.Commands {
			names[i] = cmd.Name
		}
		fmt.Fprintf(cfg.Stderr, "    %s\n", strings.Join(names, ", "))
		fmt.Fprintln(cfg.Stderr)
	}

	fmt.Fprintln(cfg.Stderr, "flags:")
	fs.PrintDefaults()
}

// cmdHelp shows the one-line description for a command, or the full
// grouped list when no command is named.
func cmdHelp(cfg *Config, args []string) int {
	if len(args) == 0 {
		for _, group := range commandsByCategory() {
			fmt.Fprintf(cfg.Stdout, "%s:\n", group.Category)
			for _, cmd := range group.Commands {
				fmt.Fprintf(cfg.Stdout, "  %-14s %s\n", cmd.Name, cmd.Desc)
			}
			fmt.Fprintln(cfg.Stdout)
		}
		return ExitSuccess
	}

	info, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(cfg.Stderr, "unknown command: %s\n", args[0])
		return ExitError
	}
	fmt.Fprintf(cfg.Stdout, "%s - %s\n", info.Name, info.Desc)
	return ExitSuccess
}
