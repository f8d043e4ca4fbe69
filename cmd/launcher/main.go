// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Command launcher drives the extension engine from a terminal: install and
// enable extensions, fan queries out to them, ask the assistant and serve
// the enabled set over MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jllopis/launcher/pkg/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global, args, err := parseGlobalFlags(args)
	if err != nil {
		return report(stderr, NewInvalidArgumentError("flags", err.Error()), false)
	}
	if global.Help || len(args) == 0 {
		printUsage(stdout)
		return 0
	}

	cmd := args[0]
	switch cmd {
	case "help":
		printUsage(stdout)
		return 0
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		return report(stderr, NewConfigError(err, configPath(global.ConfigArgs)), global.JSON)
	}

	c := &cli{flags: global, cfg: cfg, out: stdout, errOut: stderr}
	if err := c.dispatch(ctx, cmd, args[1:]); err != nil {
		return report(stderr, err, global.JSON)
	}
	return 0
}

// configFlags are forwarded to the config loader untouched.
var configFlags = map[string]bool{"--config": true, "--set": true, "--profile": true, "--env": true}

// parseGlobalFlags consumes flags up to the first command word.
func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var g globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return g, args[i+1:], nil
		case !strings.HasPrefix(arg, "-"):
			return g, args[i:], nil
		case arg == "-h", arg == "--help":
			g.Help = true
			return g, nil, nil
		case arg == "--json":
			g.JSON = true
			continue
		}

		name, _, inline := strings.Cut(arg, "=")
		if !configFlags[name] {
			return g, nil, fmt.Errorf("unknown flag %q", arg)
		}
		if inline {
			g.ConfigArgs = append(g.ConfigArgs, arg)
			continue
		}
		if i+1 == len(args) {
			return g, nil, fmt.Errorf("missing value for %s", arg)
		}
		g.ConfigArgs = append(g.ConfigArgs, arg, args[i+1])
		i++
	}
	return g, nil, nil
}

// configPath reports the --config value from forwarded config flags.
func configPath(args []string) string {
	path := ""
	for i := 0; i < len(args); i++ {
		if v, ok := strings.CutPrefix(args[i], "--config="); ok {
			path = v
		} else if args[i] == "--config" && i+1 < len(args) {
			path = args[i+1]
			i++
		}
	}
	return path
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Launcher CLI

Usage:
  launcher [global flags] <command> [args]

Global flags:
  --config <path>      Path to launcher.yaml
  --profile <name>     Merge launcher.<name>.yaml over the config (alias --env)
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  list                          installed extensions and their state
  available                     extension ids the loader can resolve
  install <file|id>             store an artifact and load it
  uninstall <id>
  enable <id>                   enable after the permission review
  disable <id>
  query [--app A] [--clipboard C] <text>
  ask [--app A] [--clipboard C] <text>
  search <text>
  widgets
  themes
  event start|drawer|launched <app>|longpress <row> <col>
  status
  mcp                           serve the enabled extensions over MCP stdio
  version
`)
}
