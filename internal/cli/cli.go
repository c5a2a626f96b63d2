// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdRun Command = iota
	CmdSessions
	CmdLogs
	CmdPolicy
	CmdAllow
	CmdPasswd
	CmdAudit
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	JSON       bool
	Quiet      bool
	Verbose    bool

	// Name is the command word as typed.
	Name string

	// Subcommand is the first positional argument of commands that have them.
	Subcommand string

	// Raw holds the positional arguments after the subcommand.
	Raw []string

	// Options holds command-specific named options (e.g., --limit, --hours)
	Options map[string]string
}

const usageText = `publicpc - public workstation session and enforcement

Usage:
  publicpc [run]                         Start the kiosk (default)
  publicpc sessions [--limit N]          List recent sessions
  publicpc logs [--hours N]              Show process and window logs
  publicpc policy show                   Show the administrator policy
  publicpc policy mode MODE              Set enforced, admin-only or unrestricted
  publicpc policy set KEY VALUE          Change one policy setting
  publicpc allow list                    List allowed programs
  publicpc allow add NAME PATH [ARGS]    Allow a program
  publicpc allow remove PATH             Remove a program
  publicpc passwd                        Set or change the administrator password
  publicpc audit [--date YYYYMMDD]       Print one day of the audit trail
  publicpc config [show|init]            Show or write config.toml
  publicpc version                       Show version information
  publicpc help                          Show this help

Policy keys:
  default-minutes, max-minutes, extension-minutes, max-extensions,
  allow-extensions, kill-disallowed

Global Flags:
  --config PATH   Use this config.toml
  --json          Output in JSON format
  -q, --quiet     Minimal output
  -v, --verbose   Debug output

Commands that change the policy ask for the administrator password first.

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("publicpc version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses args, which exclude the program name.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	if len(remaining) == 0 {
		parsedArgs.Name = "run"
		return CmdRun, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	parsedArgs.Name = cmd
	remaining = remaining[1:]

	switch cmd {
	case "run", "kiosk":
		parseCommandArgs(&parsedArgs, remaining, false)
		return CmdRun, parsedArgs

	case "sessions", "session":
		parseCommandArgs(&parsedArgs, remaining, false)
		return CmdSessions, parsedArgs

	case "logs", "log":
		parseCommandArgs(&parsedArgs, remaining, false)
		return CmdLogs, parsedArgs

	case "policy":
		parseCommandArgs(&parsedArgs, remaining, true)
		return CmdPolicy, parsedArgs

	case "allow", "programs":
		parseCommandArgs(&parsedArgs, remaining, true)
		return CmdAllow, parsedArgs

	case "passwd", "password":
		return CmdPasswd, parsedArgs

	case "audit":
		parseCommandArgs(&parsedArgs, remaining, false)
		return CmdAudit, parsedArgs

	case "config":
		parseCommandArgs(&parsedArgs, remaining, true)
		return CmdConfig, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Raw = remaining
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	parsedArgs := Args{
		Options: make(map[string]string),
	}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "--json":
			parsedArgs.JSON = true
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseCommandArgs splits the arguments of a command into named options and
// positional arguments. With subcommand set, the first positional argument
// becomes Args.Subcommand.
func parseCommandArgs(args *Args, remaining []string, subcommand bool) {
	var positional []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]

		switch {
		case arg == "--":
			positional = append(positional, remaining[i+1:]...)
			i = len(remaining)
			continue
		case strings.HasPrefix(arg, "--") && len(arg) > 2:
			name := strings.TrimPrefix(arg, "--")
			if key, value, ok := strings.Cut(name, "="); ok {
				args.Options[key] = value
			} else if i+1 < len(remaining) && !strings.HasPrefix(remaining[i+1], "--") {
				i++
				args.Options[name] = remaining[i]
			} else {
				args.Options[name] = "true"
			}
		default:
			positional = append(positional, arg)
		}
		i++
	}

	if subcommand && len(positional) > 0 {
		args.Subcommand = strings.ToLower(positional[0])
		positional = positional[1:]
	}
	args.Raw = positional
}

// intOption returns the named option as a positive integer, or def when it
// is absent.
func (a Args) intOption(name string, def int) (int, error) {
	raw, ok := a.Options[name]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, NewValidationError("--"+name, raw, "must be a positive whole number")
	}
	return n, nil
}
