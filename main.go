// publicpc - session and enforcement engine for public workstations.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jeranaias/publicpc/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	if !args.Verbose {
		log.SetOutput(io.Discard)
	}

	var err error
	switch cmd {
	case cli.CmdRun:
		err = cli.HandleRun(args)
	case cli.CmdSessions:
		err = cli.HandleSessions(args)
	case cli.CmdLogs:
		err = cli.HandleLogs(args)
	case cli.CmdPolicy:
		err = cli.HandlePolicy(args)
	case cli.CmdAllow:
		err = cli.HandleAllow(args)
	case cli.CmdPasswd:
		err = cli.HandlePasswd(args)
	case cli.CmdAudit:
		err = cli.HandleAudit(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args.Name)
		cli.PrintUsage()
		os.Exit(cli.ExitUsageError)
	}

	if err != nil {
		cli.DisplayError(err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}
