// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/publicpc/internal/config"
)

// HandleConfig handles "config show|init".
func HandleConfig(args Args) error {
	path := args.ConfigPath
	if path == "" {
		path = config.ConfigPath()
	}

	switch args.Subcommand {
	case "", "show":
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		return runConfigShow(cfg, path, args, os.Stdout)
	case "init":
		return runConfigInit(path, args, os.Stdout)
	default:
		return NewValidationErrorWithExample("config subcommand", args.Subcommand, "unknown", "publicpc config [show|init]")
	}
}

func runConfigShow(cfg *config.Config, path string, args Args, out io.Writer) error {
	if args.JSON {
		return NewJSONResponse("config", cfg).Write(out)
	}
	fmt.Fprintln(out, DimStyle.Render("# "+path))
	fmt.Fprint(out, cfg.String())
	return nil
}

// runConfigInit writes the default configuration. An existing file is kept
// unless --force is given.
func runConfigInit(path string, args Args, out io.Writer) error {
	if _, err := os.Stat(path); err == nil && args.Options["force"] != "true" {
		return NewCommandError("config", "init", path+" already exists (use --force to overwrite)", nil)
	}

	cfg := config.Default()
	cfg.ApplyEnvOverrides()
	if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s wrote %s\n", RenderStatus("ok"), path)
	return nil
}
