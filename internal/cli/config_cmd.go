// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - The config command.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/threadchat/internal/config"
)

const configUsage = "threadchat config [show|init [--force]|path]"

// ConfigPathInfo is the --json form of config path.
type ConfigPathInfo struct {
	ConfigFile string `json:"config_file"`
	Exists     bool   `json:"exists"`
	DataDir    string `json:"data_dir"`
	LogFile    string `json:"log_file"`
}

// HandleConfig runs the config command. It does not open the store.
func HandleConfig(args Args) error {
	return RunConfig(args, os.Stdout)
}

// RunConfig dispatches a config subcommand.
func RunConfig(args Args, out io.Writer) error {
	p := NewArgParser(args.Raw, "force")
	path, err := configFile(args)
	if err != nil {
		return err
	}

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "show":
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config show", cfg).Print(out)
		}
		fmt.Fprintln(out, DimStyle.Render("# "+path))
		fmt.Fprint(out, cfg.String())
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil && !p.BoolFlag("force") {
			return &UsageError{Message: "config file already exists: " + path, Usage: "threadchat config init --force"}
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config init", map[string]string{"config_file": path}).Print(out)
		}
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Wrote"), path)
		return nil

	case "path":
		info := ConfigPathInfo{ConfigFile: path}
		if _, err := os.Stat(path); err == nil {
			info.Exists = true
		}
		if cfg, err := LoadConfig(args); err == nil {
			info.DataDir, _ = cfg.DataDir()
			info.LogFile, _ = cfg.LogPath()
		}
		if args.JSON {
			return NewJSONResponse("config path", info).Print(out)
		}
		fmt.Fprintf(out, "%s %s\n", RenderLabel("Config"), info.ConfigFile)
		if info.DataDir != "" {
			fmt.Fprintf(out, "%s %s\n", RenderLabel("Data"), info.DataDir)
			fmt.Fprintf(out, "%s %s\n", RenderLabel("Log"), info.LogFile)
		}
		return nil

	default:
		return &UsageError{Message: "unknown config subcommand: " + sub, Usage: configUsage}
	}
}

func configFile(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}
