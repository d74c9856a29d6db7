// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Wiring of config, log, store, client and coordinator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/app"
	"github.com/jeranaias/threadchat/internal/config"
	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/storage"
)

// selfWriteWindow is how close a file event must follow one of our own
// writes to be treated as ours.
const selfWriteWindow = time.Second

// Runtime is the set of wired components a command runs against.
type Runtime struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       *storage.Store
	Client      *api.Client // nil in offline mode
	Coordinator *app.Coordinator

	closers []io.Closer
}

// LoadConfig loads the configuration honoring --config and --offline.
func LoadConfig(args Args) (*config.Config, error) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}
	dotenv, err := config.ReadDotEnv(config.DotEnvFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromPath(path, dotenv)
	if err != nil {
		return nil, err
	}
	if args.Offline {
		cfg.Offline.Enabled = true
	}
	return cfg, nil
}

// OpenRuntime loads configuration and opens every component. The log goes
// to stderr with --verbose and to the configured log file otherwise.
func OpenRuntime(args Args) (*Runtime, error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	var logger *slog.Logger
	if args.Verbose {
		logger = logging.New(os.Stderr, "debug")
	} else {
		logPath, err := cfg.LogPath()
		if err != nil {
			return nil, err
		}
		l, f, err := logging.Open(logPath, cfg.Log.Level)
		if err != nil {
			// The log is not worth failing a command over.
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
			l = logging.Discard()
		} else {
			closers = append(closers, f)
		}
		logger = l
	}

	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	kv, err := storage.Open(cfg.Offline.Backend, dir)
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	rt := NewRuntime(cfg, logger, kv)
	rt.closers = append(rt.closers, closers...)
	logger.Info("runtime opened", "backend", cfg.Offline.Backend, "data_dir", dir, "offline", cfg.Offline.Enabled)
	return rt, nil
}

// NewRuntime wires components around an already opened KV backend.
func NewRuntime(cfg *config.Config, logger *slog.Logger, kv storage.KV) *Runtime {
	logger = logging.OrDiscard(logger)
	store := storage.NewStore(kv, logger)

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		closers: []io.Closer{store},
	}

	var remote app.Remote
	if !cfg.Offline.Enabled {
		rt.Client = api.New(api.OptionsFromConfig(cfg, logger))
		remote = rt.Client
	}
	rt.Coordinator = app.New(app.Options{
		Config: cfg,
		Remote: remote,
		Store:  store,
		Logger: logger,
	})
	return rt
}

// Close releases the store and the log file.
func (r *Runtime) Close() error {
	return closeAll(r.closers)
}

// WatchStore reloads the coordinator when another process writes to the
// local store. It is a no-op for backends that are not shared or when
// offline.watch is off.
func (r *Runtime) WatchStore(ctx context.Context) error {
	if !r.Config.Offline.Watch {
		return nil
	}
	dataDir, err := r.Config.DataDir()
	if err != nil {
		return err
	}
	dir := storage.WatchDir(r.Config.Offline.Backend, dataDir)
	if dir == "" {
		return nil
	}

	return storage.Watch(ctx, dir, storage.DefaultDebounce, r.Logger, func(ch storage.Change) {
		if isOwnWrite(ch, r.Store.LastWrite()) {
			return
		}
		r.Logger.Debug("store changed externally", "paths", len(ch.Paths))
		if err := r.Coordinator.ExternalChange(ctx); err != nil {
			r.Logger.Warn("failed to reload after external change", "error", err)
		}
	})
}

func isOwnWrite(ch storage.Change, lastWrite time.Time) bool {
	if lastWrite.IsZero() {
		return false
	}
	d := ch.At.Sub(lastWrite)
	if d < 0 {
		d = -d
	}
	return d < selfWriteWindow
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// drainNotifications writes pending notifications to w without blocking.
func drainNotifications(rt *Runtime, w io.Writer, quiet bool) {
	for {
		select {
		case n := <-rt.Coordinator.Notifications():
			if !quiet {
				fmt.Fprintln(w, RenderNotification(n))
			}
		default:
			return
		}
	}
}
