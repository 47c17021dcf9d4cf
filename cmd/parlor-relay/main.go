// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/parlor-foundation/parlor/lib/config"
	parlorsignal "github.com/parlor-foundation/parlor/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var listen string
	var logLevel string

	flagSet := pflag.NewFlagSet("parlor-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to parlor.yaml (default: $PARLOR_CONFIG)")
	flagSet.StringVar(&listen, "listen", "", "bind address (overrides relay.listen)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Relay.Listen = listen
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := parlorsignal.NewRelayServer(logger)
	return server.ListenAndServe(ctx, cfg.Relay.Listen)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
