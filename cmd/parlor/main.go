// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/parlor-foundation/parlor/credential"
	"github.com/parlor-foundation/parlor/endpoint"
	"github.com/parlor-foundation/parlor/engine"
	"github.com/parlor-foundation/parlor/games/tictactoe"
	"github.com/parlor-foundation/parlor/lib/clock"
	"github.com/parlor-foundation/parlor/lib/config"
	"github.com/parlor-foundation/parlor/peer"
	parlorsignal "github.com/parlor-foundation/parlor/signal"
	"github.com/parlor-foundation/parlor/store"
	"github.com/parlor-foundation/parlor/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return fmt.Errorf("a subcommand is required")
	}

	switch os.Args[1] {
	case "host":
		return runHost(os.Args[2:])
	case "join":
		return runJoin(os.Args[2:])
	case "help", "--help", "-h":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown subcommand %q", os.Args[1])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  parlor host [--match ID] [--players N] [--rules FILE] [--secret HEX]
  parlor join --match ID --seat N --token TOKEN

common flags:
  --config PATH     parlor.yaml (default: $PARLOR_CONFIG)
  --relay URL       signaling relay (overrides relay.url)
  --log-level LVL   debug, info, warn, error`)
}

// sessionFlags are the flags shared by both subcommands.
type sessionFlags struct {
	configPath string
	relayURL   string
	logLevel   string
}

func addSessionFlags(flagSet *pflag.FlagSet, flags *sessionFlags) {
	flagSet.StringVar(&flags.configPath, "config", "", "path to parlor.yaml (default: $PARLOR_CONFIG)")
	flagSet.StringVar(&flags.relayURL, "relay", "", "signaling relay URL (overrides relay.url)")
	flagSet.StringVar(&flags.logLevel, "log-level", "", "log level (overrides log.level)")
}

func loadSessionConfig(flags sessionFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flags.relayURL != "" {
		cfg.Relay.URL = flags.relayURL
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runHost(args []string) error {
	var flags sessionFlags
	var matchFlag string
	var players int
	var rulesFile string
	var secretHex string

	flagSet := pflag.NewFlagSet("parlor host", pflag.ContinueOnError)
	addSessionFlags(flagSet, &flags)
	flagSet.StringVar(&matchFlag, "match", "", "match ID to host (default: a fresh UUID)")
	flagSet.IntVar(&players, "players", 0, "number of seats (default: from rules)")
	flagSet.StringVar(&rulesFile, "rules", "", "JSONC rules file (overrides game.rules_file)")
	flagSet.StringVar(&secretHex, "secret", "", "hex host secret for reproducible tokens (default: random)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadSessionConfig(flags)
	if err != nil {
		return err
	}
	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if rulesFile == "" {
		rulesFile = cfg.Game.RulesFile
	}
	rules := tictactoe.DefaultRules()
	if rulesFile != "" {
		rules, err = tictactoe.LoadRules(rulesFile)
		if err != nil {
			return err
		}
	}
	if players > 0 {
		rules.NumPlayers = players
	}
	game, err := tictactoe.New(rules)
	if err != nil {
		return err
	}

	issuer, err := buildIssuer(secretHex)
	if err != nil {
		return err
	}
	matchID := wire.MatchID(matchFlag)
	if matchID.IsZero() {
		matchID = credential.NewMatchID()
	}

	matches, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	transportEndpoint, closeEndpoint, err := buildEndpoint(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEndpoint()

	invites := make([]invite, rules.NumPlayers)
	for seat := range invites {
		playerID := wire.PlayerID(fmt.Sprintf("%d", seat))
		invites[seat] = invite{seat: playerID, token: issuer.Issue(matchID, playerID)}
	}

	bridge := &uiBridge{}
	transport, err := peer.NewTransport(peer.Config{
		GameName:    tictactoe.GameName,
		Endpoint:    transportEndpoint,
		MatchID:     matchID,
		PlayerID:    peer.DefaultHostSeat,
		Credentials: issuer.Issue(matchID, peer.DefaultHostSeat),
		NumPlayers:  rules.NumPlayers,
		NewEngine: func(callbacks engine.Callbacks) (engine.Engine, error) {
			return engine.NewMaster(engine.MasterConfig{
				Game:      game,
				Store:     matches,
				Verifier:  issuer,
				Callbacks: callbacks,
				Logger:    logger,
			})
		},
		OnPush:      func(push wire.Push) { bridge.send(pushMsg{push: push}) },
		OnStatus:    func(status peer.Status) { bridge.send(statusMsg{status: status}) },
		DialTimeout: cfg.DialTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return runUI(bridge, transport, session{
		matchID: matchID,
		seat:    peer.DefaultHostSeat,
		hosting: true,
		invites: invites,
	})
}

func runJoin(args []string) error {
	var flags sessionFlags
	var matchFlag string
	var seatFlag string
	var token string

	flagSet := pflag.NewFlagSet("parlor join", pflag.ContinueOnError)
	addSessionFlags(flagSet, &flags)
	flagSet.StringVar(&matchFlag, "match", "", "match ID to join (required)")
	flagSet.StringVar(&seatFlag, "seat", "", "seat number (required)")
	flagSet.StringVar(&token, "token", "", "seat token from the host (required)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if matchFlag == "" {
		return fmt.Errorf("--match is required")
	}
	if seatFlag == "" {
		return fmt.Errorf("--seat is required")
	}
	if token == "" {
		return fmt.Errorf("--token is required")
	}
	if seatFlag == string(peer.DefaultHostSeat) {
		return fmt.Errorf("seat %s hosts the match; use parlor host", seatFlag)
	}

	cfg, err := loadSessionConfig(flags)
	if err != nil {
		return err
	}
	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	transportEndpoint, closeEndpoint, err := buildEndpoint(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEndpoint()

	bridge := &uiBridge{}
	transport, err := peer.NewTransport(peer.Config{
		GameName:    tictactoe.GameName,
		Endpoint:    transportEndpoint,
		MatchID:     wire.MatchID(matchFlag),
		PlayerID:    wire.PlayerID(seatFlag),
		Credentials: wire.Credentials(token),
		NumPlayers:  cfg.Game.NumPlayers,
		OnPush:      func(push wire.Push) { bridge.send(pushMsg{push: push}) },
		OnStatus:    func(status peer.Status) { bridge.send(statusMsg{status: status}) },
		DialTimeout: cfg.DialTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return runUI(bridge, transport, session{
		matchID: wire.MatchID(matchFlag),
		seat:    wire.PlayerID(seatFlag),
	})
}

func buildIssuer(secretHex string) (*credential.Issuer, error) {
	if secretHex == "" {
		return credential.GenerateIssuer()
	}
	secret, err := credential.ParseSecret(secretHex)
	if err != nil {
		return nil, err
	}
	return credential.NewIssuer(secret)
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.MatchStore, func(), error) {
	if cfg.Store.Path == "" {
		return store.NewMemory(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating store directory: %w", err)
	}
	matches, err := store.OpenSQLite(cfg.Store.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	return matches, func() { matches.Close() }, nil
}

// buildEndpoint picks the connection stack: WebRTC through the relay
// when one is configured, in-process otherwise. The in-process
// fallback cannot reach another machine; it exists so the UI can be
// exercised without infrastructure.
func buildEndpoint(ctx context.Context, cfg *config.Config, logger *slog.Logger) (endpoint.Endpoint, func(), error) {
	if cfg.Relay.URL == "" {
		logger.Warn("no relay configured, endpoint is in-process only")
		return endpoint.NewMemory(), func() {}, nil
	}

	relay, err := parlorsignal.DialRelay(ctx, cfg.Relay.URL, clock.Real(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing relay %s: %w", cfg.Relay.URL, err)
	}
	webrtcEndpoint, err := endpoint.NewWebRTC(endpoint.WebRTCConfig{
		Signaler: relay,
		ICE:      endpoint.ICEConfigFrom(cfg.ICE),
		Timeouts: cfg.EndpointTimeouts(),
		Logger:   logger,
	})
	if err != nil {
		relay.Close()
		return nil, nil, err
	}
	return webrtcEndpoint, func() { relay.Close() }, nil
}

// openLogger sends logs to the configured file so the alternate
// screen stays clean. An empty log.file discards output rather than
// corrupting the TUI.
func openLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slogLevel(cfg.Log.Level)
	if cfg.Log.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { file.Close() }, nil
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

// uiBridge forwards transport callbacks into the running program. The
// transport is connected from the model's Init command, so no
// callback fires before the event loop is live; a message arriving in
// the window before attach would be dropped, which only loses a
// repaint.
type uiBridge struct {
	mu      sync.Mutex
	program *tea.Program
}

func (b *uiBridge) send(msg tea.Msg) {
	b.mu.Lock()
	program := b.program
	b.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

func (b *uiBridge) attach(program *tea.Program) {
	b.mu.Lock()
	b.program = program
	b.mu.Unlock()
}

func runUI(bridge *uiBridge, transport *peer.Transport, info session) error {
	program := tea.NewProgram(newModel(transport, info), tea.WithAltScreen())
	bridge.attach(program)
	_, err := program.Run()
	transport.Disconnect()
	return err
}
