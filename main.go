// alfachat - terminal client for the Alfa AI chat service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/alfachat-tui/internal/cli"
	"github.com/jeranaias/alfachat-tui/internal/config"
	"github.com/jeranaias/alfachat-tui/internal/server"
	"github.com/jeranaias/alfachat-tui/internal/telemetry"
	"github.com/jeranaias/alfachat-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("alfachat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		case "serve":
			if err := runServe(args[1:]); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			return
		case "--plain", "plain":
			if err := runPlain(); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	if err := runTUI(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`alfachat - terminal client for Alfa AI chat

Usage:
  alfachat            Start the full-screen chat client
  alfachat --plain    Start the line-mode chat client
  alfachat serve      Run the development chat server
  alfachat version    Print version information

Configuration lives in ~/.alfachat/config.toml; settings can be
overridden with ALFACHAT_* environment variables.
`)
}

// loadConfig loads configuration and wires the rotating JSON logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logFile, err := cfg.LogFile()
	if err != nil {
		return nil, nil, err
	}
	logger, err := telemetry.InitLogger(telemetry.LogOptions{
		File:       logFile,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// =============================================================================
// CLIENT MODES
// =============================================================================

func runTUI() error {
	if !cli.IsTTY() {
		return fmt.Errorf("stdin is not a terminal; use 'alfachat --plain' for piped input")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	m := chat.New(cfg, logger)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = p.Run()
	return err
}

func runPlain() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	return cli.Run(cfg, logger)
}

// =============================================================================
// SERVE
// =============================================================================

func runServe(args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	listen := cfg.Server.Listen
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--listen", "-l":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires an address", args[i])
			}
			i++
			listen = args[i]
		default:
			return fmt.Errorf("unknown serve flag %q", args[i])
		}
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	uploadsDir, err := cfg.UploadsDir()
	if err != nil {
		return err
	}
	logFile, err := cfg.LogFile()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meter, flushMetrics, err := telemetry.InitMetrics(ctx, filepath.Dir(logFile))
	if err != nil {
		return err
	}
	defer flushMetrics()

	srv, err := server.New(server.Options{
		Listen:         listen,
		HistoryPath:    dbPath,
		IndexPath:      filepath.Join(filepath.Dir(dbPath), "alfachat_index.db"),
		UploadsDir:     uploadsDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RatePerMinute:  cfg.Server.RateLimitPerMinute,
		Logger:         logger,
		Meter:          meter,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Printf("alfachat server listening on %s\n", listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
