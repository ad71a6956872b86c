package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blesh/internal/command"
	"github.com/srg/blesh/internal/device"
	goble "github.com/srg/blesh/internal/device/go-ble"
	"github.com/srg/blesh/internal/session"
	"github.com/srg/blesh/pkg/config"
	"golang.org/x/term"
)

// newProvider creates the platform adapter provider. Tests replace it.
var newProvider = func(logger *logrus.Logger, cfg *config.Config) device.Provider {
	return goble.NewProvider(logger, &goble.ProviderOptions{ConnectTimeout: cfg.Connect.Timeout})
}

// app is the per-invocation wiring shared by every subcommand
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	manager    *session.Manager
	dispatcher *command.Dispatcher
}

// newApp loads the config named by --config, configures logging and builds the session stack
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, "verbose", cfg)
	if err != nil {
		return nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	manager := session.NewManager(newProvider(logger, cfg), cfg.SessionOptions(), logger)
	return &app{
		cfg:        cfg,
		logger:     logger,
		manager:    manager,
		dispatcher: command.NewDispatcher(manager, logger, cfg.CommandOptions()),
	}, nil
}

// open initializes the adapter and connects to deviceID
func (a *app) open(ctx context.Context, deviceID string) error {
	if _, err := a.manager.Init(ctx); err != nil {
		return err
	}
	msg, err := a.manager.Connect(ctx, deviceID)
	if err != nil {
		return err
	}
	a.logger.WithField("device_id", deviceID).Info(msg)
	return nil
}

// close disconnects the session, if any. Errors are only logged.
func (a *app) close() {
	connected, err := a.manager.IsConnected(context.Background())
	if err != nil || !connected {
		return
	}
	if _, err := a.manager.Disconnect(context.Background()); err != nil {
		a.logger.WithError(err).Warn("Failed to disconnect")
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
