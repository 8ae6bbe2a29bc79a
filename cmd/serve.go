// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/utmc-tools/xkopbridge/pkg/bridge"
	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge daemon",
	Long: `Run the bridge daemon: keep a session to the field controller,
mirror its index values, and republish them over HTTP.

The daemon reconnects forever; a dead controller link degrades the
served values to last-known but never stops the process. Configuration
is read from a TOML file, see config.example.toml.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "xkopbridge.toml", "Path to the TOML config file")
}

func newLogger(cfg bridge.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out = zerolog.MultiLevelWriter(out, rotated)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := bridge.LoadConfig(serveConfigPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := bridge.NewStore()
	codec := xkop.NewCodec(cfg.ChecksumPolicy())
	registry := prometheus.NewRegistry()
	metrics := bridge.NewMetrics(registry, store)

	connect, read, write, backoffMin, backoffMax := cfg.Timing.Durations()
	session, err := bridge.NewSession(bridge.SessionConfig{
		Dial:           controllerDialer(cfg.Controller.Transport, cfg.Endpoint()),
		Codec:          codec,
		Store:          store,
		Logger:         logger.With().Str("component", "session").Logger(),
		ConnectTimeout: connect,
		ReadTimeout:    read,
		WriteTimeout:   write,
		BackoffMin:     backoffMin,
		BackoffMax:     backoffMax,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}

	vb := bridge.NewValueBridge(store, session, logger.With().Str("component", "bridge").Logger())
	server := bridge.NewServer(vb, session, bridge.NewMapping(cfg.Rows), codec, registry,
		logger.With().Str("component", "http").Logger())

	// Decoded frames fan out to WebSocket feed subscribers.
	session.SetOnMessage(server.Broadcast)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sessionDone := make(chan error, 1)
	go func() { sessionDone <- session.Run(ctx) }()

	httpDone := make(chan error, 1)
	go func() { httpDone <- httpServer.ListenAndServe() }()

	logger.Info().
		Str("controller", cfg.Endpoint()).
		Str("transport", cfg.Controller.Transport).
		Str("listen", cfg.HTTP.Listen).
		Int("rows", len(cfg.Rows)).
		Msg("bridge up")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-httpDone:
		stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	<-sessionDone
	logger.Info().Msg("bridge down")
	return nil
}
