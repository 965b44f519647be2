// Command shieldgw is the gateway binary. It loads a YAML configuration
// file (or falls back to built-in defaults), wires the default echo
// application handler into internal/gateway, starts every listener, and
// shuts down gracefully on SIGTERM or SIGINT.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shieldgw/shield/internal/app"
	"github.com/shieldgw/shield/internal/config"
	"github.com/shieldgw/shield/internal/gateway"
	"github.com/shieldgw/shield/internal/metrics"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in if omitted)")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("shield gateway starting",
		"binary_addr", cfg.Binary.Host, "binary_port", cfg.Binary.Port,
		"http_addr", cfg.HTTP.Host, "http_port", cfg.HTTP.Port,
		"ws_addr", cfg.WebSocket.Host, "ws_port", cfg.WebSocket.Port,
		"beast_addr", cfg.Beast.Host, "beast_port", cfg.Beast.Port,
		"udp_addr", cfg.UDP.Host, "udp_port", cfg.UDP.Port,
		"num_slaves", cfg.NumSlaves,
	)

	gw := gateway.New(*cfg, app.EchoHandler{}, logger, metrics.Noop{})
	if err := gw.Start(); err != nil {
		logger.Error("failed to start gateway", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	gw.Stop()
	logger.Info("shield gateway exited cleanly")
}

// loadConfig reads configPath if non-empty, otherwise returns built-in
// defaults.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(configPath)
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
