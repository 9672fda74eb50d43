// Command deepresearch starts the deep-research HTTP/SSE server: it loads
// configuration, wires the provider adapters and session engine, and serves
// the API shell until interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tarsy-labs/deepresearch/pkg/api"
	"github.com/tarsy-labs/deepresearch/pkg/cleanup"
	"github.com/tarsy-labs/deepresearch/pkg/config"
	"github.com/tarsy-labs/deepresearch/pkg/engine"
	"github.com/tarsy-labs/deepresearch/pkg/providers/anthropic"
	"github.com/tarsy-labs/deepresearch/pkg/providers/sandbox"
	"github.com/tarsy-labs/deepresearch/pkg/providers/search"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if cfg.Providers.AnthropicAPIKey == "" {
		slog.Error("anthropic_api_key is required")
		os.Exit(1)
	}

	eng := engine.New(cfg, engine.Providers{
		LLM:    anthropic.New(cfg.Providers.AnthropicAPIKey),
		Search: search.New(cfg.Providers.SearchAPIKey, ""),
		Sandbox: sandbox.New(sandbox.Config{
			APIKey: cfg.Providers.DaytonaAPIKey,
			APIURL: cfg.Providers.DaytonaAPIURL,
		}),
	})

	cleanupSvc := cleanup.NewService(eng.Store(), eng.Workspace(), cfg.Limits.SessionRetention, time.Hour)
	cleanupSvc.Start(context.Background())
	defer cleanupSvc.Stop()

	ginMode := getEnv("GIN_MODE", "debug")
	server := api.NewServer(eng, ginMode)

	addr := ":" + strconv.Itoa(cfg.HTTPPort)
	slog.Info("starting deepresearch server", "addr", addr, "config_dir", *configDir)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		slog.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	case <-sigCh:
		slog.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

