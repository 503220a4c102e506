package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apresai/voicekit/internal/mcpserver"
	"github.com/apresai/voicekit/internal/observability"
)

func main() {
	logger := observability.InitLogger(slog.LevelInfo)
	slog.SetDefault(logger)

	logger.Info("VoiceKit MCP Server starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := mcpserver.DefaultConfig()

	shutdownTracing, err := observability.SetupTracing(ctx, "voicekit-mcp", cfg.Version)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	srv, err := mcpserver.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx, 8*time.Second); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
