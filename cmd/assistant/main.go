package main

import (
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/fiscal-doc-pipeline/internal/adapters/mcp"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/bootstrap"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/config"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/observability/logging"
)

// The assistant speaks MCP over stdio, so logs go to stderr.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, "assistant", cfg.LogLevel)
	slog.SetDefault(logger)

	tools := mcpadapter.NewTools(bootstrap.NewBackend(cfg, logger), cfg.ClientEIN, logger)
	logger.Info("assistant_started", "backend", cfg.BackendAPIURL)
	if err := server.ServeStdio(mcpadapter.NewServer(tools)); err != nil {
		logger.Error("assistant_stopped", "error", err)
		os.Exit(1)
	}
}
