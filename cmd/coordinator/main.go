package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleylabs/parley/internal/relay"
	"github.com/parleylabs/parley/internal/relay/config"
	"github.com/parleylabs/parley/internal/storage"
	filestore "github.com/parleylabs/parley/internal/storage/file"
	"github.com/parleylabs/parley/internal/storage/memory"
	"github.com/parleylabs/parley/internal/wshub"
)

const serverVersion = "0.1.0"

var (
	version    = flag.Bool("version", false, "Print version and exit")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	httpMode   = flag.Bool("http", false, "Enable HTTP/SSE transport instead of stdio")
	configPath = flag.String("config", "", "Path to YAML config file")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Parley Relay Coordinator v%s\n", serverVersion)
		os.Exit(0)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// Env overrides for the listening surfaces
	listenAddr := cfg.Server.ListenAddr
	if addr := os.Getenv("WS_ADDR"); addr != "" {
		listenAddr = addr
	}
	httpAddr := cfg.Server.HTTPAddr
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		httpAddr = addr
	}

	logger.Info("Starting Parley Relay Coordinator",
		"version", serverVersion,
		"debug", *debug,
		"ws_addr", listenAddr,
		"http_mode", *httpMode,
		"http_addr", httpAddr,
		"manual_approval", cfg.Safety.RequireManualApproval,
	)

	// Transcript storage: file-backed when a directory is configured,
	// in-memory otherwise (transcripts then live only as long as the
	// process).
	var store storage.TranscriptStore
	if cfg.Storage.TranscriptDir != "" {
		fileStore, err := filestore.NewTranscriptStore(cfg.Storage.TranscriptDir)
		if err != nil {
			logger.Error("failed to open transcript store", "dir", cfg.Storage.TranscriptDir, "error", err)
			os.Exit(1)
		}
		store = fileStore
	} else {
		logger.Warn("no transcript directory configured, transcripts are in-memory only")
		store = memory.NewInMemoryTranscriptStore()
	}

	registry := relay.NewPlatformRegistry()
	hub := wshub.NewHub(logger)
	coordinator := relay.NewCoordinator(cfg, registry, store, hub, logger)
	hub.Attach(coordinator)

	mcpServer := relay.NewMCPServer(relay.Config{
		Name:    "parley-relay-coordinator",
		Version: serverVersion,
	}, coordinator, registry, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start WebSocket hub for platform clients
	hubServer := &http.Server{
		Addr:              listenAddr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting WebSocket hub for platform clients", "addr", listenAddr)
		if err := hubServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("WebSocket hub error", "error", err)
			cancel()
		}
	}()

	// Start MCP control plane
	go func() {
		if *httpMode {
			if err := mcpServer.ServeHTTP(httpAddr, logger); err != nil {
				logger.Error("MCP server error", "error", err)
				cancel()
			}
		} else {
			if err := mcpServer.Serve(logger); err != nil {
				logger.Error("MCP server error", "error", err)
				cancel()
			}
		}
	}()

	// Start transcript retention pruning goroutine
	go func() {
		ticker := time.NewTicker(config.DefaultPruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().Add(-cfg.Retention())
				pruned, err := store.PruneTranscripts(ctx, cutoff)
				if err != nil {
					logger.Error("Failed to prune transcripts", "error", err)
					continue
				}
				if pruned > 0 {
					logger.Info("Pruned old transcripts", "count", pruned)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Wait for shutdown signal
	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context canceled")
	}

	logger.Info("Shutting down gracefully")
	cancel()

	// Stop the session first so the final transcript is persisted and any
	// scheduled relay is cancelled before connections drop.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	coordinator.Stop(shutdownCtx)

	if err := hubServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket hub shutdown timeout, forcing close", "error", err)
	}
	hub.Close()

	logger.Info("Coordinator shutdown complete")
}
