// Command agentrt runs the ReAct agent runtime's HTTP server: it wires
// the recursion engine, session memory service, tool registry, and
// streaming transport behind the gin router defined in internal/api.
// Grounded on cmd/tarsy/main.go's bootstrap shape (flag parsing,
// godotenv, config load, database connect, graceful shutdown), ported
// from pkg/config/pkg/database onto internal/config/internal/store.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/tarsy/internal/api"
	"github.com/codeready-toolchain/tarsy/internal/config"
	"github.com/codeready-toolchain/tarsy/internal/engine"
	"github.com/codeready-toolchain/tarsy/internal/observability"
	"github.com/codeready-toolchain/tarsy/internal/session"
	"github.com/codeready-toolchain/tarsy/internal/store"
	"github.com/codeready-toolchain/tarsy/internal/toolexec"
	"github.com/codeready-toolchain/tarsy/internal/tools"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// exit codes per spec.md §6.1: 0 clean shutdown, 1 configuration or
// startup failure, 2 unrecoverable runtime error.
const (
	exitOK     = 0
	exitConfig = 1
	exitFatal  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v (continuing with process environment)", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("configuration error: %v", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		log.Printf("database configuration error: %v", err)
		return exitConfig
	}

	pool, err := store.NewPool(ctx, dbCfg)
	if err != nil {
		log.Printf("failed to connect to database: %v", err)
		return exitConfig
	}
	defer pool.Close()
	log.Println("connected to PostgreSQL and applied migrations")

	repo := store.NewPgRepo(pool)

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		log.Printf("failed to register builtin tools: %v", err)
		return exitConfig
	}

	var sidecar *toolexec.SidecarExecutor
	if cfg.ToolExecutionMode == config.ToolExecutionPodmanSidecar {
		sidecar = toolexec.NewSidecarExecutor(toolexec.SidecarConfig{
			PodmanHost:     cfg.PodmanHost,
			TimeoutSeconds: int(cfg.ToolSidecarTimeout.Seconds()),
			Network:        cfg.ToolSidecarNetwork,
			Image:          cfg.ToolSidecarImage,
		})
	}
	mode := toolexec.Mode(cfg.ToolExecutionMode)
	executor := toolexec.New(mode, registry, sidecar)

	eng := engine.New(repo, registry, executor)
	sessions := session.New(repo)
	metrics := observability.NewMetrics()

	srv := api.NewServer(cfg, repo, eng, sessions, registry, executor, metrics)
	if err := srv.ValidateWiring(); err != nil {
		log.Printf("server wiring invalid: %v", err)
		return exitConfig
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("agentrt listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("http server error", "error", err)
			return exitFatal
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("graceful shutdown failed", "error", err)
		return exitFatal
	}

	return exitOK
}
