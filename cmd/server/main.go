package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
	"github.com/JonMunkholm/csvclean/internal/store"
	"github.com/JonMunkholm/csvclean/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"run_mode", cfg.Run.Mode,
		"run_max_concurrent", cfg.Run.MaxConcurrent,
		"database", cfg.Database.Enabled(),
	)

	registry, err := rules.DefaultRegistry()
	if err != nil {
		logger.Error("failed to register rules", "error", core.FormatUserError(err), "detail", err)
		os.Exit(1)
	}

	rs := schema.Builtin()
	if cfg.Rules.Path != "" {
		rs, err = schema.LoadFile(cfg.Rules.Path)
		if err != nil {
			logger.Error("failed to load rules", "path", cfg.Rules.Path, "error", core.FormatUserError(err), "detail", err)
			os.Exit(1)
		}
	}
	logger.Info("rules loaded", "files", rs.Files())

	ctx := context.Background()

	var st store.Store
	if cfg.Database.Enabled() {
		pool, err := store.Connect(ctx, store.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			logger.Info("connected to database")
		}

		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		logger.Info("no database configured, keeping runs in memory", "max_runs", cfg.Retention.MemoryRuns)
		st = store.NewMemory(cfg.Retention.MemoryRuns)
	}

	server := web.NewServer(cfg, rs, registry, st, logger)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go store.StartPruneScheduler(jobCtx, st, store.RetentionConfig{
		MaxAge:        cfg.Retention.MaxAge,
		CheckInterval: cfg.Retention.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
