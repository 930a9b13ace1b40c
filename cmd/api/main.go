package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vitrine/api/internal/app"
	"vitrine/api/internal/audit"
	"vitrine/api/internal/cache"
	"vitrine/api/internal/config"
	"vitrine/api/internal/docstore"
	"vitrine/api/internal/ghcontents"
	"vitrine/api/internal/workcopy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	contents, err := ghcontents.New(ctx, ghcontents.Config{
		Owner:             cfg.GitHubOwner,
		Repo:              cfg.GitHubRepo,
		Branch:            cfg.GitHubBranch,
		DataDir:           cfg.GitHubDataDir,
		Token:             cfg.GitHubToken,
		BaseURL:           cfg.GitHubAPIURL,
		CommitterName:     cfg.CommitterName,
		CommitterEmail:    cfg.CommitterEmail,
		RequestsPerSecond: cfg.GitHubRPS,
	}, logger.With("component", "ghcontents"))
	if err != nil {
		return fmt.Errorf("github contents: %w", err)
	}
	if cfg.GitHubToken == "" {
		logger.Warn("GITHUB_TOKEN is not set, content operations will fail until it is configured")
	}

	var store docstore.Store = contents
	var cached *cache.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		cached = cache.New(contents, client, cache.Options{
			Prefix: fmt.Sprintf("vitrine:%s/%s@%s:", cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch),
			TTL:    cfg.CacheTTL,
			Logger: logger.With("component", "cache"),
		})
		store = cached
		logger.Info("document cache enabled", "ttl", cfg.CacheTTL)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	repo := workcopy.New(workcopy.Config{
		Dir:         cfg.WorkDir,
		RemoteURL:   cfg.RemoteURL,
		Branch:      cfg.GitHubBranch,
		DataDir:     cfg.GitHubDataDir,
		AuthorName:  cfg.CommitterName,
		AuthorEmail: cfg.CommitterEmail,
		Depth:       cfg.CloneDepth,
	}, logger.With("component", "workcopy"))

	service := app.New(cfg, store, repo, logger)
	if cached != nil {
		service.AddCheck("redis", cached.Ping)
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := audit.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := audit.ApplyMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		service.SetAuditor(audit.NewRecorder(db))
		service.AddCheck("postgres", db.PingContext)
		logger.Info("commit audit log enabled")
	}
	if cfg.AdminTokenHash == "" {
		logger.Warn("VITRINE_ADMIN_TOKEN_HASH is not set, the admin endpoints are open")
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vitrine api listening", "addr", cfg.Addr, "repo", cfg.GitHubOwner+"/"+cfg.GitHubRepo, "branch", cfg.GitHubBranch)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-sigCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}
