package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/erazemk/dustgatherer/internal/api"
	"github.com/erazemk/dustgatherer/internal/auth"
	"github.com/erazemk/dustgatherer/internal/config"
	"github.com/erazemk/dustgatherer/internal/metrics"
	"github.com/erazemk/dustgatherer/internal/store"
)

// pruneInterval is how often expired token revocations are dropped.
const pruneInterval = time.Hour

func cmdServe(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	storageFlags(fs, &cfg)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	var reset bool
	fs.BoolVar(&reset, "reset-password", false, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: dustgatherer serve [flags]

Flags:
  -a, -addr <host:port>   listen address (default: :8080)
  -reset-password         replace the login password with a generated one
`+storageUsage)
	}
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		return 1
	}

	closeLog, err := setupLogger(cfg.LogPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	inv, err := openInventory(cfg, metrics.NewBackup(reg))
	if err != nil {
		slog.Error("failed to open inventory", "error", err)
		return 1
	}
	defer inv.Close()
	slog.Info("database ready", "path", cfg.DBPath, "images", inv.assets.Dir())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	password, err := ensurePassword(ctx, inv.db)
	if err == nil && password == "" && reset {
		password, err = resetPassword(ctx, inv.db)
	}
	if err != nil {
		slog.Error("failed to set up login password", "error", err)
		return 1
	}
	if password != "" {
		printPassword(password)
	}

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, inv.db)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		return 1
	}

	handler := api.NewRouter(api.Deps{
		DB:          inv.db,
		JWTSecret:   jwtSecret,
		Assets:      inv.assets,
		Backup:      inv.backups,
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTP(reg),
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go pruneRevokedTokens(ctx, inv.db)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "version", version)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		return 1
	}

	slog.Info("server stopped, closing database")
	return 0
}

// pruneRevokedTokens drops expired revocations until ctx is done.
func pruneRevokedTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := store.PruneRevokedTokens(ctx, database, time.Now())
		if err != nil {
			slog.Warn("pruning revoked tokens", "error", err)
		} else if n > 0 {
			slog.Info("pruned revoked tokens", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// resetPassword stores a freshly generated login password and returns it.
func resetPassword(ctx context.Context, database *sql.DB) (string, error) {
	password, err := auth.GeneratePassword()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := store.SetPasswordHash(ctx, database, hash); err != nil {
		return "", err
	}
	return password, nil
}

// printPassword prints a generated password to stdout.
func printPassword(password string) {
	fmt.Println("Login password set:")
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("Change it after logging in, or run serve -reset-password.")
	fmt.Println()
}
