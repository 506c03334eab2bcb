// Command docvaultd runs the docvault HTTP/JSON server: a thin
// net/http layer over the docvault library, mirroring how
// bundoc-server is a thin layer over the bundoc library.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docvault-db/docvault"
	"github.com/docvault-db/docvault/internal/config"
	"github.com/docvault-db/docvault/internal/logger"
	"github.com/docvault-db/docvault/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	httpPort := flag.Int("http-port", 8080, "HTTP server port")
	dialect := flag.String("dialect", envOr("DOCVAULT_DIALECT", "sqlite"), "relational backend: sqlite, postgres, mysql, sqlserver")
	dsn := flag.String("dsn", envOr("DOCVAULT_DSN", "docvault.db"), "data source name for the selected dialect")
	documentsDir := flag.String("documents-dir", envOr("DOCVAULT_DOCUMENTS_DIR", "./documents"), "root directory for collection body storage")
	maxConns := flag.Int("max-connections", 10, "bounded connection pool size")
	lockExpiration := flag.Duration("lock-expiration", 60*time.Second, "advisory lock expiration interval")
	lockSweep := flag.Duration("lock-sweep-interval", 15*time.Second, "advisory lock sweep interval")
	rebuildConcurrency := flag.Int("rebuild-concurrency", 0, "rebuild worker pool size (0 picks a default)")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	log := logger.NewRouted(os.Stdout, os.Stderr, parseLevel(*logLevel), "[docvaultd]").
		With("dialect", *dialect)

	cfg := config.Default()
	cfg.Storage.Dialect = config.Dialect(*dialect)
	cfg.Storage.DSN = *dsn
	cfg.Content.DocumentsDirectory = *documentsDir
	cfg.Pool.MaxConnections = *maxConns
	cfg.Lock.ExpirationInterval = *lockExpiration
	cfg.Lock.SweepInterval = *lockSweep
	cfg.Rebuild.Concurrency = *rebuildConcurrency

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := docvault.Open(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	mux := http.NewServeMux()
	mux.Handle("/", server.New(db, log))
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", *httpPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("docvaultd listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown: %v", err)
	}
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
