// Command pgserve is the PageGraph exploration server: an HTTP JSON API over
// loaded recordings and, with -mcp, the same operations as MCP tools on
// stdio.
//
// Usage:
//
//	pgserve -config pgserve.yaml
//	pgserve -listen :8090 -graphs recordings/
//	pgserve -mcp -graphs recordings/
//	pgserve -hash-password <password>   # print a bcrypt hash for auth_hash
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagegraph/explore"
	"github.com/hazyhaar/pagegraph/shield"
)

func main() {
	configPath := flag.String("config", "", "path to pgserve.yaml config file")
	listen := flag.String("listen", "", "HTTP listen address (default :8090)")
	graphsDir := flag.String("graphs", "", "preload every root recording in this directory")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio instead of HTTP")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of this password and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := shield.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *listen, *graphsDir, *mcpMode); err != nil {
		logger.Error("pgserve: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, listen, graphsDir string, mcpMode bool) error {
	cfg, err := resolveConfig(configPath, listen, graphsDir)
	if err != nil {
		return err
	}

	svc, err := explore.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	if graphsDir != "" {
		if err := preload(ctx, svc, logger, graphsDir); err != nil {
			return err
		}
	}

	if mcpMode {
		return serveMCP(ctx, logger, svc)
	}
	return serveHTTP(ctx, logger, cfg, svc)
}

func resolveConfig(configPath, listen, graphsDir string) (*explore.Config, error) {
	if configPath != "" {
		return explore.LoadConfigFile(configPath)
	}

	cfg := &explore.Config{}
	if listen != "" {
		cfg.Listen = listen
	}
	if graphsDir != "" {
		cfg.GraphDir = graphsDir
	}
	return cfg, nil
}

// preload loads every root recording in dir. A file that fails to parse is
// logged and skipped so one bad recording cannot keep the server down.
func preload(ctx context.Context, svc *explore.Service, logger *slog.Logger, dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.graphml"))
	if err != nil {
		return err
	}
	loaded := 0
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), "page_graph_") {
			continue
		}
		abs, err := filepath.Abs(m)
		if err != nil {
			return err
		}
		if _, err := svc.Load(ctx, abs); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("pgserve: skipping recording", "path", m, "error", err)
			continue
		}
		loaded++
	}
	logger.Info("pgserve: graphs preloaded", "dir", dir, "loaded", loaded)
	return nil
}

func serveMCP(ctx context.Context, logger *slog.Logger, svc *explore.Service) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "pagegraph",
		Version: "1.0.0",
	}, nil)
	svc.RegisterMCP(srv)

	logger.Info("pgserve: MCP serving on stdio")
	return srv.Run(ctx, &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout})
}

func serveHTTP(ctx context.Context, logger *slog.Logger, cfg *explore.Config, svc *explore.Service) error {
	var rl *shield.RateLimiter
	if len(cfg.RateLimits) > 0 {
		rl = shield.NewRateLimiter(cfg.RateLimits)
		rl.StartGC(ctx.Done())
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(rl, "") {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	})
	// Auth covers the API but not the health probe.
	r.Group(func(r chi.Router) {
		r.Use(shield.BearerAuth(cfg.AuthHash))
		r.Mount("/", svc.Routes())
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pgserve: server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("pgserve: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("pgserve: shutdown", "error", err)
	}
	logger.Info("pgserve: server stopped")
	return nil
}
