// Command pgrecord drives a PageGraph-enabled browser over a list of URLs
// and saves one recording per page: the GraphML trace plus a markdown
// snapshot. Results are printed as one JSON line per recording.
//
// Usage:
//
//	pgrecord -config pgrecord.yaml -url https://example.com/
//	pgrecord -browser /opt/brave/brave -url https://a.example/ -url https://b.example/
//	pgrecord -browser /opt/brave/brave -headless=false -o captures/ -url https://example.com/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hazyhaar/pagegraph/record"
)

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to pgrecord.yaml config file")
	browser := flag.String("browser", "", "path to a PageGraph-enabled browser binary")
	var urls multiFlag
	flag.Var(&urls, "url", "URL to record (repeatable)")
	outputDir := flag.String("o", "", "output directory root (default recordings)")
	headless := flag.Bool("headless", true, "run the browser headless")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

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

	if err := run(ctx, logger, *configPath, *browser, *outputDir, *headless, urls); err != nil {
		logger.Error("pgrecord: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, browser, outputDir string, headless bool, urls []string) error {
	cfg, err := resolveConfig(configPath, browser, outputDir, headless)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pgrecord [-config <file> | -browser <path>] [-o <dir>] [-headless=<bool>] -url <url> [-url <url>...]")
		os.Exit(1)
	}

	rec, err := record.NewRecorder(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer rec.Close()

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, u := range urls {
		res, err := rec.Record(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("pgrecord: recording failed", "url", u, "error", err)
			failed++
			continue
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d recordings failed", failed, len(urls))
	}
	return nil
}

func resolveConfig(configPath, browser, outputDir string, headless bool) (*record.Config, error) {
	if configPath != "" {
		return record.LoadConfigFile(configPath)
	}

	cfg := &record.Config{
		Browser:   browser,
		OutputDir: outputDir,
		Headful:   !headless,
	}
	if cfg.Browser == "" {
		fmt.Fprintln(os.Stderr, "usage: pgrecord [-config <file> | -browser <path>] [-o <dir>] [-headless=<bool>] -url <url> [-url <url>...]")
		os.Exit(1)
	}
	return cfg, nil
}
