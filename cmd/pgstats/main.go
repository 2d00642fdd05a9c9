// Command pgstats collects page statistics over batches of PageGraph
// recordings and persists them to SQLite.
//
// Usage:
//
//	pgstats -config pgstats.yaml -dir recordings/
//	pgstats -db stats.db a.graphml b.graphml
//	pgstats -db stats.db -summary
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagegraph/stats"
)

func main() {
	configPath := flag.String("config", "", "path to pgstats.yaml config file")
	dbPath := flag.String("db", "", "path to the SQLite results database")
	workers := flag.Int("workers", 0, "concurrent recordings (default: number of CPUs)")
	dir := flag.String("dir", "", "process every root recording in this directory")
	showSummary := flag.Bool("summary", false, "print aggregates from the database and exit")
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

	if err := run(ctx, logger, *configPath, *dbPath, *workers, *dir, flag.Args(), *showSummary); err != nil {
		logger.Error("pgstats: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath string, workers int, dir string, args []string, showSummary bool) error {
	cfg, err := resolveConfig(configPath, dbPath, workers)
	if err != nil {
		return err
	}

	store, err := stats.Open(databasePath(cfg))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.DB.Close()

	// One-shot: aggregates from an earlier run.
	if showSummary {
		sum, err := store.Summary(ctx)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		return printJSON(sum)
	}

	paths, err := gatherPaths(args, dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pgstats [-config <file> | -db <path>] [-workers <n>] [-summary] <graphml>... | -dir <dir>")
		os.Exit(1)
	}

	runner, err := stats.NewRunner(cfg, &printSink{next: store}, logger)
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx, paths)
	if err != nil {
		return err
	}
	logger.Info("pgstats: batch done", "processed", res.Processed, "failed", res.Failed)

	sum, err := store.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	return printJSON(struct {
		*stats.RunResult
		Summary *stats.Summary `json:"summary"`
	}{res, sum})
}

func resolveConfig(configPath, dbPath string, workers int) (*stats.Config, error) {
	if configPath != "" {
		return stats.LoadConfigFile(configPath)
	}

	cfg := &stats.Config{Workers: workers}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func databasePath(cfg *stats.Config) string {
	if cfg.DBPath != "" {
		return cfg.DBPath
	}
	return stats.DefaultDBPath
}

// gatherPaths returns the explicit file arguments, or the root recordings in
// dir. Companion frame files are skipped there: LoadFileWithFrames pulls them
// in through their root recording.
func gatherPaths(args []string, dir string) ([]string, error) {
	if dir == "" {
		return args, nil
	}
	if len(args) > 0 {
		return nil, errors.New("pgstats: pass either file arguments or -dir, not both")
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.graphml"))
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), "page_graph_") {
			continue
		}
		paths = append(paths, m)
	}
	return paths, nil
}

// printSink writes one line per processed recording to stdout on its way to
// the real sink.
type printSink struct {
	next stats.Sink
}

func (p *printSink) SavePageStats(ctx context.Context, path string, st *stats.PageStats) error {
	if err := p.next.SavePageStats(ctx, path, st); err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(struct {
		Path string `json:"path"`
		*stats.PageStats
	}{path, st})
}

func (p *printSink) SaveHotElements(ctx context.Context, path string, els []stats.HotElement) error {
	return p.next.SaveHotElements(ctx, path, els)
}

func (p *printSink) SaveBlocked(ctx context.Context, path string, report *stats.BlockedReport) error {
	return p.next.SaveBlocked(ctx, path, report)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
