package stats

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/pagegraph/filter"
	"github.com/hazyhaar/pagegraph/graph"
	"github.com/hazyhaar/pagegraph/graphml"
)

// Sink receives the results of a batch run. *Store implements it.
type Sink interface {
	SavePageStats(ctx context.Context, path string, st *PageStats) error
	SaveHotElements(ctx context.Context, path string, elements []HotElement) error
	SaveBlocked(ctx context.Context, path string, report *BlockedReport) error
}

// RunResult counts the outcome of one batch run.
type RunResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Runner fans statistics collection over a set of recording files.
type Runner struct {
	workers   int
	threshold int
	matcher   graph.FilterMatcher
	sink      Sink
	logger    *slog.Logger
}

// NewRunner creates a Runner from configuration. When cfg names filter
// lists, every recording additionally gets a blocked-request report.
func NewRunner(cfg *Config, sink Sink, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		workers:   cfg.Workers,
		threshold: cfg.HotThreshold,
		sink:      sink,
		logger:    logger,
	}
	if len(cfg.FilterLists) > 0 {
		eng, err := filter.NewEngineFromFiles(cfg.FilterLists...)
		if err != nil {
			return nil, err
		}
		logger.Info("stats: filter lists loaded",
			"lists", len(cfg.FilterLists), "rules", eng.RuleCount(), "skipped", eng.SkippedCount())
		r.matcher = eng
	}
	return r, nil
}

// Run processes paths with the configured number of workers. A file that
// fails to load or save is logged and counted; the batch carries on. Run
// returns the context error when interrupted before the list is drained.
func (r *Runner) Run(ctx context.Context, paths []string) (*RunResult, error) {
	files := make(chan string)
	res := &RunResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range files {
				err := r.processFile(ctx, path)
				mu.Lock()
				if err != nil {
					res.Failed++
				} else {
					res.Processed++
				}
				mu.Unlock()
				if err != nil {
					r.logger.Error("stats: recording failed", "path", path, "error", err)
				}
			}
		}()
	}

feed:
	for _, p := range paths {
		select {
		case files <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(files)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) processFile(ctx context.Context, path string) error {
	g, err := graphml.LoadFileWithFrames(path)
	if err != nil {
		return err
	}
	st, err := Collect(g)
	if err != nil {
		return err
	}
	if err := r.sink.SavePageStats(ctx, path, st); err != nil {
		return err
	}
	hot, err := HotElements(g, r.threshold)
	if err != nil {
		return err
	}
	if len(hot) > 0 {
		if err := r.sink.SaveHotElements(ctx, path, hot); err != nil {
			return err
		}
	}
	blocked := 0
	if r.matcher != nil {
		report, err := CollectBlocked(g, r.matcher, false)
		if err != nil {
			return err
		}
		if err := r.sink.SaveBlocked(ctx, path, report); err != nil {
			return err
		}
		blocked = report.BlockedCount
	}
	r.logger.Debug("stats: recording processed",
		"path", path, "nodes", st.Nodes, "edges", st.Edges, "hot", len(hot), "blocked", blocked)
	return nil
}
