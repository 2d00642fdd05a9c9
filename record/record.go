// Package record drives a PageGraph-enabled browser over CDP and saves one
// recording per URL: the GraphML execution trace plus a markdown snapshot of
// the rendered page. The browser writes companion frame recordings next to
// the main trace on its own.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/pagegraph/graphml"
	"github.com/hazyhaar/pagegraph/idgen"
)

// Recorder records pages. Safe for sequential use; recordings share one
// browser process until the recycle threshold.
type Recorder struct {
	cfg     *Config
	logger  *slog.Logger
	manager *Manager
	snap    *snapshotter
	now     func() time.Time
	dirID   idgen.Generator
}

// NewRecorder builds a recorder around a managed browser. A nil logger uses
// slog.Default().
func NewRecorder(cfg *Config, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := NewManager(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		cfg:     m.cfg,
		logger:  logger,
		manager: m,
		snap:    newSnapshotter(),
		now:     time.Now,
		dirID:   idgen.Timestamped(idgen.NanoID(8)),
	}, nil
}

// Close shuts down the browser.
func (r *Recorder) Close() error { return r.manager.Close() }

// Result describes one saved recording.
type Result struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Dir           string `json:"dir"`
	GraphPath     string `json:"graph_path"`
	SnapshotPath  string `json:"snapshot_path"`
	GraphBytes    int    `json:"graph_bytes"`
	SnapshotBytes int    `json:"snapshot_bytes"`
	Nodes         int    `json:"nodes"`
	Edges         int    `json:"edges"`
	ElapsedMS     int64  `json:"elapsed_ms"`
}

// Record navigates to a URL, waits for load plus the settle delay, pulls the
// page graph out of the browser, and writes the recording directory. The
// saved trace is parsed back before reporting success.
func (r *Recorder) Record(ctx context.Context, pageURL string) (*Result, error) {
	start := r.now()
	res, err := r.record(ctx, pageURL)
	if err != nil {
		return nil, &ErrRecord{URL: pageURL, Err: err}
	}
	res.ElapsedMS = r.now().Sub(start).Milliseconds()
	r.logger.Info("record: saved",
		"url", pageURL, "dir", res.Dir, "nodes", res.Nodes, "edges", res.Edges,
		"elapsed_ms", res.ElapsedMS)
	return res, nil
}

func (r *Recorder) record(ctx context.Context, pageURL string) (*Result, error) {
	page, err := r.manager.Page()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	page = page.Context(ctx)

	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		r.logger.Warn("record: wait load", "url", pageURL, "error", err)
	}
	select {
	case <-time.After(r.cfg.Settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var title string
	if info, err := page.Info(); err == nil {
		title = info.Title
	}
	var html string
	if eval, err := page.Eval(`() => document.documentElement.outerHTML`); err == nil {
		html = eval.Value.Str()
	} else {
		r.logger.Warn("record: capture html", "url", pageURL, "error", err)
	}

	doc, err := generatePageGraph(ctx, page)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(r.cfg.OutputDir, r.dirID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	graphPath := filepath.Join(dir, "page_graph.graphml")
	if err := os.WriteFile(graphPath, []byte(doc), 0o644); err != nil {
		return nil, fmt.Errorf("write graph: %w", err)
	}
	g, err := graphml.LoadFile(graphPath)
	if err != nil {
		return nil, fmt.Errorf("saved graph does not parse: %w", err)
	}

	md := r.snap.Render(html, pageURL, title)
	mdPath := filepath.Join(dir, "page.md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	return &Result{
		URL:           pageURL,
		Title:         title,
		Dir:           dir,
		GraphPath:     graphPath,
		SnapshotPath:  mdPath,
		GraphBytes:    len(doc),
		SnapshotBytes: len(md),
		Nodes:         g.NodeCount(),
		Edges:         g.EdgeCount(),
	}, nil
}

// generatePageGraph invokes the vendor CDP command PageGraph builds carry.
// The reply holds the serialized GraphML document.
func generatePageGraph(ctx context.Context, page *rod.Page) (string, error) {
	raw, err := page.Call(ctx, string(page.SessionID), "Page.generatePageGraph", nil)
	if err != nil {
		return "", fmt.Errorf("generate page graph: %w", err)
	}
	var reply struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("decode page graph reply: %w", err)
	}
	if reply.Data == "" {
		return "", errors.New("empty page graph reply, browser is not a PageGraph build")
	}
	return reply.Data, nil
}
