// Package explore serves loaded page graph recordings for inspection: list
// and load graphs, identify ids, walk downstream effects and requests, match
// filter rules. One Service backs both the HTTP API and the MCP tools.
package explore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/pagegraph/filter"
	"github.com/hazyhaar/pagegraph/graph"
	"github.com/hazyhaar/pagegraph/graphml"
	"github.com/hazyhaar/pagegraph/stats"
)

// Service keeps a catalog of loaded graphs keyed by handle and answers
// queries over them. Queries are read-only, so concurrent use is safe once a
// graph is loaded.
type Service struct {
	cfg     *Config
	logger  *slog.Logger
	matcher graph.FilterMatcher
	now     func() time.Time

	mu     sync.RWMutex
	graphs map[string]*entry
}

type entry struct {
	handle   string
	path     string
	graph    *graph.PageGraph
	loadedAt time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFilterEngine replaces the filter engine built from the configured
// lists.
func WithFilterEngine(m graph.FilterMatcher) ServiceOption {
	return func(svc *Service) { svc.matcher = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// New creates the exploration service. A nil config uses defaults, a nil
// logger uses slog.Default().
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		graphs: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.matcher == nil && len(cfg.FilterLists) > 0 {
		eng, err := filter.NewEngineFromFiles(cfg.FilterLists...)
		if err != nil {
			return nil, fmt.Errorf("explore: load filter lists: %w", err)
		}
		svc.matcher = eng
		logger.Info("explore: filter engine ready",
			"rules", eng.RuleCount(), "skipped", eng.SkippedCount())
	}
	return svc, nil
}

// Handle derives the catalog handle for a recording path: the file base name
// without its extension.
func Handle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GraphInfo describes one loaded graph.
type GraphInfo struct {
	Handle   string    `json:"handle"`
	Path     string    `json:"path"`
	URL      string    `json:"url,omitempty"`
	Nodes    int       `json:"nodes"`
	Edges    int       `json:"edges"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (e *entry) info() *GraphInfo {
	info := &GraphInfo{
		Handle:   e.handle,
		Path:     e.path,
		Nodes:    e.graph.NodeCount(),
		Edges:    e.graph.EdgeCount(),
		LoadedAt: e.loadedAt,
	}
	if url, err := e.graph.RootURL(); err == nil {
		info.URL = url
	}
	return info
}

// Load parses the recording at path, merges its companion frame recordings,
// and registers it in the catalog. A relative path is resolved against the
// configured graph directory. Loading a path again replaces the previous
// graph under the same handle.
func (svc *Service) Load(ctx context.Context, path string) (*GraphInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(path) && svc.cfg.GraphDir != "" {
		path = filepath.Join(svc.cfg.GraphDir, path)
	}
	g, err := graphml.LoadFileWithFrames(path)
	if err != nil {
		return nil, err
	}
	e := &entry{handle: Handle(path), path: path, graph: g, loadedAt: svc.now()}
	svc.mu.Lock()
	svc.graphs[e.handle] = e
	svc.mu.Unlock()
	info := e.info()
	svc.logger.Info("explore: graph loaded",
		"handle", e.handle, "path", path, "nodes", info.Nodes, "edges", info.Edges)
	return info, nil
}

// List returns the loaded graphs ordered by handle.
func (svc *Service) List() []GraphInfo {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	out := make([]GraphInfo, 0, len(svc.graphs))
	for _, e := range svc.graphs {
		out = append(out, *e.info())
	}
	slices.SortFunc(out, func(a, b GraphInfo) int {
		return strings.Compare(a.Handle, b.Handle)
	})
	return out
}

func (svc *Service) lookup(handle string) (*entry, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	e, ok := svc.graphs[handle]
	if !ok {
		return nil, &ErrGraphNotLoaded{Handle: handle}
	}
	return e, nil
}

func lookupEdge(g *graph.PageGraph, id string) (*graph.Edge, error) {
	eid, err := graph.ParseEdgeID(id)
	if err != nil {
		return nil, &ErrBadID{Value: id, Err: err}
	}
	e, ok := g.Edge(eid)
	if !ok {
		return nil, &ErrIDNotFound{ID: id}
	}
	return e, nil
}

// NodeSummary references a node inside a report.
type NodeSummary struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// EdgeSummary references an edge inside a report. Structural edges carry no
// timestamp.
type EdgeSummary struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

func nodeSummary(n *graph.Node) *NodeSummary {
	return &NodeSummary{
		ID:        n.ID.String(),
		Type:      graph.NodeTypeName(n.Type),
		Timestamp: n.Timestamp,
	}
}

func edgeSummary(e *graph.Edge) EdgeSummary {
	s := EdgeSummary{ID: e.ID.String(), Type: graph.EdgeTypeName(e.Type)}
	if e.Timestamp != nil {
		ts := *e.Timestamp
		s.Timestamp = &ts
	}
	return s
}

// IdentifyReport describes the node or edge behind an id. Kind is "node" or
// "edge"; Incoming and Outgoing are set for nodes, Source and Target for
// edges.
type IdentifyReport struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp *int64 `json:"timestamp,omitempty"`

	Incoming []EdgeSummary `json:"incoming,omitempty"`
	Outgoing []EdgeSummary `json:"outgoing,omitempty"`

	Source *NodeSummary `json:"source,omitempty"`
	Target *NodeSummary `json:"target,omitempty"`
}

// Identify resolves an id string against a loaded graph and reports what it
// names: a node with its adjacent edges, or an edge with its endpoints.
func (svc *Service) Identify(handle, id string) (*IdentifyReport, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	if nid, nerr := graph.ParseNodeID(id); nerr == nil {
		n, ok := e.graph.Node(nid)
		if !ok {
			return nil, &ErrIDNotFound{ID: id}
		}
		return nodeReport(e.graph, n), nil
	}
	eid, eerr := graph.ParseEdgeID(id)
	if eerr != nil {
		return nil, &ErrBadID{Value: id, Err: eerr}
	}
	ed, ok := e.graph.Edge(eid)
	if !ok {
		return nil, &ErrIDNotFound{ID: id}
	}
	return edgeReport(e.graph, ed)
}

func nodeReport(g *graph.PageGraph, n *graph.Node) *IdentifyReport {
	ts := n.Timestamp
	rep := &IdentifyReport{
		Kind:      "node",
		ID:        n.ID.String(),
		Type:      graph.NodeTypeName(n.Type),
		Timestamp: &ts,
	}
	for _, e := range g.IncomingEdges(n.ID) {
		rep.Incoming = append(rep.Incoming, edgeSummary(e))
	}
	for _, e := range g.OutgoingEdges(n.ID) {
		rep.Outgoing = append(rep.Outgoing, edgeSummary(e))
	}
	return rep
}

func edgeReport(g *graph.PageGraph, e *graph.Edge) (*IdentifyReport, error) {
	src, err := g.SourceNode(e)
	if err != nil {
		return nil, err
	}
	dst, err := g.TargetNode(e)
	if err != nil {
		return nil, err
	}
	rep := &IdentifyReport{
		Kind:   "edge",
		ID:     e.ID.String(),
		Type:   graph.EdgeTypeName(e.Type),
		Source: nodeSummary(src),
		Target: nodeSummary(dst),
	}
	if e.Timestamp != nil {
		ts := *e.Timestamp
		rep.Timestamp = &ts
	}
	return rep, nil
}

// DownstreamRequest pairs a request id with the start edge that opened it.
type DownstreamRequest struct {
	RequestID uint64 `json:"request_id"`
	Edge      string `json:"edge"`
}

// DownstreamReport lists every effect edge reachable from one edge and the
// network requests among them.
type DownstreamReport struct {
	Edge     string              `json:"edge"`
	Effects  []EdgeSummary       `json:"effects"`
	Requests []DownstreamRequest `json:"requests"`
}

// Downstream returns the flat closure of effects caused by an edge.
func (svc *Service) Downstream(handle, edgeID string) (*DownstreamReport, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	ed, err := lookupEdge(e.graph, edgeID)
	if err != nil {
		return nil, err
	}
	effects, err := e.graph.AllDownstreamEffectsOf(ed)
	if err != nil {
		return nil, err
	}
	rep := &DownstreamReport{Edge: ed.ID.String()}
	for _, eff := range effects {
		rep.Effects = append(rep.Effects, edgeSummary(eff))
		if rs, ok := eff.Type.(graph.RequestStart); ok {
			rep.Requests = append(rep.Requests, DownstreamRequest{
				RequestID: rs.RequestID,
				Edge:      eff.ID.String(),
			})
		}
	}
	return rep, nil
}

// DownstreamRequests returns the requests caused by an edge, nested by
// causation.
func (svc *Service) DownstreamRequests(handle, edgeID string) ([]graph.DownstreamRequests, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	ed, err := lookupEdge(e.graph, edgeID)
	if err != nil {
		return nil, err
	}
	return e.graph.AllDownstreamRequestsNested(ed)
}

// RequestInfo aggregates what a graph knows about one request id. Frame
// selects a merged remote frame by its 32-hex id; empty means the root frame.
func (svc *Service) RequestInfo(handle string, requestID uint64, frame string) (*graph.RequestInfo, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	var fid *graph.FrameID
	if frame != "" {
		parsed, err := graph.ParseFrameID(frame)
		if err != nil {
			return nil, err
		}
		fid = &parsed
	}
	return e.graph.RequestIDInfo(requestID, fid)
}

// ModificationsReport lists the edges that created or changed one HTML
// element, in timestamp order.
type ModificationsReport struct {
	Node  string        `json:"node"`
	Tag   string        `json:"tag_name,omitempty"`
	Edges []EdgeSummary `json:"edges"`
}

// Modifications returns the modification history of an HTML element.
func (svc *Service) Modifications(handle, nodeID string) (*ModificationsReport, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	nid, err := graph.ParseNodeID(nodeID)
	if err != nil {
		return nil, &ErrBadID{Value: nodeID, Err: err}
	}
	edges, err := e.graph.AllHTMLElementModifications(nid)
	if err != nil {
		return nil, err
	}
	rep := &ModificationsReport{Node: nid.String()}
	if n, ok := e.graph.Node(nid); ok {
		if el, ok := n.Type.(graph.HTMLElement); ok {
			rep.Tag = el.TagName
		}
	}
	for _, ed := range edges {
		rep.Edges = append(rep.Edges, edgeSummary(ed))
	}
	return rep, nil
}

// HotElements returns the elements modified at least threshold times.
// A threshold of zero or less uses the collector default.
func (svc *Service) HotElements(handle string, threshold int) ([]stats.HotElement, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	return stats.HotElements(e.graph, threshold)
}

// ResourceMatch is one resource caught by a filter rule.
type ResourceMatch struct {
	Node string `json:"node"`
	URL  string `json:"url"`
}

// MatchFilters returns the resources whose requests match ad-block rules.
// With rules given, an engine is built from them for this call; otherwise
// the engine built from the configured filter lists is used.
func (svc *Service) MatchFilters(handle string, rules []string, onlyExceptions bool) ([]ResourceMatch, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	m := svc.matcher
	if len(rules) > 0 {
		m = filter.NewEngine(rules)
	}
	if m == nil {
		return nil, ErrNoFilterEngine
	}
	nodes, err := e.graph.ResourcesMatchingFilters(m, onlyExceptions)
	if err != nil {
		return nil, err
	}
	out := make([]ResourceMatch, 0, len(nodes))
	for _, n := range nodes {
		rm := ResourceMatch{Node: n.ID.String()}
		if res, ok := n.Type.(graph.Resource); ok {
			rm.URL = res.URL
		}
		out = append(out, rm)
	}
	return out, nil
}

// Stats computes page statistics for a loaded graph.
func (svc *Service) Stats(handle string) (*stats.PageStats, error) {
	e, err := svc.lookup(handle)
	if err != nil {
		return nil, err
	}
	return stats.Collect(e.graph)
}
