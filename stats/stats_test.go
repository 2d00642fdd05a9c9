package stats

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagegraph/dbopen"
	"github.com/hazyhaar/pagegraph/graph"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestGraph(t *testing.T, pageURL string) *graph.PageGraph {
	t.Helper()
	fid, err := graph.ParseFrameID("0123456789ABCDEF0123456789ABCDEF")
	if err != nil {
		t.Fatal(err)
	}
	return graph.NewPageGraph(graph.Descriptor{
		Version: "0.6.3",
		URL:     pageURL,
		IsRoot:  true,
		FrameID: fid,
	})
}

func addNode(t *testing.T, g *graph.PageGraph, id uint64, typ graph.NodeType) graph.NodeID {
	t.Helper()
	nid := graph.NewNodeID(id)
	if err := g.AddNode(&graph.Node{ID: nid, Timestamp: int64(id), Type: typ}); err != nil {
		t.Fatal(err)
	}
	return nid
}

func addEdge(t *testing.T, g *graph.PageGraph, id uint64, src, dst graph.NodeID, typ graph.EdgeType, ts *int64) graph.EdgeID {
	t.Helper()
	eid := graph.NewEdgeID(id)
	if err := g.AddEdge(&graph.Edge{ID: eid, Source: src, Target: dst, Type: typ, Timestamp: ts}); err != nil {
		t.Fatal(err)
	}
	return eid
}

func tsp(v int64) *int64 { return &v }

func strp(s string) *string { return &s }

func mustFrameID(t *testing.T, s string) graph.FrameID {
	t.Helper()
	fid, err := graph.ParseFrameID(s)
	if err != nil {
		t.Fatal(err)
	}
	return fid
}

// ---------------------------------------------------------------------------
// Collect
// ---------------------------------------------------------------------------

func TestCollect(t *testing.T) {
	g := newTestGraph(t, "https://example.com/")
	parser := addNode(t, g, 1, graph.Parser{})
	root := addNode(t, g, 2, graph.DOMRoot{URL: strp("https://example.com/"), TagName: "html", DOMNodeID: 1})
	div := addNode(t, g, 3, graph.HTMLElement{TagName: "div", DOMNodeID: 2})
	span := addNode(t, g, 4, graph.HTMLElement{TagName: "span", IsDeleted: true, DOMNodeID: 3})
	img := addNode(t, g, 5, graph.HTMLElement{TagName: "img", DOMNodeID: 4})
	addNode(t, g, 6, graph.TextNode{Text: strp("hi"), DOMNodeID: 5})
	res := addNode(t, g, 7, graph.Resource{URL: "https://cdn.example.com/a.png"})
	addNode(t, g, 8, graph.RemoteFrame{FrameID: mustFrameID(t, "AAAAAAAAAAAAAAAABBBBBBBBBBBBBBBB")})
	script := addNode(t, g, 9, graph.Script{ScriptType: "classic", ScriptID: 1})

	addEdge(t, g, 1, parser, div, graph.CreateNode{}, tsp(1))
	addEdge(t, g, 2, parser, div, graph.InsertNode{Parent: 1}, tsp(2))
	addEdge(t, g, 3, script, div, graph.SetAttribute{Key: "class", Value: strp("a")}, tsp(10))
	addEdge(t, g, 4, script, div, graph.SetAttribute{Key: "class", Value: strp("b")}, tsp(11))
	addEdge(t, g, 5, parser, span, graph.CreateNode{}, tsp(3))
	addEdge(t, g, 6, parser, span, graph.InsertNode{Parent: 1}, tsp(4))
	addEdge(t, g, 7, parser, img, graph.CreateNode{}, tsp(5))
	addEdge(t, g, 8, parser, img, graph.InsertNode{Parent: 1}, tsp(6))
	addEdge(t, g, 9, script, img, graph.SetAttribute{Key: "alt", Value: strp("x")}, tsp(12))
	addEdge(t, g, 10, img, res, graph.RequestStart{RequestType: graph.RequestTypeImage, RequestID: 1}, tsp(13))
	addEdge(t, g, 11, res, script, graph.RequestComplete{ResourceType: "image", RequestID: 1, Size: "10", Headers: "{}"}, tsp(14))
	addEdge(t, g, 12, script, res, graph.RequestStart{RequestType: graph.RequestTypeAJAX, RequestID: 2}, tsp(15))
	addEdge(t, g, 13, res, script, graph.RequestComplete{ResourceType: "xhr", RequestID: 2, Size: "5", Headers: "{}"}, tsp(16))
	addEdge(t, g, 14, script, root, graph.AddEventListener{Key: "click", EventListenerID: 1, ScriptID: 1}, tsp(17))
	addEdge(t, g, 15, script, root, graph.AddEventListener{Key: "scroll", EventListenerID: 2, ScriptID: 1}, tsp(18))

	st, err := Collect(g)
	if err != nil {
		t.Fatal(err)
	}
	want := PageStats{
		URL:               "https://example.com/",
		Nodes:             9,
		Edges:             15,
		DomNodesCreated:   3,
		DomNodesRetained:  2,
		DomNodesTouched:   2,
		CompletedRequests: 2,
		EventListeners:    2,
		RemoteFrames:      1,
	}
	if *st != want {
		t.Fatalf("stats = %+v, want %+v", *st, want)
	}
}

// ---------------------------------------------------------------------------
// Hot elements
// ---------------------------------------------------------------------------

func TestHotElements(t *testing.T) {
	g := newTestGraph(t, "https://example.com/")
	parser := addNode(t, g, 1, graph.Parser{})
	script := addNode(t, g, 2, graph.Script{ScriptType: "classic", ScriptID: 1})
	a := addNode(t, g, 3, graph.HTMLElement{TagName: "div", DOMNodeID: 10})
	b := addNode(t, g, 4, graph.HTMLElement{TagName: "p", DOMNodeID: 20})
	c := addNode(t, g, 5, graph.HTMLElement{TagName: "span", DOMNodeID: 30})
	d := addNode(t, g, 6, graph.HTMLElement{TagName: "em", DOMNodeID: 40})

	next := uint64(0)
	modify := func(dst graph.NodeID, count int) []graph.EdgeID {
		ids := make([]graph.EdgeID, 0, count)
		for i := range count {
			next++
			var typ graph.EdgeType
			src := parser
			switch i {
			case 0:
				typ = graph.CreateNode{}
			case 1:
				typ = graph.InsertNode{Parent: 1}
			default:
				typ = graph.SetAttribute{Key: "class", Value: strp("x")}
				src = script
			}
			ids = append(ids, addEdge(t, g, next, src, dst, typ, tsp(int64(next))))
		}
		return ids
	}
	aMods := modify(a, 5)
	bMods := modify(b, 4)
	modify(c, 4)
	modify(d, 2)

	hot, err := HotElements(g, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(hot) != 3 {
		t.Fatalf("got %d hot elements, want 3", len(hot))
	}
	if hot[0].ID != a || hot[1].ID != b || hot[2].ID != c {
		t.Fatalf("order = %s, %s, %s", hot[0].ID, hot[1].ID, hot[2].ID)
	}
	if hot[0].TagName != "div" || hot[0].DOMNodeID != 10 {
		t.Fatalf("element = %+v", hot[0])
	}
	if !slices.Equal(hot[0].Modifications, aMods) {
		t.Fatalf("modifications = %v, want %v", hot[0].Modifications, aMods)
	}
	if !slices.Equal(hot[1].Modifications, bMods) {
		t.Fatalf("modifications = %v, want %v", hot[1].Modifications, bMods)
	}

	// Zero falls back to the default threshold of 4.
	hot, err = HotElements(g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hot) != 3 {
		t.Fatalf("got %d hot elements at default threshold, want 3", len(hot))
	}

	hot, err = HotElements(g, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hot) != 1 || hot[0].ID != a {
		t.Fatalf("threshold 5 selected %+v", hot)
	}
}

// ---------------------------------------------------------------------------
// Blocked report
// ---------------------------------------------------------------------------

// stubMatcher flags URLs by substring: block marks a match, except marks an
// exception.
type stubMatcher struct {
	block  string
	except string
}

func (m stubMatcher) Match(req graph.FilterRequest) (graph.FilterMatch, error) {
	var got graph.FilterMatch
	if m.block != "" && strings.Contains(req.URL, m.block) {
		got.Matched = true
	}
	if m.except != "" && strings.Contains(req.URL, m.except) {
		got.Matched = false
		got.Exception = true
	}
	return got, nil
}

// buildBlockedFixture wires a page whose script loads a third-party script,
// which in turn issues an API request. A logo fetched by the first script is
// not downstream of the loader.
func buildBlockedFixture(t *testing.T) *graph.PageGraph {
	t.Helper()
	g := newTestGraph(t, "https://example.com/")
	scriptEl := addNode(t, g, 1, graph.HTMLElement{TagName: "script", DOMNodeID: 2})
	script := addNode(t, g, 2, graph.Script{ScriptType: "classic", ScriptID: 1})
	loader := addNode(t, g, 3, graph.Resource{URL: "https://ads.example.net/loader.js"})
	scriptEl2 := addNode(t, g, 4, graph.HTMLElement{TagName: "script", DOMNodeID: 3})
	script2 := addNode(t, g, 5, graph.Script{ScriptType: "classic", ScriptID: 2})
	api := addNode(t, g, 6, graph.Resource{URL: "https://api.example.com/beacon"})
	logo := addNode(t, g, 7, graph.Resource{URL: "https://cdn.example.com/logo.png"})
	div := addNode(t, g, 8, graph.HTMLElement{TagName: "div", DOMNodeID: 4})

	addEdge(t, g, 1, scriptEl, script, graph.Execute{}, tsp(1))
	addEdge(t, g, 2, script, loader, graph.RequestStart{RequestType: graph.RequestTypeScript, RequestID: 1}, tsp(2))
	addEdge(t, g, 3, loader, scriptEl2, graph.RequestComplete{ResourceType: "script", RequestID: 1, Size: "100", Headers: "{}"}, tsp(3))
	addEdge(t, g, 4, scriptEl2, script2, graph.Execute{}, tsp(4))
	addEdge(t, g, 5, script2, api, graph.RequestStart{RequestType: graph.RequestTypeAJAX, RequestID: 2}, tsp(5))
	addEdge(t, g, 6, api, div, graph.RequestComplete{ResourceType: "xhr", RequestID: 2, Size: "9", Headers: "{}"}, tsp(6))
	addEdge(t, g, 7, script, logo, graph.RequestStart{RequestType: graph.RequestTypeImage, RequestID: 3}, tsp(7))
	return g
}

func TestCollectBlocked(t *testing.T) {
	g := buildBlockedFixture(t)

	report, err := CollectBlocked(g, stubMatcher{block: "ads.example.net"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.PageURL != "https://example.com/" {
		t.Fatalf("page url = %q", report.PageURL)
	}
	if report.TotalResources != 3 {
		t.Fatalf("total resources = %d, want 3", report.TotalResources)
	}
	want := []BlockedRequest{
		{URL: "https://ads.example.net/loader.js", RequestType: "script"},
		{URL: "https://api.example.com/beacon", RequestType: "xhr"},
	}
	if report.BlockedCount != len(want) || !slices.Equal(report.Blocked, want) {
		t.Fatalf("blocked = %+v, want %+v", report.Blocked, want)
	}
}

func TestCollectBlocked_OnlyExceptions(t *testing.T) {
	g := buildBlockedFixture(t)
	m := stubMatcher{except: "cdn.example.com"}

	report, err := CollectBlocked(g, m, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []BlockedRequest{{URL: "https://cdn.example.com/logo.png", RequestType: "image"}}
	if report.BlockedCount != 1 || !slices.Equal(report.Blocked, want) {
		t.Fatalf("blocked = %+v, want %+v", report.Blocked, want)
	}

	// The same matcher blocks nothing outright.
	report, err = CollectBlocked(g, m, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.BlockedCount != 0 {
		t.Fatalf("blocked = %+v, want none", report.Blocked)
	}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_SaveAndSummary(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	st := NewStore(db)
	ctx := context.Background()

	ps := &PageStats{URL: "https://example.com/", Nodes: 10, Edges: 12, CompletedRequests: 3}
	if err := st.SavePageStats(ctx, "a.graphml", ps); err != nil {
		t.Fatal(err)
	}
	// Saving the same path again keeps one row with fresh values.
	ps.Nodes = 11
	if err := st.SavePageStats(ctx, "a.graphml", ps); err != nil {
		t.Fatal(err)
	}
	if err := st.SavePageStats(ctx, "b.graphml", &PageStats{URL: "https://other.example/", Nodes: 5, Edges: 4, CompletedRequests: 1}); err != nil {
		t.Fatal(err)
	}

	var nodes int
	if err := db.QueryRow(`SELECT nodes FROM page_stats WHERE path = 'a.graphml'`).Scan(&nodes); err != nil {
		t.Fatal(err)
	}
	if nodes != 11 {
		t.Fatalf("nodes = %d, want 11", nodes)
	}

	sum, err := st.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Pages != 2 || sum.TotalNodes != 16 || sum.TotalEdges != 16 || sum.CompletedRequests != 4 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestStore_SaveHotElements(t *testing.T) {
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatal(err)
	}
	st := NewStore(db)
	ctx := context.Background()

	els := []HotElement{
		{ID: graph.NewNodeID(3), TagName: "div", DOMNodeID: 10,
			Modifications: []graph.EdgeID{graph.NewEdgeID(1), graph.NewEdgeID(2), graph.NewEdgeID(3), graph.NewEdgeID(4)}},
		{ID: graph.NewNodeID(4), TagName: "p", DOMNodeID: 20,
			Modifications: []graph.EdgeID{graph.NewEdgeID(5), graph.NewEdgeID(6), graph.NewEdgeID(7), graph.NewEdgeID(8)}},
	}
	if err := st.SaveHotElements(ctx, "a.graphml", els); err != nil {
		t.Fatal(err)
	}
	// A re-run replaces the rows for the path.
	if err := st.SaveHotElements(ctx, "a.graphml", els[:1]); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM hot_elements WHERE path = 'a.graphml'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	var mods int
	if err := db.QueryRow(`SELECT modifications FROM hot_elements WHERE node_id = 'n3'`).Scan(&mods); err != nil {
		t.Fatal(err)
	}
	if mods != 4 {
		t.Fatalf("modifications = %d, want 4", mods)
	}
}

func TestStore_SaveBlocked(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	st := NewStore(db)
	ctx := context.Background()

	report := &BlockedReport{
		PageURL:        "https://example.com/",
		TotalResources: 3,
		BlockedCount:   2,
		Blocked: []BlockedRequest{
			{URL: "https://ads.example.net/loader.js", RequestType: "script"},
			{URL: "https://ads.example.net/loader.js", RequestType: "xhr"},
		},
	}
	if err := st.SaveBlocked(ctx, "a.graphml", report); err != nil {
		t.Fatal(err)
	}
	// A re-run replaces the rows for the path.
	report.Blocked = report.Blocked[:1]
	if err := st.SaveBlocked(ctx, "a.graphml", report); err != nil {
		t.Fatal(err)
	}

	sum, err := st.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.BlockedRequests != 1 {
		t.Fatalf("blocked requests = %d, want 1", sum.BlockedRequests)
	}
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

const runnerDoc = `<?xml version="1.0" encoding="UTF-8"?>
<graphml xmlns="http://graphml.graphdrawing.org/xmlns">
  <key id="k0" for="node" attr.name="node type" attr.type="string"/>
  <key id="k1" for="node" attr.name="id" attr.type="long"/>
  <key id="k2" for="node" attr.name="timestamp" attr.type="long"/>
  <desc>
    <version>0.6.3</version>
    <about>https://github.com/brave/brave-browser/wiki/PageGraph</about>
    <url>https://example.com/</url>
    <is_root>true</is_root>
    <frame_id>0123456789ABCDEF0123456789ABCDEF</frame_id>
    <time>
      <start>100</start>
      <end>900</end>
    </time>
  </desc>
  <graph edgedefault="directed">
    <node id="n1">
      <data key="k0">parser</data>
      <data key="k2">1</data>
    </node>
  </graph>
</graphml>
`

type captureSink struct {
	mu      sync.Mutex
	stats   map[string]*PageStats
	hot     map[string][]HotElement
	blocked map[string]*BlockedReport
}

func (c *captureSink) SavePageStats(ctx context.Context, path string, st *PageStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil {
		c.stats = make(map[string]*PageStats)
	}
	c.stats[path] = st
	return nil
}

func (c *captureSink) SaveHotElements(ctx context.Context, path string, els []HotElement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hot == nil {
		c.hot = make(map[string][]HotElement)
	}
	c.hot[path] = els
	return nil
}

func (c *captureSink) SaveBlocked(ctx context.Context, path string, report *BlockedReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocked == nil {
		c.blocked = make(map[string]*BlockedReport)
	}
	c.blocked[path] = report
	return nil
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.graphml", "b.graphml"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(runnerDoc), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	bad := filepath.Join(dir, "broken.graphml")
	if err := os.WriteFile(bad, []byte("not a graphml document"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths = append(paths, bad)

	sink := &captureSink{}
	r, err := NewRunner(&Config{Workers: 2, HotThreshold: 4}, sink, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(sink.stats) != 2 {
		t.Fatalf("saved %d page stats, want 2", len(sink.stats))
	}
	st := sink.stats[paths[0]]
	if st == nil || st.Nodes != 1 || st.URL != "https://example.com/" {
		t.Fatalf("stats for %s = %+v", paths[0], st)
	}
	if len(sink.hot) != 0 {
		t.Fatalf("unexpected hot element saves: %v", sink.hot)
	}
	if len(sink.blocked) != 0 {
		t.Fatalf("unexpected blocked saves without filter lists: %v", sink.blocked)
	}
}

func TestRunner_FilterLists(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "rules.txt")
	if err := os.WriteFile(list, []byte("/adbanner/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := filepath.Join(dir, "a.graphml")
	if err := os.WriteFile(rec, []byte(runnerDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := &captureSink{}
	r, err := NewRunner(&Config{Workers: 1, FilterLists: []string{list}}, sink, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), []string{rec})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 {
		t.Fatalf("result = %+v", res)
	}
	report := sink.blocked[rec]
	if report == nil {
		t.Fatal("no blocked report saved")
	}
	// The fixture has no resource nodes, so the report is empty.
	if report.TotalResources != 0 || report.BlockedCount != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestNewRunner_BadFilterList(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.txt")
	if _, err := NewRunner(&Config{FilterLists: []string{missing}}, &captureSink{}, slog.Default()); err == nil {
		t.Fatal("expected error for missing filter list")
	}
}

func TestRunner_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewRunner(&Config{Workers: 1}, &captureSink{}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(ctx, []string{"whatever.graphml"})
	if err == nil {
		t.Fatal("expected context error")
	}
	if res.Processed != 0 {
		t.Fatalf("processed = %d, want 0", res.Processed)
	}
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.defaults()
	if cfg.DBPath == "" {
		t.Fatal("empty db path")
	}
	if cfg.Workers < 1 {
		t.Fatalf("workers = %d", cfg.Workers)
	}
	if cfg.HotThreshold != DefaultHotThreshold {
		t.Fatalf("threshold = %d", cfg.HotThreshold)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.yaml")
	doc := "db_path: results.db\nworkers: 3\nhot_threshold: 6\nfilter_lists:\n  - easylist.txt\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "results.db" || cfg.Workers != 3 || cfg.HotThreshold != 6 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.FilterLists) != 1 || cfg.FilterLists[0] != "easylist.txt" {
		t.Fatalf("filter lists = %v", cfg.FilterLists)
	}
}
