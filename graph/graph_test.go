package graph

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestGraph(t *testing.T, isRoot bool) *PageGraph {
	t.Helper()
	return NewPageGraph(Descriptor{
		Version:   "0.6.3",
		About:     "https://github.com/brave/brave-browser/wiki/PageGraph",
		URL:       "https://example.com/",
		IsRoot:    isRoot,
		FrameID:   mustFrameID(t, "0123456789ABCDEF0123456789ABCDEF"),
		TimeStart: 100,
		TimeEnd:   900,
	})
}

func addNode(t *testing.T, g *PageGraph, id uint64, typ NodeType) NodeID {
	t.Helper()
	nid := NewNodeID(id)
	if err := g.AddNode(&Node{ID: nid, Type: typ}); err != nil {
		t.Fatalf("add node %d: %v", id, err)
	}
	return nid
}

func addEdge(t *testing.T, g *PageGraph, id uint64, src, dst NodeID, typ EdgeType, ts *int64) EdgeID {
	t.Helper()
	eid := NewEdgeID(id)
	if err := g.AddEdge(&Edge{ID: eid, Timestamp: ts, Type: typ, Source: src, Target: dst}); err != nil {
		t.Fatalf("add edge %d: %v", id, err)
	}
	return eid
}

func tsp(v int64) *int64 { return &v }

func strp(s string) *string { return &s }

func nodeIDs(ns []*Node) []NodeID {
	out := make([]NodeID, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func edgeIDs(es []*Edge) []EdgeID {
	out := make([]EdgeID, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestPageGraph_DuplicateIDs(t *testing.T) {
	g := newTestGraph(t, true)
	addNode(t, g, 1, Parser{})
	if err := g.AddNode(&Node{ID: NewNodeID(1), Type: Parser{}}); err == nil {
		t.Fatal("duplicate node id should be rejected")
	}

	a := addNode(t, g, 2, Resource{URL: "https://example.com/a.js"})
	addEdge(t, g, 1, NewNodeID(1), a, RequestStart{RequestID: 9}, tsp(1))
	if err := g.AddEdge(&Edge{ID: NewEdgeID(1), Type: RequestError{}, Source: NewNodeID(1), Target: a}); err == nil {
		t.Fatal("duplicate edge id should be rejected")
	}
}

func TestPageGraph_AdjacencyOrdering(t *testing.T) {
	g := newTestGraph(t, true)
	p := addNode(t, g, 1, Parser{})
	a := addNode(t, g, 2, HTMLElement{TagName: "div", DOMNodeID: 10})
	b := addNode(t, g, 3, HTMLElement{TagName: "p", DOMNodeID: 11})

	// Insert out of id order on purpose.
	addEdge(t, g, 7, p, b, CreateNode{}, tsp(3))
	addEdge(t, g, 2, p, a, CreateNode{}, tsp(1))
	addEdge(t, g, 5, p, a, InsertNode{Parent: 1}, tsp(2))

	out := edgeIDs(g.OutgoingEdges(p))
	want := []EdgeID{NewEdgeID(2), NewEdgeID(5), NewEdgeID(7)}
	if len(out) != len(want) {
		t.Fatalf("outgoing edges: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("outgoing order at %d: got %s, want %s", i, out[i], want[i])
		}
	}

	in := edgeIDs(g.IncomingEdges(a))
	if len(in) != 2 || in[0] != NewEdgeID(2) || in[1] != NewEdgeID(5) {
		t.Fatalf("incoming edges of %s: %v", a, in)
	}
}

func TestPageGraph_DanglingEdge(t *testing.T) {
	g := newTestGraph(t, true)
	a := addNode(t, g, 1, Parser{})
	addEdge(t, g, 1, a, NewNodeID(99), CreateNode{}, nil)

	e, _ := g.Edge(NewEdgeID(1))
	_, err := g.TargetNode(e)
	var dangling *ErrDanglingEdge
	if !errors.As(err, &dangling) {
		t.Fatalf("expected dangling edge error, got %v", err)
	}
	if dangling.Node != NewNodeID(99) || dangling.End != "target" {
		t.Fatalf("unexpected details: %+v", dangling)
	}
	if _, err := g.SourceNode(e); err != nil {
		t.Fatalf("source resolves: %v", err)
	}
}

func TestPageGraph_SyntheticEdgeIDs(t *testing.T) {
	g := newTestGraph(t, true)
	first, err := g.NewEdgeID()
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.NewEdgeID()
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("synthetic ids must be distinct")
	}
	if first.Compare(second) <= 0 {
		t.Fatal("synthetic ids count down from the top of the id space")
	}
}

func TestPageGraph_AllRemoteFrameIDs(t *testing.T) {
	g := newTestGraph(t, true)
	fa := mustFrameID(t, "000000000000000000000000000000AA")
	fb := mustFrameID(t, "00000000000000000000000000000001")
	addNode(t, g, 1, RemoteFrame{FrameID: fa})
	addNode(t, g, 2, RemoteFrame{FrameID: fb})
	addNode(t, g, 3, RemoteFrame{FrameID: fa})
	addNode(t, g, 4, Parser{})

	ids := g.AllRemoteFrameIDs()
	if len(ids) != 2 || ids[0] != fb || ids[1] != fa {
		t.Fatalf("unexpected frame ids: %v", ids)
	}
}

// ---------------------------------------------------------------------------
// Frame merging
// ---------------------------------------------------------------------------

func buildChildFrame(t *testing.T) *PageGraph {
	t.Helper()
	child := newTestGraph(t, false)
	root := addNode(t, child, 1, DOMRoot{URL: strp("https://frame.example.org/"), TagName: "html", DOMNodeID: 1})
	parser := addNode(t, child, 2, Parser{})
	el := addNode(t, child, 3, HTMLElement{TagName: "div", DOMNodeID: 2})
	addEdge(t, child, 1, parser, root, CreateNode{}, tsp(1))
	addEdge(t, child, 2, parser, el, CreateNode{}, tsp(2))
	addEdge(t, child, 3, parser, el, InsertNode{Parent: 1}, tsp(3))
	return child
}

func TestMergeFrame(t *testing.T) {
	frameID := mustFrameID(t, "000000000000000000000000000000FF")
	parent := newTestGraph(t, true)
	remote := addNode(t, parent, 1, RemoteFrame{FrameID: frameID})
	child := buildChildFrame(t)

	if err := parent.MergeFrame(child, frameID); err != nil {
		t.Fatal(err)
	}

	// Copied nodes carry the frame id.
	if _, ok := parent.Node(NewNodeID(3).WithFrame(frameID)); !ok {
		t.Fatal("child node was not copied with a framed id")
	}
	if _, ok := parent.Node(NewNodeID(3)); ok {
		t.Fatal("child node leaked in without a frame id")
	}

	// Copied edges carry the frame id and rewritten endpoints.
	e, ok := parent.Edge(NewEdgeID(3).WithFrame(frameID))
	if !ok {
		t.Fatal("child edge was not copied with a framed id")
	}
	if e.Source != NewNodeID(2).WithFrame(frameID) || e.Target != NewNodeID(3).WithFrame(frameID) {
		t.Fatalf("edge endpoints not rewritten: %s -> %s", e.Source, e.Target)
	}

	// The remote frame gained cross DOM edges to the child's anchors.
	var anchors []NodeID
	for _, oe := range parent.OutgoingEdges(remote) {
		if _, ok := oe.Type.(CrossDOM); !ok {
			t.Fatalf("unexpected edge type %T out of remote frame", oe.Type)
		}
		if oe.Timestamp != nil {
			t.Fatal("synthesized edges carry no timestamp")
		}
		anchors = append(anchors, oe.Target)
	}
	if len(anchors) != 2 {
		t.Fatalf("expected 2 anchor edges, got %d", len(anchors))
	}
	wantRoot := NewNodeID(1).WithFrame(frameID)
	wantParser := NewNodeID(2).WithFrame(frameID)
	if anchors[0] != wantRoot && anchors[1] != wantRoot {
		t.Fatal("DOM root anchor missing")
	}
	if anchors[0] != wantParser && anchors[1] != wantParser {
		t.Fatal("parser anchor missing")
	}
}

func TestMergeFrame_Violations(t *testing.T) {
	frameID := mustFrameID(t, "000000000000000000000000000000FF")

	nonRoot := newTestGraph(t, false)
	if err := nonRoot.MergeFrame(buildChildFrame(t), frameID); err == nil {
		t.Fatal("merging into a non-root recording should fail")
	}

	parent := newTestGraph(t, true)
	if err := parent.MergeFrame(buildChildFrame(t), frameID); err == nil {
		t.Fatal("merging without a matching remote frame should fail")
	}
	addNode(t, parent, 1, RemoteFrame{FrameID: frameID})
	rootChild := newTestGraph(t, true)
	if err := parent.MergeFrame(rootChild, frameID); err == nil {
		t.Fatal("merging a root recording as a child should fail")
	}
}

func TestMergeFrame_NestedSubframesExcludedFromAnchors(t *testing.T) {
	frameID := mustFrameID(t, "000000000000000000000000000000FF")
	parent := newTestGraph(t, true)
	addNode(t, parent, 1, RemoteFrame{FrameID: frameID})

	child := buildChildFrame(t)
	// A nested subframe root inside the child, reached by a cross DOM edge,
	// must not be mistaken for the top-level anchor.
	owner := addNode(t, child, 4, FrameOwner{TagName: "iframe", DOMNodeID: 3})
	nested := addNode(t, child, 5, DOMRoot{URL: strp("about:blank"), TagName: "html", DOMNodeID: 1})
	addEdge(t, child, 4, owner, nested, CrossDOM{}, tsp(4))

	if err := parent.MergeFrame(child, frameID); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func TestAllHTMLElementModifications(t *testing.T) {
	g := newTestGraph(t, true)
	parser := addNode(t, g, 1, Parser{})
	el := addNode(t, g, 2, HTMLElement{TagName: "div", DOMNodeID: 5})

	addEdge(t, g, 1, parser, el, CreateNode{}, tsp(30))
	addEdge(t, g, 2, parser, el, SetAttribute{Key: "id", Value: strp("x")}, tsp(10))
	addEdge(t, g, 3, parser, el, Structure{}, tsp(5))
	addEdge(t, g, 4, parser, el, InsertNode{Parent: 1}, tsp(10))

	mods, err := g.AllHTMLElementModifications(el)
	if err != nil {
		t.Fatal(err)
	}
	got := edgeIDs(mods)
	want := []EdgeID{NewEdgeID(2), NewEdgeID(4), NewEdgeID(1)}
	if len(got) != len(want) {
		t.Fatalf("got %d modifications, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order at %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAllHTMLElementModifications_Errors(t *testing.T) {
	g := newTestGraph(t, true)
	parser := addNode(t, g, 1, Parser{})
	el := addNode(t, g, 2, HTMLElement{TagName: "div", DOMNodeID: 5})
	addEdge(t, g, 1, parser, el, CreateNode{}, nil)

	_, err := g.AllHTMLElementModifications(el)
	var noTS *ErrNoTimestamp
	if !errors.As(err, &noTS) {
		t.Fatalf("expected missing timestamp error, got %v", err)
	}

	_, err = g.AllHTMLElementModifications(parser)
	var unimpl *ErrUnimplemented
	if !errors.As(err, &unimpl) {
		t.Fatalf("expected unimplemented error for parser node, got %v", err)
	}

	_, err = g.AllHTMLElementModifications(NewNodeID(99))
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestScriptsThatCausedResource(t *testing.T) {
	g := newTestGraph(t, true)
	script := addNode(t, g, 1, Script{ScriptType: "classic", ScriptID: 11})
	el := addNode(t, g, 2, HTMLElement{TagName: "img", DOMNodeID: 4})
	res := addNode(t, g, 3, Resource{URL: "https://cdn.example.com/a.png"})

	addEdge(t, g, 1, script, res, RequestStart{RequestType: RequestTypeImage, RequestID: 1}, tsp(1))
	addEdge(t, g, 2, el, res, RequestStart{RequestType: RequestTypeImage, RequestID: 2}, tsp(2))
	addEdge(t, g, 3, script, res, RequestStart{RequestType: RequestTypeImage, RequestID: 3}, tsp(3))

	initiators, err := g.ScriptsThatCausedResource(res)
	if err != nil {
		t.Fatal(err)
	}
	got := nodeIDs(initiators)
	if len(got) != 2 || got[0] != script || got[1] != el {
		t.Fatalf("unexpected initiators: %v", got)
	}

	if _, err := g.ScriptsThatCausedResource(script); err == nil {
		t.Fatal("non-resource node should be rejected")
	}
}

func TestResourcesFromScript(t *testing.T) {
	g := newTestGraph(t, true)
	el := addNode(t, g, 1, HTMLElement{TagName: "script", DOMNodeID: 7})
	script := addNode(t, g, 2, Script{ScriptType: "classic", ScriptID: 3})
	src := addNode(t, g, 3, Resource{URL: "https://example.com/app.js"})
	fetched := addNode(t, g, 4, Resource{URL: "https://api.example.com/data"})

	addEdge(t, g, 1, el, src, RequestStart{RequestType: RequestTypeScript, RequestID: 1}, tsp(1))
	addEdge(t, g, 2, el, script, Execute{}, tsp(2))
	addEdge(t, g, 3, script, fetched, RequestStart{RequestType: RequestTypeAJAX, RequestID: 2}, tsp(3))

	// From the element: its own src fetch plus the attached script's fetches.
	res, err := g.ResourcesFromScript(el)
	if err != nil {
		t.Fatal(err)
	}
	got := nodeIDs(res)
	if len(got) != 2 || got[0] != src || got[1] != fetched {
		t.Fatalf("unexpected resources: %v", got)
	}

	// From the script node alone.
	res, err = g.ResourcesFromScript(script)
	if err != nil {
		t.Fatal(err)
	}
	if got := nodeIDs(res); len(got) != 1 || got[0] != fetched {
		t.Fatalf("unexpected resources: %v", got)
	}

	if _, err := g.ResourcesFromScript(fetched); err == nil {
		t.Fatal("non-script node should be rejected")
	}
}

func TestRootURL_DescriptorAndFallback(t *testing.T) {
	g := newTestGraph(t, true)
	u, err := g.RootURL()
	if err != nil || u != "https://example.com/" {
		t.Fatalf("descriptor URL: %q, %v", u, err)
	}

	old := NewPageGraph(Descriptor{IsRoot: true})
	parser := addNode(t, old, 1, Parser{})
	root := addNode(t, old, 2, DOMRoot{URL: strp("https://old.example.net/"), TagName: "html", DOMNodeID: 1})
	child := addNode(t, old, 3, DOMRoot{URL: strp("https://old.example.net/child"), TagName: "html", DOMNodeID: 2})
	addEdge(t, old, 1, parser, child, CreateNode{}, tsp(1))
	_ = root

	u, err = old.RootURL()
	if err != nil || u != "https://old.example.net/" {
		t.Fatalf("fallback URL: %q, %v", u, err)
	}

	ambiguous := NewPageGraph(Descriptor{IsRoot: true})
	addNode(t, ambiguous, 1, DOMRoot{URL: strp("https://a.example/"), TagName: "html", DOMNodeID: 1})
	addNode(t, ambiguous, 2, DOMRoot{URL: strp("https://b.example/"), TagName: "html", DOMNodeID: 2})
	_, err = ambiguous.RootURL()
	var card *ErrCardinality
	if !errors.As(err, &card) {
		t.Fatalf("expected cardinality error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Request queries
// ---------------------------------------------------------------------------

func TestResourceRequestTypes(t *testing.T) {
	g := newTestGraph(t, true)
	el := addNode(t, g, 1, HTMLElement{TagName: "img", DOMNodeID: 2})
	res := addNode(t, g, 2, Resource{URL: "https://cdn.example.com/pic.png"})

	addEdge(t, g, 1, el, res, RequestStart{RequestType: RequestTypeImage, RequestID: 1}, tsp(1))
	addEdge(t, g, 2, res, el, RequestComplete{ResourceType: "image", RequestID: 1, Size: "2048", Headers: "{}"}, tsp(2))
	// Same type and size again under a different request id: deduplicated.
	addEdge(t, g, 3, el, res, RequestStart{RequestType: RequestTypeImage, RequestID: 2}, tsp(3))
	addEdge(t, g, 4, res, el, RequestComplete{ResourceType: "image", RequestID: 2, Size: "2048", Headers: "{}"}, tsp(4))
	// Unsized fetch of the same resource.
	addEdge(t, g, 5, el, res, RequestStart{RequestType: RequestTypeAJAX, RequestID: 3}, tsp(5))
	addEdge(t, g, 6, res, el, RequestComplete{ResourceType: "xhr", RequestID: 3, Size: "streamed", Headers: "{}"}, tsp(6))

	types, err := g.ResourceRequestTypes(res)
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 2 {
		t.Fatalf("expected 2 entries, got %+v", types)
	}
	if types[0].RequestType != "image" || types[0].Size == nil || *types[0].Size != 2048 {
		t.Fatalf("unexpected first entry: %+v", types[0])
	}
	if types[1].RequestType != "xhr" || types[1].Size != nil {
		t.Fatalf("unexpected second entry: %+v", types[1])
	}
}

func TestResourceRequestTypes_NeverRequested(t *testing.T) {
	g := newTestGraph(t, true)
	res := addNode(t, g, 1, Resource{URL: "https://example.com/ghost"})

	types, err := g.ResourceRequestTypes(res)
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 1 || types[0].RequestType != "other" || types[0].Size != nil {
		t.Fatalf("unexpected entries: %+v", types)
	}
}

func TestRequestIDInfo(t *testing.T) {
	g := newTestGraph(t, true)
	el := addNode(t, g, 1, HTMLElement{TagName: "script", DOMNodeID: 3})
	res := addNode(t, g, 2, Resource{URL: "https://example.com/app.js"})

	addEdge(t, g, 1, el, res, RequestStart{RequestType: RequestTypeScript, Status: "started", RequestID: 42}, tsp(1))
	addEdge(t, g, 2, res, el, RequestComplete{
		ResourceType: "script",
		Status:       "ok",
		ResponseHash: strp("abc123"),
		RequestID:    42,
		Headers:      `{"content-type":"text/javascript"}`,
		Size:         "512",
	}, tsp(2))

	info, err := g.RequestIDInfo(42, nil)
	if err != nil {
		t.Fatal(err)
	}
	if info.RequestType != RequestTypeScript || info.URL != "https://example.com/app.js" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.ResourceType != "script" || info.Status != "ok" || info.Size != "512" {
		t.Fatalf("unexpected completion details: %+v", info)
	}
	if info.ResponseHash == nil || *info.ResponseHash != "abc123" {
		t.Fatalf("unexpected response hash: %v", info.ResponseHash)
	}

	_, err = g.RequestIDInfo(43, nil)
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRequestIDInfo_FrameScoping(t *testing.T) {
	frameID := mustFrameID(t, "000000000000000000000000000000FF")
	parent := newTestGraph(t, true)
	addNode(t, parent, 1, RemoteFrame{FrameID: frameID})

	child := newTestGraph(t, false)
	root := addNode(t, child, 1, DOMRoot{URL: strp("https://frame.example.org/"), TagName: "html", DOMNodeID: 1})
	parser := addNode(t, child, 2, Parser{})
	el := addNode(t, child, 3, HTMLElement{TagName: "img", DOMNodeID: 2})
	res := addNode(t, child, 4, Resource{URL: "https://frame.example.org/pic.png"})
	addEdge(t, child, 1, parser, root, CreateNode{}, tsp(1))
	addEdge(t, child, 2, el, res, RequestStart{RequestType: RequestTypeImage, RequestID: 7}, tsp(2))
	addEdge(t, child, 3, res, el, RequestComplete{ResourceType: "image", RequestID: 7, Size: "10", Headers: "{}"}, tsp(3))

	if err := parent.MergeFrame(child, frameID); err != nil {
		t.Fatal(err)
	}

	if _, err := parent.RequestIDInfo(7, nil); err == nil {
		t.Fatal("request from the child frame should not resolve in the root context")
	}
	info, err := parent.RequestIDInfo(7, &frameID)
	if err != nil {
		t.Fatal(err)
	}
	if info.URL != "https://frame.example.org/pic.png" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestRequestIDInfo_MismatchedResource(t *testing.T) {
	g := newTestGraph(t, true)
	el := addNode(t, g, 1, HTMLElement{TagName: "img", DOMNodeID: 2})
	resA := addNode(t, g, 2, Resource{URL: "https://example.com/a"})
	resB := addNode(t, g, 3, Resource{URL: "https://example.com/b"})

	addEdge(t, g, 1, el, resA, RequestStart{RequestType: RequestTypeImage, RequestID: 5}, tsp(1))
	addEdge(t, g, 2, resB, el, RequestComplete{ResourceType: "image", RequestID: 5, Size: "1", Headers: "{}"}, tsp(2))

	_, err := g.RequestIDInfo(5, nil)
	var card *ErrCardinality
	if !errors.As(err, &card) {
		t.Fatalf("expected cardinality error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Filter matching
// ---------------------------------------------------------------------------

// substringMatcher flags requests whose URL contains a fragment, with a
// second fragment list carving out exceptions.
type substringMatcher struct {
	block  []string
	except []string
}

func (m *substringMatcher) Match(req FilterRequest) (FilterMatch, error) {
	var match FilterMatch
	for _, s := range m.block {
		if strings.Contains(req.URL, s) {
			match.Matched = true
		}
	}
	for _, s := range m.except {
		if strings.Contains(req.URL, s) {
			match.Exception = true
			match.Matched = false
		}
	}
	return match, nil
}

func TestResourcesMatchingFilters(t *testing.T) {
	g := newTestGraph(t, true)
	el := addNode(t, g, 1, HTMLElement{TagName: "img", DOMNodeID: 2})
	ad := addNode(t, g, 2, Resource{URL: "https://ads.tracker.example/banner.png"})
	clean := addNode(t, g, 3, Resource{URL: "https://cdn.example.com/logo.png"})
	allowed := addNode(t, g, 4, Resource{URL: "https://ads.tracker.example/allowed/pixel.png"})

	addEdge(t, g, 1, el, ad, RequestStart{RequestType: RequestTypeImage, RequestID: 1}, tsp(1))
	addEdge(t, g, 2, el, clean, RequestStart{RequestType: RequestTypeImage, RequestID: 2}, tsp(2))
	addEdge(t, g, 3, el, allowed, RequestStart{RequestType: RequestTypeImage, RequestID: 3}, tsp(3))

	m := &substringMatcher{block: []string{"ads."}, except: []string{"/allowed/"}}

	matched, err := g.ResourcesMatchingFilters(m, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := nodeIDs(matched); len(got) != 1 || got[0] != ad {
		t.Fatalf("unexpected matches: %v", got)
	}

	exceptions, err := g.ResourcesMatchingFilters(m, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := nodeIDs(exceptions); len(got) != 1 || got[0] != allowed {
		t.Fatalf("unexpected exceptions: %v", got)
	}
}

func TestRegistrableDomain(t *testing.T) {
	cases := []struct {
		host, want string
	}{
		{"localhost", "localhost"},
		{"example.com", "example.com"},
		{"cdn.static.example.com", "example.com"},
		{"foo.example.co.uk", "example.co.uk"},
	}
	for _, tc := range cases {
		got, err := RegistrableDomain(tc.host)
		if err != nil {
			t.Fatalf("domain for %q: %v", tc.host, err)
		}
		if got != tc.want {
			t.Fatalf("domain for %q: got %q, want %q", tc.host, got, tc.want)
		}
	}
}
