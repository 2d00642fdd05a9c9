// Command pgraph queries a single PageGraph recording. Companion frame
// recordings found next to the file are merged in before any query runs.
//
// Usage:
//
//	pgraph -f page_graph.graphml -identify n103
//	pgraph -f page_graph.graphml -downstream e42
//	pgraph -f page_graph.graphml -request-info 7 -frame 8E1F...
//	pgraph -f page_graph.graphml -match "||ads.example.net^" -match "/banner/"
//	pgraph -f page_graph.graphml -stats
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hazyhaar/pagegraph/filter"
	"github.com/hazyhaar/pagegraph/graph"
	"github.com/hazyhaar/pagegraph/graphml"
	"github.com/hazyhaar/pagegraph/stats"
)

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	graphFile := flag.String("f", "", "GraphML recording to query")
	identifyID := flag.String("identify", "", "describe the node or edge with this id")
	downstreamID := flag.String("downstream", "", "edge id: list downstream request starts")
	requestsID := flag.String("requests", "", "edge id: print the downstream request tree")
	requestID := flag.String("request-info", "", "request id: print everything recorded about it")
	frameID := flag.String("frame", "", "frame id for -request-info (defaults to the root frame)")
	modificationsID := flag.String("modifications", "", "node id: print an HTML element's modification history")
	var matchRules, listFiles multiFlag
	flag.Var(&matchRules, "match", "adblock rule to match resources against (repeatable)")
	flag.Var(&listFiles, "list", "file of adblock rules to match resources against (repeatable)")
	exceptions := flag.Bool("exceptions", false, "with -match/-list, report exception hits instead of blocks")
	statsMode := flag.Bool("stats", false, "print page statistics")
	hotMode := flag.Bool("hot-elements", false, "list heavily modified elements")
	threshold := flag.Int("threshold", 0, "with -hot-elements, minimum modification count (default 4)")
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

	modes := 0
	for _, on := range []bool{
		*identifyID != "", *downstreamID != "", *requestsID != "", *requestID != "",
		*modificationsID != "", len(matchRules)+len(listFiles) > 0, *statsMode, *hotMode,
	} {
		if on {
			modes++
		}
	}
	if *graphFile == "" || modes != 1 {
		fmt.Fprintln(os.Stderr, "usage: pgraph -f <graph.graphml> -identify <id> | -downstream <edge> | -requests <edge> | -request-info <id> [-frame <hex>] | -modifications <node> | -match <rule> [-list <file>] [-exceptions] | -stats | -hot-elements [-threshold <n>]")
		os.Exit(1)
	}

	if err := run(runOptions{
		graphFile:     *graphFile,
		identify:      *identifyID,
		downstream:    *downstreamID,
		requests:      *requestsID,
		requestID:     *requestID,
		frame:         *frameID,
		modifications: *modificationsID,
		matchRules:    matchRules,
		listFiles:     listFiles,
		exceptions:    *exceptions,
		stats:         *statsMode,
		hotElements:   *hotMode,
		threshold:     *threshold,
	}); err != nil {
		logger.Error("pgraph: fatal", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	graphFile     string
	identify      string
	downstream    string
	requests      string
	requestID     string
	frame         string
	modifications string
	matchRules    []string
	listFiles     []string
	exceptions    bool
	stats         bool
	hotElements   bool
	threshold     int
}

func run(opts runOptions) error {
	g, err := graphml.LoadFileWithFrames(opts.graphFile)
	if err != nil {
		return err
	}

	switch {
	case opts.identify != "":
		return identify(g, opts.identify)
	case opts.downstream != "":
		return downstream(g, opts.downstream)
	case opts.requests != "":
		return downstreamTree(g, opts.requests)
	case opts.requestID != "":
		return requestInfo(g, opts.requestID, opts.frame)
	case opts.modifications != "":
		return modifications(g, opts.modifications)
	case len(opts.matchRules)+len(opts.listFiles) > 0:
		return matchFilters(g, opts.matchRules, opts.listFiles, opts.exceptions)
	case opts.stats:
		st, err := stats.Collect(g)
		if err != nil {
			return err
		}
		return printJSON(st)
	case opts.hotElements:
		hot, err := stats.HotElements(g, opts.threshold)
		if err != nil {
			return err
		}
		return printJSON(hot)
	default:
		return errors.New("pgraph: no mode selected")
	}
}

func lookupEdge(g *graph.PageGraph, id string) (*graph.Edge, error) {
	eid, err := graph.ParseEdgeID(id)
	if err != nil {
		return nil, err
	}
	e, ok := g.Edge(eid)
	if !ok {
		return nil, fmt.Errorf("pgraph: no edge with id %s in this graph", id)
	}
	return e, nil
}

// identify prints the original line-oriented report for one node or edge.
func identify(g *graph.PageGraph, id string) error {
	if nid, err := graph.ParseNodeID(id); err == nil {
		if n, ok := g.Node(nid); ok {
			printNode(g, n)
			return nil
		}
		fmt.Printf("No node or edge with id %s was found in this graph.\n", id)
		return nil
	}
	eid, err := graph.ParseEdgeID(id)
	if err != nil {
		return fmt.Errorf("pgraph: %q is not a node or edge id", id)
	}
	e, ok := g.Edge(eid)
	if !ok {
		fmt.Printf("No node or edge with id %s was found in this graph.\n", id)
		return nil
	}
	return printEdge(g, e)
}

func printNode(g *graph.PageGraph, n *graph.Node) {
	fmt.Printf("Node %s\n", n.ID)
	fmt.Printf("Timestamp: %d\n", n.Timestamp)
	fmt.Printf("Type: %s\n", graph.NodeTypeName(n.Type))

	fmt.Println()
	fmt.Println("Incoming edges")
	for _, e := range g.IncomingEdges(n.ID) {
		fmt.Printf("  %s\n", e.ID)
		fmt.Printf("    Timestamp: %s\n", timestampString(e.Timestamp))
		fmt.Printf("    Type: %s\n", graph.EdgeTypeName(e.Type))
	}

	fmt.Println()
	fmt.Println("Outgoing edges")
	for _, e := range g.OutgoingEdges(n.ID) {
		fmt.Printf("  %s\n", e.ID)
		fmt.Printf("    Timestamp: %s\n", timestampString(e.Timestamp))
		fmt.Printf("    Type: %s\n", graph.EdgeTypeName(e.Type))
	}
}

func printEdge(g *graph.PageGraph, e *graph.Edge) error {
	src, err := g.SourceNode(e)
	if err != nil {
		return err
	}
	dst, err := g.TargetNode(e)
	if err != nil {
		return err
	}

	fmt.Printf("Edge %s\n", e.ID)
	fmt.Printf("Timestamp: %s\n", timestampString(e.Timestamp))
	fmt.Printf("Type: %s\n", graph.EdgeTypeName(e.Type))

	fmt.Println()
	fmt.Println("Source node")
	printNodeLines(src)

	fmt.Println()
	fmt.Println("Target node")
	printNodeLines(dst)
	return nil
}

func printNodeLines(n *graph.Node) {
	fmt.Printf("  %s\n", n.ID)
	fmt.Printf("    Timestamp: %d\n", n.Timestamp)
	fmt.Printf("    Type: %s\n", graph.NodeTypeName(n.Type))
}

func timestampString(ts *int64) string {
	if ts == nil {
		return "none"
	}
	return strconv.FormatInt(*ts, 10)
}

type requestStart struct {
	RequestID uint64 `json:"request_id"`
	Edge      string `json:"edge"`
}

func downstream(g *graph.PageGraph, id string) error {
	e, err := lookupEdge(g, id)
	if err != nil {
		return err
	}
	effects, err := g.AllDownstreamEffectsOf(e)
	if err != nil {
		return err
	}
	starts := []requestStart{}
	for _, eff := range effects {
		if rs, ok := eff.Type.(graph.RequestStart); ok {
			starts = append(starts, requestStart{RequestID: rs.RequestID, Edge: eff.ID.String()})
		}
	}
	return printJSON(starts)
}

func downstreamTree(g *graph.PageGraph, id string) error {
	e, err := lookupEdge(g, id)
	if err != nil {
		return err
	}
	tree, err := g.AllDownstreamRequestsNested(e)
	if err != nil {
		return err
	}
	return printJSON(tree)
}

func requestInfo(g *graph.PageGraph, requestID, frame string) error {
	id, err := strconv.ParseUint(requestID, 10, 64)
	if err != nil {
		return fmt.Errorf("pgraph: request id %q is not a number", requestID)
	}
	var fid *graph.FrameID
	if frame != "" {
		f, err := graph.ParseFrameID(frame)
		if err != nil {
			return err
		}
		fid = &f
	}
	info, err := g.RequestIDInfo(id, fid)
	if err != nil {
		return err
	}
	return printJSON(info)
}

type modificationEdge struct {
	ID        string `json:"id"`
	Timestamp *int64 `json:"timestamp,omitempty"`
	Type      string `json:"type"`
}

func modifications(g *graph.PageGraph, id string) error {
	nid, err := graph.ParseNodeID(id)
	if err != nil {
		return err
	}
	mods, err := g.AllHTMLElementModifications(nid)
	if err != nil {
		return err
	}
	out := make([]modificationEdge, len(mods))
	for i, e := range mods {
		out[i] = modificationEdge{ID: e.ID.String(), Type: graph.EdgeTypeName(e.Type)}
		if e.Timestamp != nil {
			ts := *e.Timestamp
			out[i].Timestamp = &ts
		}
	}
	return printJSON(out)
}

type resourceMatch struct {
	Node string `json:"node"`
	URL  string `json:"url"`
}

func matchFilters(g *graph.PageGraph, rules, listFiles []string, exceptions bool) error {
	all := append([]string{}, rules...)
	for _, path := range listFiles {
		fromFile, err := filter.LoadListFile(path)
		if err != nil {
			return err
		}
		all = append(all, fromFile...)
	}
	eng := filter.NewEngine(all)

	nodes, err := g.ResourcesMatchingFilters(eng, exceptions)
	if err != nil {
		return err
	}
	matches := []resourceMatch{}
	for _, n := range nodes {
		res := n.Type.(graph.Resource)
		matches = append(matches, resourceMatch{Node: n.ID.String(), URL: res.URL})
	}
	return printJSON(matches)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
