// Package graphml reads PageGraph recordings from their GraphML
// serialization.
package graphml

import (
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/hazyhaar/pagegraph/graph"
)

// Parse reads a single GraphML document and builds the page graph it
// records. The schema is strict: unknown node and edge type strings,
// unconsumed data attributes and structural violations all fail the parse,
// since a trace that cannot be fully understood cannot be safely queried.
func Parse(r io.Reader) (*graph.PageGraph, error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("graphml: document has no <graphml> element")
		}
		if err != nil {
			return nil, fmt.Errorf("graphml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "graphml" {
			return nil, &ErrUnexpectedElement{Element: start.Name.Local, Context: "document"}
		}
		return parseDocument(d)
	}
}

// parseDocument consumes the children of <graphml>: key declarations, the
// descriptor block and exactly one graph.
func parseDocument(d *xml.Decoder) (*graph.PageGraph, error) {
	keys := newKeyModel()
	var desc *graph.Descriptor
	var g *graph.PageGraph

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("graphml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "key":
				if g != nil {
					return nil, fmt.Errorf("graphml: <key> declared after <graph>")
				}
				if err := keys.add(d, t); err != nil {
					return nil, err
				}
			case "desc":
				parsed, err := parseDesc(d)
				if err != nil {
					return nil, err
				}
				desc = parsed
			case "graph":
				if g != nil {
					return nil, fmt.Errorf("graphml: multiple <graph> elements")
				}
				if desc == nil {
					return nil, fmt.Errorf("graphml: <graph> precedes <desc>")
				}
				g, err = parseGraph(d, keys, *desc)
				if err != nil {
					return nil, err
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, fmt.Errorf("graphml: %w", err)
				}
			}
		case xml.EndElement:
			if g == nil {
				return nil, fmt.Errorf("graphml: document ended without a <graph> element")
			}
			return g, nil
		}
	}
}

// keyItem is one <key> declaration, addressed by its attr.name.
type keyItem struct {
	id       string
	attrType string
}

type keyModel struct {
	node map[string]keyItem
	edge map[string]keyItem
}

func newKeyModel() *keyModel {
	return &keyModel{node: make(map[string]keyItem), edge: make(map[string]keyItem)}
}

func (k *keyModel) add(d *xml.Decoder, start xml.StartElement) error {
	var id, forAttr, name, attrType string
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			id = a.Value
		case "for":
			forAttr = a.Value
		case "attr.name":
			name = a.Value
		case "attr.type":
			attrType = a.Value
		default:
			return &ErrUnexpectedAttr{Attr: a.Name.Local, Element: "key"}
		}
	}
	if id == "" {
		return &ErrMissingAttr{Attr: "id", Element: "key"}
	}
	if name == "" {
		return &ErrMissingAttr{Attr: "attr.name", Element: "key"}
	}
	if attrType == "" {
		return &ErrMissingAttr{Attr: "attr.type", Element: "key"}
	}
	switch forAttr {
	case "node":
		k.node[name] = keyItem{id: id, attrType: attrType}
	case "edge":
		k.edge[name] = keyItem{id: id, attrType: attrType}
	case "":
		return &ErrMissingAttr{Attr: "for", Element: "key"}
	default:
		return &ErrBadValue{Attr: "for", Value: forAttr}
	}
	if err := d.Skip(); err != nil {
		return fmt.Errorf("graphml: %w", err)
	}
	return nil
}

// parseDesc consumes the <desc> metadata block.
func parseDesc(d *xml.Decoder) (*graph.Descriptor, error) {
	fields := make(map[string]string)
	var timeStart, timeEnd *uint64

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("graphml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch name := t.Name.Local; name {
			case "version", "about", "url", "is_root", "frame_id":
				s, err := textOf(d, t)
				if err != nil {
					return nil, err
				}
				fields[name] = s
			case "time":
				start, end, err := parseTime(d)
				if err != nil {
					return nil, err
				}
				timeStart, timeEnd = &start, &end
			default:
				return nil, &ErrUnexpectedElement{Element: name, Context: "desc"}
			}
		case xml.EndElement:
			for _, req := range []string{"version", "about", "url", "is_root", "frame_id"} {
				if _, ok := fields[req]; !ok {
					return nil, fmt.Errorf("graphml: <desc> is missing <%s>", req)
				}
			}
			if timeStart == nil {
				return nil, fmt.Errorf("graphml: <desc> is missing <time>")
			}
			isRoot, err := parseBool("is_root", fields["is_root"])
			if err != nil {
				return nil, err
			}
			fid, err := graph.ParseFrameID(fields["frame_id"])
			if err != nil {
				return nil, fmt.Errorf("graphml: <desc> frame id: %w", err)
			}
			return &graph.Descriptor{
				Version:   fields["version"],
				About:     fields["about"],
				URL:       fields["url"],
				IsRoot:    isRoot,
				FrameID:   fid,
				TimeStart: *timeStart,
				TimeEnd:   *timeEnd,
			}, nil
		}
	}
}

func parseTime(d *xml.Decoder) (uint64, uint64, error) {
	var start, end uint64
	var haveStart, haveEnd bool
	for {
		tok, err := d.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("graphml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name != "start" && name != "end" {
				return 0, 0, &ErrUnexpectedElement{Element: name, Context: "time"}
			}
			s, err := textOf(d, t)
			if err != nil {
				return 0, 0, err
			}
			v, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return 0, 0, &ErrBadValue{Attr: name, Value: s, Cause: err}
			}
			if name == "start" {
				start, haveStart = v, true
			} else {
				end, haveEnd = v, true
			}
		case xml.EndElement:
			if !haveStart {
				return 0, 0, fmt.Errorf("graphml: <time> is missing <start>")
			}
			if !haveEnd {
				return 0, 0, fmt.Errorf("graphml: <time> is missing <end>")
			}
			return start, end, nil
		}
	}
}

// textOf reads the character content of an element through its end tag.
func textOf(d *xml.Decoder, start xml.StartElement) (string, error) {
	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return "", fmt.Errorf("graphml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			return "", &ErrUnexpectedElement{Element: t.Name.Local, Context: start.Name.Local}
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

// parseGraph consumes the <graph> element and assembles the page graph.
func parseGraph(d *xml.Decoder, keys *keyModel, desc graph.Descriptor) (*graph.PageGraph, error) {
	g := graph.NewPageGraph(desc)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("graphml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "node":
				n, err := parseNode(d, t, keys)
				if err != nil {
					return nil, err
				}
				if err := g.AddNode(n); err != nil {
					return nil, err
				}
			case "edge":
				e, err := parseEdge(d, t, keys)
				if err != nil {
					return nil, err
				}
				if err := g.AddEdge(e); err != nil {
					return nil, err
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, fmt.Errorf("graphml: %w", err)
				}
			}
		case xml.EndElement:
			return g, nil
		}
	}
}

func parseNode(d *xml.Decoder, start xml.StartElement, keys *keyModel) (*graph.Node, error) {
	var id graph.NodeID
	haveID := false
	for _, a := range start.Attr {
		if a.Name.Local != "id" {
			return nil, &ErrUnexpectedAttr{Attr: a.Name.Local, Element: "node"}
		}
		parsed, err := graph.ParseNodeID(a.Value)
		if err != nil {
			return nil, fmt.Errorf("graphml: node id: %w", err)
		}
		id, haveID = parsed, true
	}
	if !haveID {
		return nil, &ErrMissingAttr{Attr: "id", Element: "node"}
	}

	attrs, err := collectData(d, "node", keys.node, "node "+id.String())
	if err != nil {
		return nil, err
	}

	typeStr := attrs.takeString("node type")
	if data := attrs.takeOptString("id"); data != nil {
		if err := checkDataID(attrs.item, *data, id.ID); err != nil {
			return nil, err
		}
	}
	tsRaw := attrs.takeOptString("timestamp")
	if attrs.err != nil {
		return nil, attrs.err
	}
	if tsRaw == nil {
		return nil, &ErrMissingData{Attr: "timestamp", Item: attrs.item}
	}

	nt, err := nodeTypeOf(typeStr, attrs)
	if err != nil {
		return nil, err
	}
	if err := attrs.leftover(); err != nil {
		return nil, err
	}

	return &graph.Node{ID: id, Timestamp: parseTimestamp(*tsRaw), Type: nt}, nil
}

func parseEdge(d *xml.Decoder, start xml.StartElement, keys *keyModel) (*graph.Edge, error) {
	var id graph.EdgeID
	var source, target graph.NodeID
	var haveID, haveSource, haveTarget bool
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			parsed, err := graph.ParseEdgeID(a.Value)
			if err != nil {
				return nil, fmt.Errorf("graphml: edge id: %w", err)
			}
			id, haveID = parsed, true
		case "source":
			parsed, err := graph.ParseNodeID(a.Value)
			if err != nil {
				return nil, fmt.Errorf("graphml: edge source: %w", err)
			}
			source, haveSource = parsed, true
		case "target":
			parsed, err := graph.ParseNodeID(a.Value)
			if err != nil {
				return nil, fmt.Errorf("graphml: edge target: %w", err)
			}
			target, haveTarget = parsed, true
		default:
			return nil, &ErrUnexpectedAttr{Attr: a.Name.Local, Element: "edge"}
		}
	}
	if !haveID {
		return nil, &ErrMissingAttr{Attr: "id", Element: "edge"}
	}
	if !haveSource {
		return nil, &ErrMissingAttr{Attr: "source", Element: "edge"}
	}
	if !haveTarget {
		return nil, &ErrMissingAttr{Attr: "target", Element: "edge"}
	}

	attrs, err := collectData(d, "edge", keys.edge, "edge "+id.String())
	if err != nil {
		return nil, err
	}

	typeStr := attrs.takeString("edge type")
	if data := attrs.takeOptString("id"); data != nil {
		if err := checkDataID(attrs.item, *data, id.ID); err != nil {
			return nil, err
		}
	}
	var ts *int64
	if raw := attrs.takeOptString("timestamp"); raw != nil {
		v := parseTimestamp(*raw)
		ts = &v
	}
	if attrs.err != nil {
		return nil, attrs.err
	}

	et, err := edgeTypeOf(typeStr, attrs)
	if err != nil {
		return nil, err
	}
	if err := attrs.leftover(); err != nil {
		return nil, err
	}

	return &graph.Edge{ID: id, Timestamp: ts, Type: et, Source: source, Target: target}, nil
}

// collectData gathers the <data> children of a node or edge element into an
// attrSet keyed by declared key id.
func collectData(d *xml.Decoder, kind string, keys map[string]keyItem, item string) (*attrSet, error) {
	attrs := &attrSet{item: item, kind: kind, keys: keys, data: make(map[string]string)}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("graphml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "data" {
				if err := d.Skip(); err != nil {
					return nil, fmt.Errorf("graphml: %w", err)
				}
				continue
			}
			var key string
			for _, a := range t.Attr {
				if a.Name.Local != "key" {
					return nil, &ErrUnexpectedAttr{Attr: a.Name.Local, Element: "data"}
				}
				key = a.Value
			}
			if key == "" {
				return nil, &ErrMissingAttr{Attr: "key", Element: "data"}
			}
			value, err := textOf(d, t)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(value) == "" {
				value = ""
			}
			attrs.data[key] = value
		case xml.EndElement:
			return attrs, nil
		}
	}
}

func checkDataID(item, data string, want uint64) error {
	n, err := strconv.ParseUint(data, 10, 64)
	if err != nil {
		return &ErrBadValue{Attr: "id", Value: data, Cause: err}
	}
	if n != want {
		return &ErrIDMismatch{Item: item, Data: data}
	}
	return nil
}

// attrSet holds the data attributes of one node or edge. Attributes drain as
// they are taken so that anything left afterwards can be rejected. Take
// methods latch the first failure and return zero values from then on; the
// caller checks err (or leftover, which reports it) once at the end.
type attrSet struct {
	item string
	kind string
	keys map[string]keyItem
	data map[string]string
	err  error
}

func (a *attrSet) lookup(name string) (string, bool) {
	if a.err != nil {
		return "", false
	}
	key, ok := a.keys[name]
	if !ok {
		a.err = &ErrMissingKey{Name: name, For: a.kind}
		return "", false
	}
	v, ok := a.data[key.id]
	if !ok {
		return "", false
	}
	delete(a.data, key.id)
	return v, true
}

func (a *attrSet) takeString(name string) string {
	v, ok := a.lookup(name)
	if !ok && a.err == nil {
		a.err = &ErrMissingData{Attr: name, Item: a.item}
	}
	return v
}

func (a *attrSet) takeOptString(name string) *string {
	v, ok := a.lookup(name)
	if !ok {
		return nil
	}
	return &v
}

func (a *attrSet) takeBool(name string) bool {
	v, ok := a.lookup(name)
	if !ok {
		if a.err == nil {
			a.err = &ErrMissingData{Attr: name, Item: a.item}
		}
		return false
	}
	b, err := parseBool(name, v)
	if err != nil {
		a.err = err
		return false
	}
	return b
}

func (a *attrSet) takeUint(name string) uint64 {
	v, ok := a.lookup(name)
	if !ok {
		if a.err == nil {
			a.err = &ErrMissingData{Attr: name, Item: a.item}
		}
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		a.err = &ErrBadValue{Attr: name, Value: v, Cause: err}
		return 0
	}
	return n
}

func (a *attrSet) takeOptUint(name string) *uint64 {
	v, ok := a.lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		a.err = &ErrBadValue{Attr: name, Value: v, Cause: err}
		return nil
	}
	return &n
}

// leftover reports the latched error, or unconsumed data attributes.
func (a *attrSet) leftover() error {
	if a.err != nil {
		return a.err
	}
	if len(a.data) == 0 {
		return nil
	}
	return &ErrExtraData{Item: a.item, Keys: slices.Sorted(maps.Keys(a.data))}
}

func parseBool(attr, s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, &ErrBadValue{Attr: attr, Value: s}
}

// parseTimestamp tolerates fractional values such as "12345.0", which some
// recordings emit. After trimming a trailing fraction of zeros, anything
// that still fails to parse collapses to 0.
func parseTimestamp(s string) int64 {
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// nodeTypeOf builds the node variant named by typeStr, draining its
// attributes from attrs.
func nodeTypeOf(typeStr string, attrs *attrSet) (graph.NodeType, error) {
	var nt graph.NodeType
	switch typeStr {
	case "extensions":
		nt = graph.Extensions{}
	case "remote frame":
		raw := attrs.takeString("frame id")
		if attrs.err != nil {
			return nil, attrs.err
		}
		fid, err := graph.ParseFrameID(raw)
		if err != nil {
			return nil, fmt.Errorf("graphml: %s frame id: %w", attrs.item, err)
		}
		nt = graph.RemoteFrame{FrameID: fid}
	case "resource":
		nt = graph.Resource{URL: attrs.takeString("url")}
	case "ad filter":
		nt = graph.AdFilter{Rule: attrs.takeString("rule")}
	case "tracker filter":
		nt = graph.TrackerFilter{}
	case "fingerprinting filter":
		nt = graph.FingerprintingFilter{}
	case "web API":
		nt = graph.WebAPI{Method: attrs.takeString("method")}
	case "JS builtin":
		nt = graph.JSBuiltin{Method: attrs.takeString("method")}
	case "HTML element":
		nt = graph.HTMLElement{
			TagName:   attrs.takeString("tag name"),
			IsDeleted: attrs.takeBool("is deleted"),
			DOMNodeID: attrs.takeUint("node id"),
		}
	case "text node":
		nt = graph.TextNode{
			Text:      attrs.takeOptString("text"),
			IsDeleted: attrs.takeBool("is deleted"),
			DOMNodeID: attrs.takeUint("node id"),
		}
	case "DOM root":
		nt = graph.DOMRoot{
			URL:       attrs.takeOptString("url"),
			TagName:   attrs.takeString("tag name"),
			IsDeleted: attrs.takeBool("is deleted"),
			DOMNodeID: attrs.takeUint("node id"),
		}
	case "frame owner":
		nt = graph.FrameOwner{
			TagName:   attrs.takeString("tag name"),
			IsDeleted: attrs.takeBool("is deleted"),
			DOMNodeID: attrs.takeUint("node id"),
		}
	case "storage":
		nt = graph.Storage{}
	case "local storage":
		nt = graph.LocalStorage{}
	case "session storage":
		nt = graph.SessionStorage{}
	case "cookie jar":
		nt = graph.CookieJar{}
	case "script":
		nt = graph.Script{
			URL:        attrs.takeOptString("url"),
			ScriptType: attrs.takeString("script type"),
			ScriptID:   attrs.takeUint("script id"),
			Source:     attrs.takeString("source"),
		}
	case "parser":
		nt = graph.Parser{}
	case "Brave Shields":
		nt = graph.BraveShields{}
	case "shieldsAds shield":
		nt = graph.AdsShield{}
	case "trackers shield":
		nt = graph.TrackersShield{}
	case "javascript shield":
		nt = graph.JavascriptShield{}
	case "fingerprinting shield":
		nt = graph.FingerprintingShield{}
	case "fingerprintingV2 shield":
		nt = graph.FingerprintingV2Shield{}
	case "binding":
		nt = graph.Binding{
			Binding:     attrs.takeString("binding"),
			BindingType: attrs.takeString("binding type"),
		}
	case "binding event":
		nt = graph.BindingEvent{BindingEvent: attrs.takeString("binding event")}
	default:
		return nil, &ErrUnknownType{Kind: "node", Value: typeStr}
	}
	if attrs.err != nil {
		return nil, attrs.err
	}
	return nt, nil
}

// edgeTypeOf builds the edge variant named by typeStr, draining its
// attributes from attrs.
func edgeTypeOf(typeStr string, attrs *attrSet) (graph.EdgeType, error) {
	var et graph.EdgeType
	switch typeStr {
	case "filter":
		et = graph.Filter{}
	case "structure":
		et = graph.Structure{}
	case "cross DOM":
		et = graph.CrossDOM{}
	case "resource block":
		et = graph.ResourceBlock{}
	case "shield":
		et = graph.Shield{}
	case "text change":
		et = graph.TextChange{}
	case "remove node":
		et = graph.RemoveNode{}
	case "delete node":
		et = graph.DeleteNode{}
	case "insert node":
		et = graph.InsertNode{
			Parent: attrs.takeUint("parent"),
			Before: attrs.takeOptUint("before"),
		}
	case "create node":
		et = graph.CreateNode{}
	case "js result":
		et = graph.JSResult{Value: attrs.takeOptString("value")}
	case "js call":
		et = graph.JSCall{
			Args:           attrs.takeOptString("args"),
			ScriptPosition: attrs.takeUint("script position"),
		}
	case "request complete":
		et = graph.RequestComplete{
			ResourceType: attrs.takeString("resource type"),
			Status:       attrs.takeString("status"),
			Value:        attrs.takeOptString("value"),
			ResponseHash: attrs.takeOptString("response hash"),
			RequestID:    attrs.takeUint("request id"),
			Headers:      attrs.takeString("headers"),
			Size:         attrs.takeString("size"),
		}
	case "request error":
		et = graph.RequestError{
			Status:    attrs.takeString("status"),
			RequestID: attrs.takeUint("request id"),
			Value:     attrs.takeOptString("value"),
			Headers:   attrs.takeString("headers"),
			Size:      attrs.takeString("size"),
		}
	case "request start":
		et = graph.RequestStart{
			RequestType: graph.ParseRequestType(attrs.takeString("request type")),
			Status:      attrs.takeString("status"),
			RequestID:   attrs.takeUint("request id"),
		}
	case "request response":
		et = graph.RequestResponse{}
	case "add event listener":
		et = graph.AddEventListener{
			Key:             attrs.takeString("key"),
			EventListenerID: attrs.takeUint("event listener id"),
			ScriptID:        attrs.takeUint("script id"),
		}
	case "remove event listener":
		et = graph.RemoveEventListener{
			Key:             attrs.takeString("key"),
			EventListenerID: attrs.takeUint("event listener id"),
			ScriptID:        attrs.takeUint("script id"),
		}
	case "event listener":
		et = graph.EventListener{
			Key:             attrs.takeString("key"),
			EventListenerID: attrs.takeUint("event listener id"),
		}
	case "storage set":
		et = graph.StorageSet{
			Key:   attrs.takeString("key"),
			Value: attrs.takeOptString("value"),
		}
	case "storage read result":
		et = graph.StorageReadResult{
			Key:   attrs.takeString("key"),
			Value: attrs.takeOptString("value"),
		}
	case "delete storage":
		et = graph.DeleteStorage{Key: attrs.takeString("key")}
	case "read storage call":
		et = graph.ReadStorageCall{Key: attrs.takeString("key")}
	case "clear storage":
		et = graph.ClearStorage{Key: attrs.takeString("key")}
	case "storage bucket":
		et = graph.StorageBucket{}
	case "execute from attribute":
		et = graph.ExecuteFromAttribute{AttrName: attrs.takeString("attr name")}
	case "execute":
		et = graph.Execute{}
	case "set attribute":
		et = graph.SetAttribute{
			Key:     attrs.takeString("key"),
			Value:   attrs.takeOptString("value"),
			IsStyle: attrs.takeBool("is style"),
		}
	case "delete attribute":
		et = graph.DeleteAttribute{
			Key:     attrs.takeString("key"),
			IsStyle: attrs.takeBool("is style"),
		}
	case "binding":
		et = graph.BindingEdge{}
	case "binding event":
		et = graph.BindingEventEdge{ScriptPosition: attrs.takeUint("script position")}
	default:
		return nil, &ErrUnknownType{Kind: "edge", Value: typeStr}
	}
	if attrs.err != nil {
		return nil, attrs.err
	}
	return et, nil
}
