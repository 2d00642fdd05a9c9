package graph

import "fmt"

// BadIDKind discriminates the ways an identifier string can be malformed.
type BadIDKind int

const (
	// MissingPrefix means the input did not start with the expected
	// "n" or "e" marker.
	MissingPrefix BadIDKind = iota
	// InvalidInteger means the numeric part did not parse.
	InvalidInteger
	// BadFrameLength means the frame suffix was not exactly 32 hex
	// characters.
	BadFrameLength
)

func (k BadIDKind) String() string {
	switch k {
	case MissingPrefix:
		return "missing prefix"
	case InvalidInteger:
		return "invalid integer"
	case BadFrameLength:
		return "bad frame id length"
	}
	return "unknown"
}

// ErrBadID is returned when a node, edge, or frame identifier string does
// not match the canonical grammar.
type ErrBadID struct {
	Input string
	Kind  BadIDKind
	Cause error
}

func (e *ErrBadID) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("graph: bad id %q: %s: %v", e.Input, e.Kind, e.Cause)
	}
	return fmt.Sprintf("graph: bad id %q: %s", e.Input, e.Kind)
}

func (e *ErrBadID) Unwrap() error { return e.Cause }

// ErrDanglingEdge is returned when an edge endpoint does not resolve to a
// node in the graph. This indicates a corrupt recording, not a recoverable
// condition.
type ErrDanglingEdge struct {
	Edge EdgeID
	Node NodeID
	End  string // "source" or "target"
}

func (e *ErrDanglingEdge) Error() string {
	return fmt.Sprintf("graph: edge %s %s %s does not resolve to a node", e.Edge, e.End, e.Node)
}

// ErrCardinality is returned when an entity the causal model expects to be
// unique (a remote frame for a given frame id, a top-level parser, a parent
// element for a DOM node id, ...) is missing or duplicated.
type ErrCardinality struct {
	What string
	Want int
	Got  int
}

func (e *ErrCardinality) Error() string {
	return fmt.Sprintf("graph: expected %d %s, found %d", e.Want, e.What, e.Got)
}

// ErrUnimplemented is returned when a query reaches an edge-type or
// node-type combination the causal model does not cover; callers get a loud
// failure instead of a guessed attribution.
type ErrUnimplemented struct {
	What string
}

func (e *ErrUnimplemented) Error() string {
	return fmt.Sprintf("graph: not supported: %s", e.What)
}

// ErrNotFound is returned when a lookup by identifier or request id has no
// match in the graph.
type ErrNotFound struct {
	What string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("graph: not found: %s", e.What)
}

// ErrNoTimestamp is returned when an edge that must carry a timestamp (a
// modification edge, a src-attribute set on a frame owner) has none.
type ErrNoTimestamp struct {
	Edge EdgeID
}

func (e *ErrNoTimestamp) Error() string {
	return fmt.Sprintf("graph: edge %s has no timestamp", e.Edge)
}

// ErrCycle is returned when an attribution or ownership walk revisits a
// node, which finite well-formed recordings never produce.
type ErrCycle struct {
	What string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("graph: cycle detected resolving %s", e.What)
}
