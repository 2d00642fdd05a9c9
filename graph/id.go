// Package graph holds an in-memory page graph recording and answers causal
// queries over it: which actions happened downstream of a given action, which
// document root a node or edge belongs to, which resources match a
// content-blocking rule.
//
// A graph is built once (by package graphml or by hand in tests), optionally
// has remote-frame recordings merged in, and is then queried read-only.
package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameID is the 128-bit token the browser assigns to one remote frame
// recording. Canonical text form is exactly 32 uppercase hex characters.
type FrameID struct {
	Hi, Lo uint64
}

// ParseFrameID parses the 32-hex-character form. Case is accepted on input,
// output is always uppercase.
func ParseFrameID(s string) (FrameID, error) {
	if len(s) != 32 {
		return FrameID{}, &ErrBadID{Input: s, Kind: BadFrameLength}
	}
	hi, err := strconv.ParseUint(s[:16], 16, 64)
	if err != nil {
		return FrameID{}, &ErrBadID{Input: s, Kind: InvalidInteger, Cause: err}
	}
	lo, err := strconv.ParseUint(s[16:], 16, 64)
	if err != nil {
		return FrameID{}, &ErrBadID{Input: s, Kind: InvalidInteger, Cause: err}
	}
	return FrameID{Hi: hi, Lo: lo}, nil
}

func (f FrameID) String() string {
	return fmt.Sprintf("%016X%016X", f.Hi, f.Lo)
}

// Compare orders frame ids numerically, high word first.
func (f FrameID) Compare(o FrameID) int {
	switch {
	case f.Hi < o.Hi:
		return -1
	case f.Hi > o.Hi:
		return 1
	case f.Lo < o.Lo:
		return -1
	case f.Lo > o.Lo:
		return 1
	}
	return 0
}

func (f FrameID) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FrameID) UnmarshalText(text []byte) error {
	parsed, err := ParseFrameID(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// NodeID identifies a node: a local integer plus, after a frame merge, the
// frame the node came from. Two ids from different frames never collide even
// when their integers do.
type NodeID struct {
	ID      uint64
	FrameID FrameID
	Framed  bool
}

// EdgeID identifies an edge, with the same shape as NodeID.
type EdgeID struct {
	ID      uint64
	FrameID FrameID
	Framed  bool
}

// NewNodeID returns an unframed node id.
func NewNodeID(id uint64) NodeID { return NodeID{ID: id} }

// NewEdgeID returns an unframed edge id.
func NewEdgeID(id uint64) EdgeID { return EdgeID{ID: id} }

// ParseNodeID parses "n<id>" or "n<id>:<32-hex>".
func ParseNodeID(s string) (NodeID, error) {
	id, frame, framed, err := parseItemID(s, 'n')
	if err != nil {
		return NodeID{}, err
	}
	return NodeID{ID: id, FrameID: frame, Framed: framed}, nil
}

// ParseEdgeID parses "e<id>" or "e<id>:<32-hex>".
func ParseEdgeID(s string) (EdgeID, error) {
	id, frame, framed, err := parseItemID(s, 'e')
	if err != nil {
		return EdgeID{}, err
	}
	return EdgeID{ID: id, FrameID: frame, Framed: framed}, nil
}

func parseItemID(s string, prefix byte) (uint64, FrameID, bool, error) {
	rest, ok := strings.CutPrefix(s, string(prefix))
	if !ok {
		return 0, FrameID{}, false, &ErrBadID{Input: s, Kind: MissingPrefix}
	}
	idPart, framePart, framed := strings.Cut(rest, ":")
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, FrameID{}, false, &ErrBadID{Input: s, Kind: InvalidInteger, Cause: err}
	}
	if !framed {
		return id, FrameID{}, false, nil
	}
	frame, err := ParseFrameID(framePart)
	if err != nil {
		return 0, FrameID{}, false, err
	}
	return id, frame, true, nil
}

func (n NodeID) String() string { return formatItemID('n', n.ID, n.FrameID, n.Framed) }
func (e EdgeID) String() string { return formatItemID('e', e.ID, e.FrameID, e.Framed) }

func formatItemID(prefix byte, id uint64, frame FrameID, framed bool) string {
	if !framed {
		return string(prefix) + strconv.FormatUint(id, 10)
	}
	return fmt.Sprintf("%c%d:%s", prefix, id, frame)
}

// WithFrame returns a copy of the id qualified with the given frame. Used by
// frame merge to namespace a child graph's ids.
func (n NodeID) WithFrame(f FrameID) NodeID {
	return NodeID{ID: n.ID, FrameID: f, Framed: true}
}

// WithFrame returns a copy of the id qualified with the given frame.
func (e EdgeID) WithFrame(f FrameID) EdgeID {
	return EdgeID{ID: e.ID, FrameID: f, Framed: true}
}

// Frame reports the frame component, if any.
func (n NodeID) Frame() (FrameID, bool) { return n.FrameID, n.Framed }

// Frame reports the frame component, if any.
func (e EdgeID) Frame() (FrameID, bool) { return e.FrameID, e.Framed }

// Compare orders ids lexicographically on (integer, frame), with unframed
// ordering before any framed id.
func (n NodeID) Compare(o NodeID) int {
	return compareItemID(n.ID, n.FrameID, n.Framed, o.ID, o.FrameID, o.Framed)
}

// Compare orders ids lexicographically on (integer, frame), with unframed
// ordering before any framed id.
func (e EdgeID) Compare(o EdgeID) int {
	return compareItemID(e.ID, e.FrameID, e.Framed, o.ID, o.FrameID, o.Framed)
}

func compareItemID(aID uint64, aFrame FrameID, aFramed bool, bID uint64, bFrame FrameID, bFramed bool) int {
	switch {
	case aID < bID:
		return -1
	case aID > bID:
		return 1
	}
	switch {
	case !aFramed && !bFramed:
		return 0
	case !aFramed:
		return -1
	case !bFramed:
		return 1
	}
	return aFrame.Compare(bFrame)
}

func (n NodeID) MarshalText() ([]byte, error) { return []byte(n.String()), nil }
func (e EdgeID) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (n *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

func (e *EdgeID) UnmarshalText(text []byte) error {
	parsed, err := ParseEdgeID(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// FrameQualified is satisfied by NodeID and EdgeID. Attribution compares
// frame contexts across node and edge ids interchangeably.
type FrameQualified interface {
	Frame() (FrameID, bool)
}

// SameFrameContext reports whether two identifiers belong to the same frame
// context: both unframed, or framed with equal frame ids.
func SameFrameContext(a, b FrameQualified) bool {
	af, aok := a.Frame()
	bf, bok := b.Frame()
	if aok != bok {
		return false
	}
	return !aok || af == bf
}
