package graph

import (
	"errors"
	"testing"
)

func mustFrameID(t *testing.T, s string) FrameID {
	t.Helper()
	f, err := ParseFrameID(s)
	if err != nil {
		t.Fatalf("parse frame id %q: %v", s, err)
	}
	return f
}

func TestParseNodeID_RoundTrip(t *testing.T) {
	cases := []string{
		"n0",
		"n200",
		"n200:0000000000000000000000000000000F",
		"n99999:0123456789ABCDEF0123456789ABCDEF",
	}
	for _, s := range cases {
		id, err := ParseNodeID(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := id.String(); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
	}
}

func TestParseEdgeID_RoundTrip(t *testing.T) {
	cases := []string{
		"e15",
		"e103810150:0123456789ABCDEF0123456789ABCDEF",
	}
	for _, s := range cases {
		id, err := ParseEdgeID(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := id.String(); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
	}
}

func TestParseNodeID_Errors(t *testing.T) {
	cases := []struct {
		input string
		kind  BadIDKind
	}{
		{"", MissingPrefix},
		{"0n200", MissingPrefix},
		{"e200", MissingPrefix},
		{"n", InvalidInteger},
		{"n:0123456789ABCDEF0123456789ABCDEF", InvalidInteger},
		{"nf8:0123456789ABCDEF0123456789ABCDEF", InvalidInteger},
		{"n 200", InvalidInteger},
		{"n-1", InvalidInteger},
		{"n200:", BadFrameLength},
		{"n200:0123", BadFrameLength},
		{"n200:XYZ3456789ABCDEF0123456789ABCDEF", InvalidInteger},
	}
	for _, tc := range cases {
		_, err := ParseNodeID(tc.input)
		if err == nil {
			t.Fatalf("parse %q: expected error", tc.input)
		}
		var bad *ErrBadID
		if !errors.As(err, &bad) {
			t.Fatalf("parse %q: error %v is not ErrBadID", tc.input, err)
		}
		if bad.Kind != tc.kind {
			t.Fatalf("parse %q: kind %s, want %s", tc.input, bad.Kind, tc.kind)
		}
	}
}

func TestParseEdgeID_BadFrame(t *testing.T) {
	_, err := ParseEdgeID("e103810150:")
	var bad *ErrBadID
	if !errors.As(err, &bad) || bad.Kind != BadFrameLength {
		t.Fatalf("expected bad frame length, got %v", err)
	}
}

func TestParseFrameID(t *testing.T) {
	f := mustFrameID(t, "0123456789ABCDEF0123456789ABCDEF")
	if f.Hi != 0x0123456789ABCDEF || f.Lo != 0x0123456789ABCDEF {
		t.Fatalf("unexpected halves: %+v", f)
	}
	if got := f.String(); got != "0123456789ABCDEF0123456789ABCDEF" {
		t.Fatalf("format: got %q", got)
	}

	// Lowercase hex parses, formatting is canonical uppercase.
	f2 := mustFrameID(t, "0123456789abcdef0123456789abcdef")
	if f2 != f {
		t.Fatal("case should not affect the parsed value")
	}
}

func TestNodeID_Compare(t *testing.T) {
	frameA := mustFrameID(t, "00000000000000000000000000000001")
	frameB := mustFrameID(t, "00000000000000000000000000000002")

	a := NewNodeID(5)
	b := NewNodeID(9)
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 {
		t.Fatal("ids should order by numeric id first")
	}

	framed := NewNodeID(5).WithFrame(frameA)
	if a.Compare(framed) >= 0 {
		t.Fatal("unframed id should sort before its framed twin")
	}
	if framed.Compare(NewNodeID(5).WithFrame(frameB)) >= 0 {
		t.Fatal("framed ids with the same number should order by frame")
	}
	if framed.Compare(NewNodeID(5).WithFrame(frameA)) != 0 {
		t.Fatal("identical framed ids should compare equal")
	}
}

func TestNodeID_WithFrameOverwrites(t *testing.T) {
	frameA := mustFrameID(t, "00000000000000000000000000000001")
	frameB := mustFrameID(t, "00000000000000000000000000000002")

	id := NewNodeID(7).WithFrame(frameA).WithFrame(frameB)
	f, ok := id.Frame()
	if !ok || f != frameB {
		t.Fatalf("frame not overwritten: %v %v", f, ok)
	}
}

func TestSameFrameContext(t *testing.T) {
	frameA := mustFrameID(t, "00000000000000000000000000000001")
	frameB := mustFrameID(t, "00000000000000000000000000000002")

	if !SameFrameContext(NewNodeID(1), NewEdgeID(2)) {
		t.Fatal("two unframed ids share the root context")
	}
	if !SameFrameContext(NewNodeID(1).WithFrame(frameA), NewEdgeID(2).WithFrame(frameA)) {
		t.Fatal("ids in the same frame share a context")
	}
	if SameFrameContext(NewNodeID(1), NewNodeID(1).WithFrame(frameA)) {
		t.Fatal("framed and unframed ids are different contexts")
	}
	if SameFrameContext(NewNodeID(1).WithFrame(frameA), NewNodeID(1).WithFrame(frameB)) {
		t.Fatal("different frames are different contexts")
	}
}

func TestNodeID_TextMarshalling(t *testing.T) {
	id, err := ParseNodeID("n42:0000000000000000000000000000000A")
	if err != nil {
		t.Fatal(err)
	}
	text, err := id.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back NodeID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != id {
		t.Fatalf("round trip mismatch: %s vs %s", back, id)
	}
}
