package graphml

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hazyhaar/pagegraph/graph"
)

// LoadFile reads a single recording from disk.
func LoadFile(path string) (*graph.PageGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graphml: %w", err)
	}
	defer f.Close()
	g, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

// LoadFileWithFrames reads a root recording and merges in every child frame
// recording found alongside it, recursively: frames brought in by a merge
// are themselves looked up on the next pass. A remote frame without a
// companion file means no recording was captured for it, which is not an
// error; its subtree simply stays empty.
func LoadFileWithFrames(path string) (*graph.PageGraph, error) {
	g, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)

	tried := make(map[graph.FrameID]bool)
	for {
		merged := false
		for _, fid := range g.AllRemoteFrameIDs() {
			if tried[fid] {
				continue
			}
			tried[fid] = true
			child, err := LoadFile(filepath.Join(dir, CompanionFileName(fid)))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if err := g.MergeFrame(child, fid); err != nil {
				return nil, fmt.Errorf("merging frame %s: %w", fid, err)
			}
			merged = true
		}
		if !merged {
			return g, nil
		}
	}
}

// CompanionFileName returns the conventional file name of the recording
// captured for a child frame.
func CompanionFileName(id graph.FrameID) string {
	return "page_graph_" + id.String() + ".0.graphml"
}
