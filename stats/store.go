package stats

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/pagegraph/dbopen"
)

// Schema is the result schema applied to the statistics database.
const Schema = `
-- One row per processed recording file
CREATE TABLE IF NOT EXISTS page_stats (
    path               TEXT PRIMARY KEY,
    url                TEXT NOT NULL,
    nodes              INTEGER NOT NULL,
    edges              INTEGER NOT NULL,
    dom_nodes_created  INTEGER NOT NULL,
    dom_nodes_retained INTEGER NOT NULL,
    dom_nodes_touched  INTEGER NOT NULL,
    completed_requests INTEGER NOT NULL,
    event_listeners    INTEGER NOT NULL,
    remote_frames      INTEGER NOT NULL,
    collected_at       INTEGER NOT NULL
);

-- Heavily modified elements per recording
CREATE TABLE IF NOT EXISTS hot_elements (
    path          TEXT NOT NULL,
    node_id       TEXT NOT NULL,
    tag_name      TEXT NOT NULL,
    dom_node_id   INTEGER NOT NULL,
    modifications INTEGER NOT NULL,
    PRIMARY KEY (path, node_id)
);
CREATE INDEX IF NOT EXISTS idx_hot_elements_mods ON hot_elements(modifications DESC);

-- Requests a configured rule set would block, per recording
CREATE TABLE IF NOT EXISTS blocked_requests (
    path         TEXT NOT NULL,
    url          TEXT NOT NULL,
    request_type TEXT NOT NULL,
    PRIMARY KEY (path, url, request_type)
);
`

// ApplySchema creates the result tables on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Store persists batch results. Writes retry on SQLITE_BUSY, so concurrent
// workers can share one Store.
type Store struct {
	DB *sql.DB
}

var _ Sink = (*Store)(nil)

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open opens the statistics database at path, creating parent directories
// and tables as needed.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// SavePageStats upserts the counters collected for one recording file.
func (s *Store) SavePageStats(ctx context.Context, path string, st *PageStats) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO page_stats (path, url, nodes, edges, dom_nodes_created,
		dom_nodes_retained, dom_nodes_touched, completed_requests,
		event_listeners, remote_frames, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		url=excluded.url, nodes=excluded.nodes, edges=excluded.edges,
		dom_nodes_created=excluded.dom_nodes_created,
		dom_nodes_retained=excluded.dom_nodes_retained,
		dom_nodes_touched=excluded.dom_nodes_touched,
		completed_requests=excluded.completed_requests,
		event_listeners=excluded.event_listeners,
		remote_frames=excluded.remote_frames,
		collected_at=excluded.collected_at`,
		path, st.URL, st.Nodes, st.Edges, st.DomNodesCreated,
		st.DomNodesRetained, st.DomNodesTouched, st.CompletedRequests,
		st.EventListeners, st.RemoteFrames, time.Now().UnixMilli(),
	)
	return err
}

// SaveHotElements replaces the hot-element rows recorded for one file.
func (s *Store) SaveHotElements(ctx context.Context, path string, elements []HotElement) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM hot_elements WHERE path = ?`, path); err != nil {
			return err
		}
		for _, el := range elements {
			if _, err := tx.Exec(
				`INSERT INTO hot_elements (path, node_id, tag_name, dom_node_id, modifications)
				VALUES (?, ?, ?, ?, ?)`,
				path, el.ID.String(), el.TagName, el.DOMNodeID, len(el.Modifications),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveBlocked replaces the blocked-request rows recorded for one file.
func (s *Store) SaveBlocked(ctx context.Context, path string, report *BlockedReport) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM blocked_requests WHERE path = ?`, path); err != nil {
			return err
		}
		for _, br := range report.Blocked {
			if _, err := tx.Exec(
				`INSERT INTO blocked_requests (path, url, request_type) VALUES (?, ?, ?)`,
				path, br.URL, br.RequestType,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Summary aggregates the counters saved across a run.
type Summary struct {
	Pages             int `json:"pages"`
	TotalNodes        int `json:"total_nodes"`
	TotalEdges        int `json:"total_edges"`
	CompletedRequests int `json:"completed_requests"`
	HotElements       int `json:"hot_elements"`
	BlockedRequests   int `json:"blocked_requests"`
}

// Summary returns aggregate counters over every saved recording.
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(nodes), 0), COALESCE(SUM(edges), 0),
		COALESCE(SUM(completed_requests), 0) FROM page_stats`).
		Scan(&sum.Pages, &sum.TotalNodes, &sum.TotalEdges, &sum.CompletedRequests)
	if err != nil {
		return nil, err
	}
	err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM hot_elements`).Scan(&sum.HotElements)
	if err != nil {
		return nil, err
	}
	err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_requests`).Scan(&sum.BlockedRequests)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
