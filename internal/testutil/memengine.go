package testutil

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sync"
	"time"

	"github.com/gschex1112/songflow/internal/blob"
	"github.com/gschex1112/songflow/internal/warehouse"
	"github.com/gschex1112/songflow/pkg/types"
)

// Compile-time interface satisfaction check.
var _ warehouse.Engine = (*MemEngine)(nil)

// MemEngine is an in-memory warehouse.Engine that evaluates the bridged
// relation directly over a blob.Store, giving tests the real relational
// semantics: full-refresh staging and an anti-join merge keyed on
// (Song, Artist, DatePlayed, TimePlayed).
type MemEngine struct {
	mu      sync.Mutex
	landing blob.Store
	prefix  string

	bridged  []string // catalog snapshot from the last DefineBridge
	staging  []types.DatamartRow
	datamart map[string]types.DatamartRow

	FailNext error // returned by the next engine call, then cleared
}

// NewMemEngine creates an engine bridging the given store and key prefix.
func NewMemEngine(landing blob.Store, prefix string) *MemEngine {
	return &MemEngine{
		landing:  landing,
		prefix:   prefix,
		datamart: make(map[string]types.DatamartRow),
	}
}

func (e *MemEngine) takeFailure(op string) error {
	if e.FailNext != nil {
		err := e.FailNext
		e.FailNext = nil
		return &warehouse.QueryError{Operation: op, Err: err}
	}
	return nil
}

// DefineBridge snapshots the current landing catalog.
func (e *MemEngine) DefineBridge(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeFailure("bridge define"); err != nil {
		return err
	}
	keys, err := e.landing.List(ctx, e.prefix)
	if err != nil {
		return &warehouse.QueryError{Operation: "bridge define", Err: err}
	}
	e.bridged = keys
	return nil
}

// LoadStaging clears staging and reprojects every bridged row.
func (e *MemEngine) LoadStaging(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeFailure("staging load"); err != nil {
		return err
	}
	e.staging = nil
	for _, key := range e.bridged {
		data, err := e.landing.Get(ctx, key)
		if err != nil {
			return &warehouse.QueryError{Operation: "staging load", Err: fmt.Errorf("reading %s: %w", key, err)}
		}
		rows, err := parseLandingCSV(data)
		if err != nil {
			return &warehouse.QueryError{Operation: "staging load", Err: fmt.Errorf("parsing %s: %w", key, err)}
		}
		e.staging = append(e.staging, rows...)
	}
	return nil
}

// Merge inserts staging rows whose composite key is absent from the
// datamart and returns the inserted count. The map key collapses duplicate
// tuples within staging, matching the engines' DISTINCT projection.
func (e *MemEngine) Merge(_ context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeFailure("datamart merge"); err != nil {
		return 0, err
	}
	var inserted int64
	for _, row := range e.staging {
		if _, ok := e.datamart[row.Key()]; ok {
			continue
		}
		e.datamart[row.Key()] = row
		inserted++
	}
	return inserted, nil
}

// Ping always succeeds.
func (e *MemEngine) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (e *MemEngine) Close() error { return nil }

// DatamartCount returns the number of datamart rows.
func (e *MemEngine) DatamartCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.datamart)
}

// StagingRows returns a copy of the staging relation.
func (e *MemEngine) StagingRows() []types.DatamartRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.DatamartRow, len(e.staging))
	copy(out, e.staging)
	return out
}

// DatamartRows returns the datamart content in unspecified order.
func (e *MemEngine) DatamartRows() []types.DatamartRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.DatamartRow, 0, len(e.datamart))
	for _, row := range e.datamart {
		out = append(out, row)
	}
	return out
}

// parseLandingCSV reprojects landing rows (Song, Artist, TimePlayed) into
// staging shape, splitting the combined timestamp in UTC.
func parseLandingCSV(data []byte) ([]types.DatamartRow, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("missing header")
	}
	var rows []types.DatamartRow
	for _, rec := range recs[1:] {
		if len(rec) != 3 {
			return nil, fmt.Errorf("expected 3 columns, got %d", len(rec))
		}
		ts, err := time.Parse(time.RFC3339, rec[2])
		if err != nil {
			return nil, err
		}
		rows = append(rows, types.DatamartRow{
			Song:       rec[0],
			Artist:     rec[1],
			DatePlayed: ts.UTC().Format("2006-01-02"),
			TimePlayed: ts.UTC().Format("15:04:05"),
		})
	}
	return rows, nil
}
