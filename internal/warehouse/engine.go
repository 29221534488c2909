// Package warehouse defines the query-engine seam the pipeline's relational
// stages run through. The aws provider implements it with a Glue catalog
// table and Athena queries; the local provider with an embedded DuckDB
// database over the landing directory.
package warehouse

import (
	"context"
	"fmt"
)

// Engine executes the three relational operations of a run against a
// concrete warehouse backend. All three act on the full current landing
// catalog, never an incremental delta; that property is what makes a rerun
// after a mid-pipeline failure self-healing.
type Engine interface {
	// DefineBridge declares or replaces the virtual relation whose rows are
	// the union of all landing objects matching the batch-name pattern.
	// Redefinition with an unchanged catalog yields an identical relation.
	DefineBridge(ctx context.Context) error

	// LoadStaging clears the staging relation entirely, then loads it by
	// reprojecting every bridged row into (Song, Artist, DatePlayed,
	// TimePlayed), splitting the combined timestamp in UTC.
	LoadStaging(ctx context.Context) error

	// Merge inserts into the datamart only the staging rows whose composite
	// key (Song, Artist, DatePlayed, TimePlayed) is absent, and returns the
	// number of rows inserted. Merging unchanged staging twice inserts zero.
	Merge(ctx context.Context) (int64, error)

	// Ping verifies the engine is reachable without mutating anything.
	Ping(ctx context.Context) error

	// Close releases engine resources.
	Close() error
}

// QueryError reports a failed relation-definition, staging-load, or merge
// operation.
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Operation, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
