// Package duckdb implements the warehouse Engine for the local provider
// using an embedded DuckDB database. The bridged relation is a view over a
// read_csv glob of the filesystem landing directory.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/gschex1112/songflow/internal/warehouse"
	"github.com/gschex1112/songflow/pkg/types"
)

// Compile-time interface satisfaction check.
var _ warehouse.Engine = (*Engine)(nil)

// Engine runs the relational stages against an embedded DuckDB database.
type Engine struct {
	db         *sql.DB
	landingDir string
	baseName   string
	tables     types.WarehouseConfig
	logger     *slog.Logger
}

// Open creates an Engine over the database at path. An empty path opens an
// in-memory database, which tests use.
func Open(path, landingDir, baseName string, tables types.WarehouseConfig, logger *slog.Logger) (*Engine, error) {
	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb %q: %w", path, err)
	}
	db := sql.OpenDB(connector)

	e := &Engine{
		db:         db,
		landingDir: landingDir,
		baseName:   baseName,
		tables:     tables,
		logger:     logger,
	}
	if err := e.bootstrap(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// bootstrap pins the session to UTC so the timestamp split is stable, and
// creates the staging and datamart tables.
func (e *Engine) bootstrap(ctx context.Context) error {
	stmts := []string{
		`SET TimeZone = 'UTC'`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    Song VARCHAR,
    Artist VARCHAR,
    DatePlayed VARCHAR,
    TimePlayed VARCHAR
)`, e.tables.StagingTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    Song VARCHAR,
    Artist VARCHAR,
    DatePlayed VARCHAR,
    TimePlayed VARCHAR,
    LoadedAt TIMESTAMP DEFAULT current_timestamp
)`, e.tables.DatamartTable),
	}
	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return &warehouse.QueryError{Operation: "bootstrap", Err: err}
		}
	}
	return nil
}

// DefineBridge declares or replaces the view over the landing glob.
// CREATE OR REPLACE is idempotent by construction.
func (e *Engine) DefineBridge(ctx context.Context) error {
	glob := filepath.Join(e.landingDir, e.baseName+"_*.csv")
	stmt := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS
SELECT Song, Artist, TimePlayed
FROM read_csv(%s, header = true,
    columns = {'Song': 'VARCHAR', 'Artist': 'VARCHAR', 'TimePlayed': 'VARCHAR'})`,
		e.tables.BridgeTable, quote(glob))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return &warehouse.QueryError{Operation: "bridge define", Err: err}
	}
	e.logger.Debug("bridge relation defined", "table", e.tables.BridgeTable, "glob", glob)
	return nil
}

// LoadStaging fully refreshes the staging table from the bridged relation.
func (e *Engine) LoadStaging(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, e.tables.StagingTable)); err != nil {
		return &warehouse.QueryError{Operation: "staging clear", Err: err}
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (Song, Artist, DatePlayed, TimePlayed)
SELECT
    Song,
    Artist,
    strftime(CAST(TimePlayed AS TIMESTAMPTZ), '%%Y-%%m-%%d'),
    strftime(CAST(TimePlayed AS TIMESTAMPTZ), '%%H:%%M:%%S')
FROM %s`, e.tables.StagingTable, e.tables.BridgeTable)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return &warehouse.QueryError{Operation: "staging load", Err: err}
	}
	return nil
}

// Merge inserts the anti-join of staging against the datamart and returns
// the number of rows inserted. The projection is DISTINCT: the same play
// tuple can sit in several un-archived batches, and the anti-join alone
// only guards against rows already in the datamart, not against
// duplicates within staging itself.
func (e *Engine) Merge(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf(`INSERT INTO %[1]s (Song, Artist, DatePlayed, TimePlayed)
SELECT DISTINCT s.Song, s.Artist, s.DatePlayed, s.TimePlayed
FROM %[2]s s
WHERE NOT EXISTS (
    SELECT 1 FROM %[1]s d
    WHERE d.Song = s.Song
      AND d.Artist = s.Artist
      AND d.DatePlayed = s.DatePlayed
      AND d.TimePlayed = s.TimePlayed
)`, e.tables.DatamartTable, e.tables.StagingTable)
	res, err := e.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, &warehouse.QueryError{Operation: "datamart merge", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &warehouse.QueryError{Operation: "datamart merge", Err: err}
	}
	return n, nil
}

// Ping verifies the database is usable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return &warehouse.QueryError{Operation: "ping", Err: err}
	}
	return nil
}

// Close closes the database.
func (e *Engine) Close() error { return e.db.Close() }

// DB exposes the underlying handle for inspection in tests.
func (e *Engine) DB() *sql.DB { return e.db }

// quote renders s as a single-quoted SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
