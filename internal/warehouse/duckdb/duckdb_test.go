package duckdb

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gschex1112/songflow/pkg/types"
)

func testTables() types.WarehouseConfig {
	return types.WarehouseConfig{
		BridgeTable:   "landing_songlist",
		StagingTable:  "staging_songlist",
		DatamartTable: "datamart_songs",
	}
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func openTestEngine(t *testing.T, landingDir string) *Engine {
	t.Helper()
	e, err := Open("", landingDir, "songlist", testTables(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func datamartCount(t *testing.T, e *Engine) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB().QueryRow(`SELECT count(*) FROM datamart_songs`).Scan(&n))
	return n
}

func TestEngine_BridgeStagingMerge(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "songlist_20240101T061000Z.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\nRoam,The B-52's,2024-01-01T06:14:30Z\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	require.NoError(t, e.DefineBridge(ctx))
	require.NoError(t, e.LoadStaging(ctx))

	rows, err := e.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	var song, artist, date, tm string
	err = e.DB().QueryRow(
		`SELECT Song, Artist, DatePlayed, TimePlayed FROM datamart_songs WHERE Song = 'Blue Monday'`,
	).Scan(&song, &artist, &date, &tm)
	require.NoError(t, err)
	assert.Equal(t, "New Order", artist)
	assert.Equal(t, "2024-01-01", date)
	assert.Equal(t, "06:10:00", tm)
}

func TestEngine_MergeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "songlist_20240101T061000Z.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	require.NoError(t, e.DefineBridge(ctx))
	require.NoError(t, e.LoadStaging(ctx))
	rows, err := e.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// Same batch again: staging refreshes, the anti-join inserts nothing.
	require.NoError(t, e.LoadStaging(ctx))
	rows, err = e.Merge(ctx)
	require.NoError(t, err)
	assert.Zero(t, rows)
	assert.Equal(t, int64(1), datamartCount(t, e))
}

func TestEngine_BridgeReadsAllBatches(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "songlist_20240101T061000Z.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\n")
	writeCSV(t, dir, "songlist_20240101T071000Z.csv",
		"Song,Artist,TimePlayed\nRoam,The B-52's,2024-01-01T07:14:30Z\n")
	// Not matched by the glob.
	writeCSV(t, dir, "notes.csv", "a,b,c\n1,2,3\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	require.NoError(t, e.DefineBridge(ctx))
	require.NoError(t, e.LoadStaging(ctx))

	var n int64
	require.NoError(t, e.DB().QueryRow(`SELECT count(*) FROM staging_songlist`).Scan(&n))
	assert.Equal(t, int64(2), n)
}

func TestEngine_BridgeRedefinitionIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "songlist_1.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	bridgeRows := func() []string {
		rows, err := e.DB().Query(`SELECT Song, Artist, TimePlayed FROM landing_songlist ORDER BY TimePlayed`)
		require.NoError(t, err)
		defer rows.Close()
		var out []string
		for rows.Next() {
			var song, artist, tm string
			require.NoError(t, rows.Scan(&song, &artist, &tm))
			out = append(out, song+"|"+artist+"|"+tm)
		}
		require.NoError(t, rows.Err())
		return out
	}

	require.NoError(t, e.DefineBridge(ctx))
	first := bridgeRows()

	// Redefinition over an unchanged catalog yields an identical relation.
	require.NoError(t, e.DefineBridge(ctx))
	assert.Equal(t, first, bridgeRows())
}

func TestEngine_StagingIsFullRefresh(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "songlist_1.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	require.NoError(t, e.DefineBridge(ctx))
	require.NoError(t, e.LoadStaging(ctx))
	require.NoError(t, e.LoadStaging(ctx))

	var n int64
	require.NoError(t, e.DB().QueryRow(`SELECT count(*) FROM staging_songlist`).Scan(&n))
	assert.Equal(t, int64(1), n)
}

func TestEngine_DedupKeyIncludesTime(t *testing.T) {
	dir := t.TempDir()
	// Same song and date, different play times: both rows are distinct plays.
	writeCSV(t, dir, "songlist_1.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\nBlue Monday,New Order,2024-01-01T09:45:00Z\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	require.NoError(t, e.DefineBridge(ctx))
	require.NoError(t, e.LoadStaging(ctx))
	rows, err := e.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
}

func TestEngine_MergeCollapsesTupleAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	// A batch stranded by a failed run and the next run's batch both carry
	// the same play; the datamart must still end up with one row.
	writeCSV(t, dir, "songlist_20240101T061000Z.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\n")
	writeCSV(t, dir, "songlist_20240101T071000Z.csv",
		"Song,Artist,TimePlayed\nBlue Monday,New Order,2024-01-01T06:10:00Z\nRoam,The B-52's,2024-01-01T07:14:30Z\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	require.NoError(t, e.DefineBridge(ctx))
	require.NoError(t, e.LoadStaging(ctx))
	rows, err := e.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	var n int64
	require.NoError(t, e.DB().QueryRow(
		`SELECT count(*) FROM datamart_songs
		 WHERE Song = 'Blue Monday' AND Artist = 'New Order'
		   AND DatePlayed = '2024-01-01' AND TimePlayed = '06:10:00'`,
	).Scan(&n))
	assert.Equal(t, int64(1), n)
}

func TestEngine_TimestampSplitIsUTC(t *testing.T) {
	dir := t.TempDir()
	// Offset timestamp lands on the previous UTC day.
	writeCSV(t, dir, "songlist_1.csv",
		"Song,Artist,TimePlayed\nRoam,The B-52's,2024-01-01T01:30:00+05:00\n")

	e := openTestEngine(t, dir)
	ctx := context.Background()

	require.NoError(t, e.DefineBridge(ctx))
	require.NoError(t, e.LoadStaging(ctx))

	var date, tm string
	require.NoError(t, e.DB().QueryRow(
		`SELECT DatePlayed, TimePlayed FROM staging_songlist`,
	).Scan(&date, &tm))
	assert.Equal(t, "2023-12-31", date)
	assert.Equal(t, "20:30:00", tm)
}

func TestEngine_PingAndClose(t *testing.T) {
	e, err := Open("", t.TempDir(), "songlist", testTables(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.NoError(t, e.Ping(context.Background()))
	assert.NoError(t, e.Close())
}
