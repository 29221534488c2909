package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gschex1112/songflow/internal/archive"
	"github.com/gschex1112/songflow/internal/notify"
	"github.com/gschex1112/songflow/internal/runlock"
	"github.com/gschex1112/songflow/internal/scrape"
	"github.com/gschex1112/songflow/internal/testutil"
	"github.com/gschex1112/songflow/internal/writer"
	"github.com/gschex1112/songflow/pkg/types"
)

type stubFetcher struct {
	triples scrape.Triples
	err     error
	calls   int
}

func (f *stubFetcher) Fetch(_ context.Context) (scrape.Triples, error) {
	f.calls++
	if f.err != nil {
		return scrape.Triples{}, f.err
	}
	return f.triples, nil
}

// tickingClock hands out strictly increasing times so consecutive runs get
// distinct batch ids.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type harness struct {
	runner   *Runner
	fetcher  *stubFetcher
	landing  *testutil.MemStore
	archived *testutil.MemStore
	engine   *testutil.MemEngine
	lock     *testutil.MemLock
	sink     *testutil.RecordingSink
}

func pageTriples() scrape.Triples {
	return scrape.Triples{
		Times:   []string{"2024-01-01T06:10:00Z", "2024-01-01T06:12:00Z", "2024-01-01T06:14:30Z"},
		Titles:  []string{"Blue Monday", "UPICKSTART", "Roam"},
		Artists: []string{"New Order", "Station Imaging", "The B-52's"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	landing := testutil.NewMemStore()
	archived := testutil.NewMemStore()
	engine := testutil.NewMemEngine(landing, "songlist_")
	lock := &testutil.MemLock{}
	sink := &testutil.RecordingSink{}
	fetcher := &stubFetcher{triples: pageTriples()}
	clock := &tickingClock{t: time.Date(2024, 1, 1, 6, 15, 0, 0, time.UTC)}

	return &harness{
		runner: &Runner{
			Pipeline: "songflow",
			Sentinel: "UPICKSTART",
			BaseName: "songlist",
			Fetcher:  fetcher,
			Writer:   writer.New(landing, "songlist", logger, writer.WithClock(clock.Now)),
			Engine:   engine,
			Landing:  landing,
			Archiver: archive.New(landing, archived, logger),
			Locker:   lock,
			Notifier: notify.NewDispatcherFromSinks(sink),
			Policy:   testutil.TestPolicy(),
			Logger:   logger,
		},
		fetcher:  fetcher,
		landing:  landing,
		archived: archived,
		engine:   engine,
		lock:     lock,
		sink:     sink,
	}
}

func TestRun_FullPass(t *testing.T) {
	h := newHarness(t)

	result, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.StageArchived, result.Stage)
	assert.Equal(t, 2, result.RecordsFetched)
	assert.Equal(t, 1, result.SentinelRows)
	assert.Equal(t, 1, result.CatalogSize)
	assert.Equal(t, int64(2), result.RowsMerged)
	assert.Equal(t, 1, result.ObjectsMoved)
	assert.NotEmpty(t, result.RunID)

	// The landing store is drained into the archive.
	assert.Zero(t, h.landing.Len())
	assert.Equal(t, 1, h.archived.Len())
	assert.Equal(t, 2, h.engine.DatamartCount())
	assert.False(t, h.lock.Held())
}

func TestRun_RerunMergesNothingNew(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.runner.Run(ctx)
	require.NoError(t, err)

	// The station page still shows the same plays.
	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.StageArchived, result.Stage)
	assert.Zero(t, result.RowsMerged)
	assert.Equal(t, 2, h.engine.DatamartCount())
	assert.Equal(t, 2, h.archived.Len())
}

func TestRun_FailureLeavesLandingIntact(t *testing.T) {
	h := newHarness(t)
	h.engine.FailNext = errors.New("warehouse down")

	result, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after BATCH_WRITTEN")
	assert.Equal(t, types.StageFailed, result.Stage)

	// The batch stays in landing for the next run to consume.
	assert.Equal(t, 1, h.landing.Len())
	assert.Zero(t, h.archived.Len())
	assert.Zero(t, h.engine.DatamartCount())
	assert.False(t, h.lock.Held())
}

func TestRun_NextRunConsumesStrandedBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.engine.FailNext = errors.New("warehouse down")
	_, err := h.runner.Run(ctx)
	require.Error(t, err)
	require.Equal(t, 1, h.landing.Len())

	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	// Stranded batch plus this run's batch, deduplicated by the merge.
	assert.Equal(t, 2, result.CatalogSize)
	assert.Equal(t, int64(2), result.RowsMerged)
	assert.Equal(t, 2, result.ObjectsMoved)
	assert.Zero(t, h.landing.Len())
	assert.Equal(t, 2, h.engine.DatamartCount())
}

func TestRun_LockContention(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ok, err := h.lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := h.runner.Run(ctx)
	require.ErrorIs(t, err, runlock.ErrHeld)
	assert.Equal(t, types.StageFailed, result.Stage)
	assert.Zero(t, h.fetcher.calls)
}

// collidingWriter always reports a batch-id collision, as a writer under a
// frozen clock would against a pre-existing landing object.
type collidingWriter struct {
	calls int
}

func (w *collidingWriter) WriteBatch(_ context.Context, _ []types.PlayRecord) (types.Batch, string, error) {
	w.calls++
	return types.Batch{}, "", &writer.UploadError{Key: "songlist_20240101T061500Z.csv", Err: writer.ErrCollision}
}

func TestRun_CollisionIsFatalNotRetried(t *testing.T) {
	h := newHarness(t)
	cw := &collidingWriter{}
	h.runner.Writer = cw
	h.runner.Policy.MaxAttempts = 3

	result, err := h.runner.Run(context.Background())
	require.ErrorIs(t, err, writer.ErrCollision)
	assert.Contains(t, err.Error(), "failed after FETCHED")
	assert.Equal(t, types.StageFailed, result.Stage)
	assert.Equal(t, 1, cw.calls)
	assert.False(t, h.lock.Held())
}

func TestRun_ParseErrorIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &scrape.ParseError{URL: "https://radio.example.com/", Times: 3, Titles: 2, Artists: 3}
	h.runner.Policy.MaxAttempts = 5

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, h.fetcher.calls)
}

func TestRun_FailureDispatchesErrorAlert(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &scrape.FetchError{URL: "https://radio.example.com/", Status: 503}

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)

	var errorAlerts []types.Alert
	for _, a := range h.sink.Alerts() {
		if a.Level == types.AlertLevelError {
			errorAlerts = append(errorAlerts, a)
		}
	}
	require.Len(t, errorAlerts, 1)
	assert.Equal(t, "songflow", errorAlerts[0].Pipeline)
	assert.Contains(t, errorAlerts[0].Message, "status 503")
}

func TestRun_StatusLinesInOrder(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	var messages []string
	for _, a := range h.sink.Alerts() {
		if a.Level == types.AlertLevelInfo {
			messages = append(messages, a.Message)
		}
	}
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0], "Pulling the last songs played")
	assert.Contains(t, messages[len(messages)-1], "Job complete")
}
