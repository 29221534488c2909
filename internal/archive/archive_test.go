package archive

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gschex1112/songflow/internal/blob"
	"github.com/gschex1112/songflow/internal/testutil"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRun_MovesAllObjects(t *testing.T) {
	landing := testutil.NewMemStore()
	archived := testutil.NewMemStore()
	ctx := context.Background()
	require.NoError(t, landing.Put(ctx, "songlist_1.csv", []byte("a\n")))
	require.NoError(t, landing.Put(ctx, "songlist_2.csv", []byte("b\n")))

	moved, err := New(landing, archived, discard()).Run(ctx, []string{"songlist_1.csv", "songlist_2.csv"})
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Zero(t, landing.Len())

	data, err := archived.Get(ctx, "songlist_2.csv")
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(data))
}

func TestRun_DeleteOnlyAfterCopy(t *testing.T) {
	landing := testutil.NewMemStore()
	archived := testutil.NewMemStore()
	ctx := context.Background()
	require.NoError(t, landing.Put(ctx, "songlist_1.csv", []byte("a\n")))
	archived.FailPut = errors.New("bucket unavailable")

	moved, err := New(landing, archived, discard()).Run(ctx, []string{"songlist_1.csv"})
	var aerr *ArchiveError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "copy", aerr.Op)
	assert.Zero(t, moved)

	// The source survives a failed copy.
	ok, err := landing.Exists(ctx, "songlist_1.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}

// corruptingStore serves different bytes than were written, to force the
// verify step to fail.
type corruptingStore struct {
	blob.Store
}

func (s *corruptingStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return append(data, '!'), nil
}

func TestRun_VerifyFailureKeepsSource(t *testing.T) {
	landing := testutil.NewMemStore()
	ctx := context.Background()
	require.NoError(t, landing.Put(ctx, "songlist_1.csv", []byte("a\n")))

	a := New(landing, &corruptingStore{Store: testutil.NewMemStore()}, discard())
	moved, err := a.Run(ctx, []string{"songlist_1.csv"})
	var aerr *ArchiveError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "verify", aerr.Op)
	assert.Zero(t, moved)

	ok, err := landing.Exists(ctx, "songlist_1.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_AlreadyArchivedIsNoOp(t *testing.T) {
	landing := testutil.NewMemStore()
	archived := testutil.NewMemStore()
	ctx := context.Background()
	// A prior attempt finished the move before failing elsewhere.
	require.NoError(t, archived.Put(ctx, "songlist_1.csv", []byte("a\n")))

	moved, err := New(landing, archived, discard()).Run(ctx, []string{"songlist_1.csv"})
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
}

func TestRun_MissingEverywhereFails(t *testing.T) {
	a := New(testutil.NewMemStore(), testutil.NewMemStore(), discard())

	_, err := a.Run(context.Background(), []string{"songlist_1.csv"})
	var aerr *ArchiveError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "read source", aerr.Op)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestRun_OverwritesStaleArchiveCopy(t *testing.T) {
	landing := testutil.NewMemStore()
	archived := testutil.NewMemStore()
	ctx := context.Background()
	require.NoError(t, landing.Put(ctx, "songlist_1.csv", []byte("fresh\n")))
	require.NoError(t, archived.Put(ctx, "songlist_1.csv", []byte("stale\n")))

	moved, err := New(landing, archived, discard()).Run(ctx, []string{"songlist_1.csv"})
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	data, err := archived.Get(ctx, "songlist_1.csv")
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(data))
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	landing := testutil.NewMemStore()
	archived := testutil.NewMemStore()
	ctx := context.Background()
	require.NoError(t, landing.Put(ctx, "songlist_2.csv", []byte("b\n")))

	moved, err := New(landing, archived, discard()).Run(ctx, []string{"songlist_1.csv", "songlist_2.csv"})
	require.Error(t, err)
	assert.Zero(t, moved)

	// The second object is untouched; a retry picks it up.
	ok, err := landing.Exists(ctx, "songlist_2.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}
