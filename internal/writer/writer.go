// Package writer serializes a fetch cycle's batch and lands it as a new
// immutable CSV object in the landing store.
package writer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/gschex1112/songflow/internal/blob"
	"github.com/gschex1112/songflow/pkg/types"
)

// Header is the fixed column order of every landing object. The bridged
// relation's schema depends on it; changing it is a migration.
var Header = []string{"Song", "Artist", "TimePlayed"}

// batchIDLayout renders UTC time at second resolution in a form that sorts
// lexicographically in batch-id order.
const batchIDLayout = "20060102T150405Z"

// UploadError reports a failure to land a batch object.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ErrCollision is the cause of an UploadError when the batch id already
// exists in the landing store. Two batches in the same one-second window
// are a fault, not something to paper over with an overwrite.
var ErrCollision = fmt.Errorf("batch id already exists")

// Writer lands batches in the landing store.
type Writer struct {
	store    blob.Store
	baseName string
	logger   *slog.Logger
	now      func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock sets the clock used to derive batch ids (useful for testing).
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// New creates a Writer that names objects "<baseName>_<batchid>.csv".
func New(store blob.Store, baseName string, logger *slog.Logger, opts ...WriterOption) *Writer {
	w := &Writer{store: store, baseName: baseName, logger: logger, now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

// BatchID derives the sortable batch id from t.
func BatchID(t time.Time) string {
	return t.UTC().Format(batchIDLayout)
}

// ObjectKey returns the landing object name for a batch id.
func (w *Writer) ObjectKey(batchID string) string {
	return fmt.Sprintf("%s_%s.csv", w.baseName, batchID)
}

// WriteBatch serializes the records and uploads them as one brand-new
// landing object, returning the batch and its object key. The store is
// never asked to update an existing object: an id collision fails the run.
func (w *Writer) WriteBatch(ctx context.Context, recs []types.PlayRecord) (types.Batch, string, error) {
	batch := types.Batch{ID: BatchID(w.now()), Records: recs}
	key := w.ObjectKey(batch.ID)

	exists, err := w.store.Exists(ctx, key)
	if err != nil {
		return types.Batch{}, "", &UploadError{Key: key, Err: err}
	}
	if exists {
		return types.Batch{}, "", &UploadError{Key: key, Err: ErrCollision}
	}

	data, err := Marshal(recs)
	if err != nil {
		return types.Batch{}, "", &UploadError{Key: key, Err: err}
	}
	if err := w.store.Put(ctx, key, data); err != nil {
		return types.Batch{}, "", &UploadError{Key: key, Err: err}
	}

	w.logger.Info("batch landed", "key", key, "records", len(recs))
	return batch, key, nil
}

// Marshal renders the records as CSV with the fixed header.
func Marshal(recs []types.PlayRecord) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, r := range recs {
		row := []string{r.Song, r.Artist, r.PlayedAt.UTC().Format(time.RFC3339)}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}
