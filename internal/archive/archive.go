// Package archive moves consumed landing objects to the archive store.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gschex1112/songflow/internal/blob"
)

// ArchiveError reports a failed copy, verify, or delete for one object.
type ArchiveError struct {
	Key string
	Op  string
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archiving %s: %s: %v", e.Key, e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Archiver copies landing objects to the archive store and removes them
// from landing, copy first. The worst failure mode is an object visible in
// both stores, never an object lost from both; a duplicate in the archive
// is overwritten rather than rejected so retries stay safe.
type Archiver struct {
	landing blob.Store
	archive blob.Store
	logger  *slog.Logger
}

// New creates an Archiver between the two stores.
func New(landing, archive blob.Store, logger *slog.Logger) *Archiver {
	return &Archiver{landing: landing, archive: archive, logger: logger}
}

// Run archives every named object: copy to the archive store under the
// identical name, read the copy back and compare it to the source, then
// delete from landing. The delete is only issued once the copy has been
// verified byte for byte.
func (a *Archiver) Run(ctx context.Context, keys []string) (int, error) {
	moved := 0
	for _, key := range keys {
		if err := a.archiveOne(ctx, key); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (a *Archiver) archiveOne(ctx context.Context, key string) error {
	data, err := a.landing.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		// A previous attempt got as far as the delete. If the archive holds
		// the object the move already happened; retrying is a no-op.
		archived, aerr := a.archive.Exists(ctx, key)
		if aerr != nil {
			return &ArchiveError{Key: key, Op: "check archive", Err: aerr}
		}
		if archived {
			a.logger.Debug("object already archived", "key", key)
			return nil
		}
		return &ArchiveError{Key: key, Op: "read source", Err: err}
	}
	if err != nil {
		return &ArchiveError{Key: key, Op: "read source", Err: err}
	}

	if err := a.archive.Put(ctx, key, data); err != nil {
		return &ArchiveError{Key: key, Op: "copy", Err: err}
	}

	copied, err := a.archive.Get(ctx, key)
	if err != nil {
		return &ArchiveError{Key: key, Op: "verify read", Err: err}
	}
	if !bytes.Equal(data, copied) {
		return &ArchiveError{Key: key, Op: "verify", Err: fmt.Errorf("archived content differs from source (%d vs %d bytes)", len(copied), len(data))}
	}

	if err := a.landing.Delete(ctx, key); err != nil {
		return &ArchiveError{Key: key, Op: "delete", Err: err}
	}

	a.logger.Info("object archived", "key", key, "bytes", len(data))
	return nil
}
