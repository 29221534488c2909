// Package records assembles validated PlayRecords from the aligned sequences
// the fetcher extracts.
package records

import (
	"fmt"
	"time"

	"github.com/gschex1112/songflow/internal/scrape"
	"github.com/gschex1112/songflow/pkg/types"
)

// ValidationError reports a record that could not be assembled: an
// unparseable timestamp or an empty title.
type ValidationError struct {
	Index int
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: invalid %s %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Build zips the aligned triples into PlayRecords, parses every timestamp,
// rejects empty titles, and drops sentinel placeholder rows. Output order is
// page order.
//
// Every timestamp is parsed before sentinel rows are filtered, so a sentinel
// row with a malformed timestamp fails the whole batch. The station has
// always emitted a valid timestamp on request slots and it is not clear
// whether one without it would indicate deeper drift, so the strict ordering
// is kept.
func Build(t scrape.Triples, sentinel string) ([]types.PlayRecord, error) {
	parsed := make([]types.PlayRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		ts, err := time.Parse(time.RFC3339, t.Times[i])
		if err != nil {
			return nil, &ValidationError{Index: i, Field: "timestamp", Value: t.Times[i], Err: err}
		}
		if t.Titles[i] == "" {
			return nil, &ValidationError{Index: i, Field: "title", Err: fmt.Errorf("empty title")}
		}
		parsed = append(parsed, types.PlayRecord{
			Song:     t.Titles[i],
			Artist:   t.Artists[i],
			PlayedAt: ts,
		})
	}

	out := make([]types.PlayRecord, 0, len(parsed))
	for _, r := range parsed {
		if r.Song == sentinel {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
