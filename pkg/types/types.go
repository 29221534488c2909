// Package types defines the public domain types for the songflow ingestion pipeline.
package types

import "time"

// PlayRecord is one validated play event extracted from the source page.
// Song is never empty and never the sentinel placeholder; PlayedAt is the
// parsed broadcast timestamp.
type PlayRecord struct {
	Song     string    `json:"song"`
	Artist   string    `json:"artist"`
	PlayedAt time.Time `json:"playedAt"`
}

// Batch is the ordered sequence of PlayRecords produced by one fetch cycle.
// Order is page order; no chronological sort is applied or guaranteed.
type Batch struct {
	ID      string       `json:"id"`
	Records []PlayRecord `json:"records"`
}

// DatamartRow is one deduplicated row of the historical play table.
// DatePlayed and TimePlayed are the UTC calendar date and time-of-day parts
// split from the combined play timestamp.
type DatamartRow struct {
	Song       string `json:"song"`
	Artist     string `json:"artist"`
	DatePlayed string `json:"datePlayed"` // "2006-01-02"
	TimePlayed string `json:"timePlayed"` // "15:04:05"
}

// Key returns the composite natural key under which datamart rows are
// deduplicated.
func (r DatamartRow) Key() string {
	return r.Song + "\x00" + r.Artist + "\x00" + r.DatePlayed + "\x00" + r.TimePlayed
}

// RunResult summarizes one completed pipeline pass.
type RunResult struct {
	RunID          string        `json:"runId"`
	Pipeline       string        `json:"pipeline"`
	Stage          Stage         `json:"stage"`
	RecordsFetched int           `json:"recordsFetched"`
	SentinelRows   int           `json:"sentinelRows"`
	BatchKey       string        `json:"batchKey,omitempty"`
	CatalogSize    int           `json:"catalogSize"`
	RowsMerged     int64         `json:"rowsMerged"`
	ObjectsMoved   int           `json:"objectsMoved"`
	Duration       time.Duration `json:"duration"`
}

// Alert is a notification emitted by the run, routed to configured sinks.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Pipeline  string     `json:"pipeline"`
	RunID     string     `json:"runId,omitempty"`
	Stage     Stage      `json:"stage,omitempty"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}
