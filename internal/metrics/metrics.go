// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	RunsTotal       = expvar.NewInt("runs_total")
	RunsFailed      = expvar.NewInt("runs_failed")
	RecordsFetched  = expvar.NewInt("records_fetched")
	SentinelDropped = expvar.NewInt("sentinel_dropped")
	BatchesWritten  = expvar.NewInt("batches_written")
	RowsMerged      = expvar.NewInt("rows_merged")
	ObjectsArchived = expvar.NewInt("objects_archived")
	RetriesTotal    = expvar.NewInt("retries_total")
	AlertsFailed    = expvar.NewInt("alerts_failed")
)
