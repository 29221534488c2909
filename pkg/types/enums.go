package types

// Stage identifies how far a pipeline run has progressed. Stages advance
// strictly linearly; a failure leaves the run at the last completed stage.
type Stage string

// Stage values enumerate the pipeline state machine in order.
const (
	StagePending         Stage = "PENDING"
	StageFetched         Stage = "FETCHED"
	StageBatchWritten    Stage = "BATCH_WRITTEN"
	StageRelationDefined Stage = "RELATION_DEFINED"
	StageStagingLoaded   Stage = "STAGING_LOADED"
	StageDatamartMerged  Stage = "DATAMART_MERGED"
	StageArchived        Stage = "ARCHIVED"
	StageFailed          Stage = "FAILED"
)

// AlertLevel represents alert severity.
type AlertLevel string

// AlertLevel values order alerts by severity.
const (
	AlertLevelInfo    AlertLevel = "info"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelError   AlertLevel = "error"
)

// SinkType identifies an alert sink backend.
type SinkType string

// SinkType values enumerate the supported alert sinks.
const (
	SinkConsole SinkType = "console"
	SinkFile    SinkType = "file"
	SinkSNS     SinkType = "sns"
)

// Provider selects the storage and query-engine backend for a deployment.
type Provider string

// Provider values enumerate the supported backends.
const (
	ProviderAWS   Provider = "aws"
	ProviderLocal Provider = "local"
)
