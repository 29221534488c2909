// Package athena implements the warehouse Engine for the aws provider:
// the bridged relation is an external table in the Glue data catalog over
// the S3 landing prefix, and staging/merge run as Athena queries against
// Iceberg tables.
package athena

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/glue"

	"github.com/gschex1112/songflow/internal/warehouse"
	"github.com/gschex1112/songflow/pkg/types"
)

// AthenaAPI is the subset of the Athena client used by the engine.
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, input *athena.StartQueryExecutionInput, opts ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, input *athena.GetQueryExecutionInput, opts ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, input *athena.GetQueryResultsInput, opts ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// GlueAPI is the subset of the Glue client used by the engine.
type GlueAPI interface {
	GetTable(ctx context.Context, input *glue.GetTableInput, opts ...func(*glue.Options)) (*glue.GetTableOutput, error)
	CreateTable(ctx context.Context, input *glue.CreateTableInput, opts ...func(*glue.Options)) (*glue.CreateTableOutput, error)
	UpdateTable(ctx context.Context, input *glue.UpdateTableInput, opts ...func(*glue.Options)) (*glue.UpdateTableOutput, error)
}

const defaultPollInterval = 500 * time.Millisecond

// Compile-time interface satisfaction check.
var _ warehouse.Engine = (*Engine)(nil)

// Engine runs the relational stages against Glue and Athena.
type Engine struct {
	athena       AthenaAPI
	glue         GlueAPI
	database     string
	workgroup    string
	output       string
	landingURI   string // s3://bucket/prefix/ the bridge table points at
	tables       types.WarehouseConfig
	pollInterval time.Duration
	logger       *slog.Logger
	prepared     bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAthenaClient sets a custom Athena client (useful for testing).
func WithAthenaClient(c AthenaAPI) EngineOption {
	return func(e *Engine) { e.athena = c }
}

// WithGlueClient sets a custom Glue client (useful for testing).
func WithGlueClient(c GlueAPI) EngineOption {
	return func(e *Engine) { e.glue = c }
}

// WithPollInterval sets the query status poll interval.
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.pollInterval = d }
}

// New creates an Engine from aws provider settings.
func New(ctx context.Context, awsCfg *types.AWSConfig, tables types.WarehouseConfig, logger *slog.Logger, opts ...EngineOption) (*Engine, error) {
	landingURI := fmt.Sprintf("s3://%s/", awsCfg.LandingBucket)
	if awsCfg.LandingPrefix != "" {
		landingURI = fmt.Sprintf("s3://%s/%s/", awsCfg.LandingBucket, awsCfg.LandingPrefix)
	}
	e := &Engine{
		database:     awsCfg.GlueDatabase,
		workgroup:    awsCfg.AthenaWorkgroup,
		output:       awsCfg.AthenaOutputLocation,
		landingURI:   landingURI,
		tables:       tables,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
	for _, o := range opts {
		o(e)
	}
	if e.athena == nil || e.glue == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsCfg.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		if e.athena == nil {
			e.athena = athena.NewFromConfig(cfg)
		}
		if e.glue == nil {
			e.glue = glue.NewFromConfig(cfg)
		}
	}
	return e, nil
}

// LoadStaging fully refreshes the staging table from the bridged relation.
func (e *Engine) LoadStaging(ctx context.Context) error {
	if err := e.ensureTables(ctx); err != nil {
		return err
	}
	clear := fmt.Sprintf(`DELETE FROM %s`, e.tables.StagingTable)
	if _, err := e.run(ctx, "staging clear", clear); err != nil {
		return err
	}
	load := fmt.Sprintf(`
INSERT INTO %s (song, artist, dateplayed, timeplayed)
SELECT
    song,
    artist,
    date_format(from_iso8601_timestamp(timeplayed), '%%Y-%%m-%%d'),
    date_format(from_iso8601_timestamp(timeplayed), '%%H:%%i:%%s')
FROM %s`, e.tables.StagingTable, e.tables.BridgeTable)
	if _, err := e.run(ctx, "staging load", load); err != nil {
		return err
	}
	return nil
}

// Merge inserts the anti-join of staging against the datamart and returns
// the number of rows inserted.
func (e *Engine) Merge(ctx context.Context) (int64, error) {
	if err := e.ensureTables(ctx); err != nil {
		return 0, err
	}
	before, err := e.count(ctx, e.tables.DatamartTable)
	if err != nil {
		return 0, err
	}
	// DISTINCT: the same play tuple can appear in several un-archived
	// batches; the anti-join alone does not deduplicate within staging.
	merge := fmt.Sprintf(`
INSERT INTO %[1]s (song, artist, dateplayed, timeplayed, loadedat)
SELECT DISTINCT s.song, s.artist, s.dateplayed, s.timeplayed, current_timestamp
FROM %[2]s s
WHERE NOT EXISTS (
    SELECT 1 FROM %[1]s d
    WHERE d.song = s.song
      AND d.artist = s.artist
      AND d.dateplayed = s.dateplayed
      AND d.timeplayed = s.timeplayed
)`, e.tables.DatamartTable, e.tables.StagingTable)
	if _, err := e.run(ctx, "datamart merge", merge); err != nil {
		return 0, err
	}
	after, err := e.count(ctx, e.tables.DatamartTable)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

// Ping verifies Athena is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.run(ctx, "ping", "SELECT 1")
	return err
}

// Close is a no-op; the AWS clients hold no resources worth releasing.
func (e *Engine) Close() error { return nil }

// run starts a query and polls until it reaches a terminal state.
func (e *Engine) run(ctx context.Context, op, query string) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(query),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(e.database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(e.output),
		},
	}
	if e.workgroup != "" {
		input.WorkGroup = aws.String(e.workgroup)
	}

	start, err := e.athena.StartQueryExecution(ctx, input)
	if err != nil {
		return "", &warehouse.QueryError{Operation: op, Err: fmt.Errorf("starting query: %w", err)}
	}
	execID := aws.ToString(start.QueryExecutionId)

	for {
		out, err := e.athena.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(execID),
		})
		if err != nil {
			return "", &warehouse.QueryError{Operation: op, Err: fmt.Errorf("polling query %s: %w", execID, err)}
		}
		state := out.QueryExecution.Status.State
		switch state {
		case athenatypes.QueryExecutionStateSucceeded:
			e.logger.Debug("query succeeded", "operation", op, "execution", execID)
			return execID, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := ""
			if out.QueryExecution.Status.StateChangeReason != nil {
				reason = *out.QueryExecution.Status.StateChangeReason
			}
			return "", &warehouse.QueryError{Operation: op, Err: fmt.Errorf("query %s %s: %s", execID, state, reason)}
		}

		select {
		case <-ctx.Done():
			return "", &warehouse.QueryError{Operation: op, Err: ctx.Err()}
		case <-time.After(e.pollInterval):
		}
	}
}

// count returns SELECT COUNT(*) for a table.
func (e *Engine) count(ctx context.Context, table string) (int64, error) {
	execID, err := e.run(ctx, "count "+table, fmt.Sprintf("SELECT count(*) FROM %s", table))
	if err != nil {
		return 0, err
	}
	out, err := e.athena.GetQueryResults(ctx, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(execID),
	})
	if err != nil {
		return 0, &warehouse.QueryError{Operation: "count " + table, Err: err}
	}
	// Row 0 is the header; row 1 holds the scalar.
	rows := out.ResultSet.Rows
	if len(rows) < 2 || len(rows[1].Data) < 1 || rows[1].Data[0].VarCharValue == nil {
		return 0, &warehouse.QueryError{Operation: "count " + table, Err: fmt.Errorf("malformed result set")}
	}
	n, err := strconv.ParseInt(*rows[1].Data[0].VarCharValue, 10, 64)
	if err != nil {
		return 0, &warehouse.QueryError{Operation: "count " + table, Err: fmt.Errorf("parsing count: %w", err)}
	}
	return n, nil
}
