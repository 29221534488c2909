package athena

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/gschex1112/songflow/internal/warehouse"
)

// DefineBridge declares or replaces the external table over the S3 landing
// prefix in the Glue data catalog. Create-or-update against the same
// catalog input makes redefinition idempotent: an unchanged landing prefix
// yields an identical table definition.
func (e *Engine) DefineBridge(ctx context.Context) error {
	input := e.bridgeTableInput()

	_, err := e.glue.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(e.database),
		Name:         aws.String(e.tables.BridgeTable),
	})
	if err != nil {
		var notFound *gluetypes.EntityNotFoundException
		if !errors.As(err, &notFound) {
			return &warehouse.QueryError{Operation: "bridge lookup", Err: err}
		}
		if _, err := e.glue.CreateTable(ctx, &glue.CreateTableInput{
			DatabaseName: aws.String(e.database),
			TableInput:   input,
		}); err != nil {
			return &warehouse.QueryError{Operation: "bridge create", Err: err}
		}
		e.logger.Info("bridge relation created", "table", e.tables.BridgeTable, "location", e.landingURI)
		return nil
	}

	if _, err := e.glue.UpdateTable(ctx, &glue.UpdateTableInput{
		DatabaseName: aws.String(e.database),
		TableInput:   input,
	}); err != nil {
		return &warehouse.QueryError{Operation: "bridge update", Err: err}
	}
	e.logger.Debug("bridge relation redefined", "table", e.tables.BridgeTable, "location", e.landingURI)
	return nil
}

// bridgeTableInput builds the catalog definition of the bridged relation:
// a CSV external table with the fixed landing schema, header row skipped.
func (e *Engine) bridgeTableInput() *gluetypes.TableInput {
	columns := []gluetypes.Column{
		{Name: aws.String("song"), Type: aws.String("string")},
		{Name: aws.String("artist"), Type: aws.String("string")},
		{Name: aws.String("timeplayed"), Type: aws.String("string")},
	}
	return &gluetypes.TableInput{
		Name:      aws.String(e.tables.BridgeTable),
		TableType: aws.String("EXTERNAL_TABLE"),
		Parameters: map[string]string{
			"classification":         "csv",
			"skip.header.line.count": "1",
		},
		StorageDescriptor: &gluetypes.StorageDescriptor{
			Columns:      columns,
			Location:     aws.String(e.landingURI),
			InputFormat:  aws.String("org.apache.hadoop.mapred.TextInputFormat"),
			OutputFormat: aws.String("org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat"),
			SerdeInfo: &gluetypes.SerDeInfo{
				SerializationLibrary: aws.String("org.apache.hadoop.hive.serde2.OpenCSVSerde"),
				Parameters: map[string]string{
					"separatorChar": ",",
					"quoteChar":     `"`,
				},
			},
		},
	}
}

// ensureTables creates the staging and datamart Iceberg tables once per
// engine lifetime.
func (e *Engine) ensureTables(ctx context.Context) error {
	if e.prepared {
		return nil
	}
	staging := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    song string,
    artist string,
    dateplayed string,
    timeplayed string
) TBLPROPERTIES ('table_type' = 'ICEBERG')`, e.tables.StagingTable)
	if _, err := e.run(ctx, "staging ddl", staging); err != nil {
		return err
	}
	datamart := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    song string,
    artist string,
    dateplayed string,
    timeplayed string,
    loadedat timestamp
) TBLPROPERTIES ('table_type' = 'ICEBERG')`, e.tables.DatamartTable)
	if _, err := e.run(ctx, "datamart ddl", datamart); err != nil {
		return err
	}
	e.prepared = true
	return nil
}
