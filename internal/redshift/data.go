// Package redshift implements the Redshift variant of the data provider on
// top of the Redshift Data API.
//
// Redshift has no native column tags, so semantic tags live in a private
// unison_metadata.semantic_tags table the provider creates on first use.
package redshift

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice"
	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice/redshiftdataapiserviceiface"

	"github.com/unisonhq/unison/internal/provider"
)

const (
	metadataSchema = "unison_metadata"
	tagsTable      = metadataSchema + ".semantic_tags"
)

// Options configures the provider.
type Options struct {
	Region            string
	AWSProfile        string
	AccessKeyID       string
	SecretAccessKey   string
	ClusterIdentifier string
	WorkgroupName     string
	Database          string
}

// DataProvider implements provider.DataProvider against the Redshift Data
// API (works for both provisioned clusters and serverless workgroups).
type DataProvider struct {
	api  redshiftdataapiserviceiface.RedshiftDataAPIServiceAPI
	opts Options

	pollInterval time.Duration
}

// NewDataProvider builds a provider with an AWS session from the given
// options, following the standard credential chain when no explicit
// credentials are configured.
func NewDataProvider(opts Options) (*DataProvider, error) {
	awsCfg := aws.NewConfig().WithRegion(opts.Region)
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, ""))
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           opts.AWSProfile,
		Config:            *awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &DataProvider{
		api:          redshiftdataapiservice.New(sess),
		opts:         opts,
		pollInterval: 2 * time.Second,
	}, nil
}

// NewDataProviderWithAPI injects a Data API client; used by tests.
func NewDataProviderWithAPI(api redshiftdataapiserviceiface.RedshiftDataAPIServiceAPI, opts Options) *DataProvider {
	return &DataProvider{api: api, opts: opts, pollInterval: time.Millisecond}
}

// Kind returns the variant tag.
func (p *DataProvider) Kind() provider.DataKind { return provider.DataRedshift }

func (p *DataProvider) target() (cluster, workgroup *string) {
	if p.opts.ClusterIdentifier != "" {
		return aws.String(p.opts.ClusterIdentifier), nil
	}
	return nil, aws.String(p.opts.WorkgroupName)
}

// ValidateConnection checks the target is reachable by listing databases.
func (p *DataProvider) ValidateConnection(ctx context.Context) error {
	_, err := p.ListDatabases(ctx)
	return err
}

// ListDatabases lists databases on the cluster or workgroup.
func (p *DataProvider) ListDatabases(ctx context.Context) ([]string, error) {
	cluster, workgroup := p.target()
	out, err := p.api.ListDatabasesWithContext(ctx, &redshiftdataapiservice.ListDatabasesInput{
		ClusterIdentifier: cluster,
		WorkgroupName:     workgroup,
		Database:          aws.String(p.opts.Database),
	})
	if err != nil {
		return nil, &provider.RemoteError{Op: "redshift-data ListDatabases", Err: err}
	}
	return aws.StringValueSlice(out.Databases), nil
}

// ListSchemas lists schemas in a database.
func (p *DataProvider) ListSchemas(ctx context.Context, database string) ([]string, error) {
	cluster, workgroup := p.target()
	out, err := p.api.ListSchemasWithContext(ctx, &redshiftdataapiservice.ListSchemasInput{
		ClusterIdentifier: cluster,
		WorkgroupName:     workgroup,
		Database:          aws.String(p.databaseOr(database)),
	})
	if err != nil {
		return nil, &provider.RemoteError{Op: "redshift-data ListSchemas", Err: err}
	}
	return aws.StringValueSlice(out.Schemas), nil
}

// ListTables lists tables in a schema. Column metadata requires a separate
// DescribeTable per table, so it is fetched only when requested.
func (p *DataProvider) ListTables(ctx context.Context, database, schema string, opts provider.ListTablesOptions) ([]provider.TableMeta, error) {
	cluster, workgroup := p.target()
	db := p.databaseOr(database)

	input := &redshiftdataapiservice.ListTablesInput{
		ClusterIdentifier: cluster,
		WorkgroupName:     workgroup,
		Database:          aws.String(db),
		SchemaPattern:     aws.String(schema),
	}
	if opts.Pattern != "" {
		input.TablePattern = aws.String(opts.Pattern)
	}

	out, err := p.api.ListTablesWithContext(ctx, input)
	if err != nil {
		return nil, &provider.RemoteError{Op: "redshift-data ListTables", Err: err}
	}

	var metas []provider.TableMeta
	for _, t := range out.Tables {
		name := aws.StringValue(t.Name)
		if name == "" || strings.EqualFold(aws.StringValue(t.Type), "SYSTEM TABLE") {
			continue
		}
		meta := provider.TableMeta{
			Name:     name,
			Catalog:  db,
			Schema:   aws.StringValue(t.Schema),
			FullName: fmt.Sprintf("%s.%s.%s", db, aws.StringValue(t.Schema), name),
		}
		if opts.IncludeColumns {
			full, err := p.GetTable(ctx, db, aws.StringValue(t.Schema), name)
			if err != nil {
				return nil, err
			}
			meta.Columns = full.Columns
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// GetTable fetches one table's column metadata.
func (p *DataProvider) GetTable(ctx context.Context, database, schema, table string) (*provider.TableMeta, error) {
	cluster, workgroup := p.target()
	db := p.databaseOr(database)

	out, err := p.api.DescribeTableWithContext(ctx, &redshiftdataapiservice.DescribeTableInput{
		ClusterIdentifier: cluster,
		WorkgroupName:     workgroup,
		Database:          aws.String(db),
		Schema:            aws.String(schema),
		Table:             aws.String(table),
	})
	if err != nil {
		return nil, &provider.RemoteError{Op: "redshift-data DescribeTable", Err: err}
	}

	meta := &provider.TableMeta{
		Name:     table,
		Catalog:  db,
		Schema:   schema,
		FullName: fmt.Sprintf("%s.%s.%s", db, schema, table),
	}
	for _, col := range out.ColumnList {
		meta.Columns = append(meta.Columns, provider.ColumnMeta{
			Name: aws.StringValue(col.Name),
			Type: aws.StringValue(col.TypeName),
		})
	}
	return meta, nil
}

// ExecuteQuery runs a statement and waits for its result set.
func (p *DataProvider) ExecuteQuery(ctx context.Context, query, database string) (*provider.QueryResult, error) {
	id, err := p.executeAndWait(ctx, query, p.databaseOr(database))
	if err != nil {
		return nil, err
	}

	out, err := p.api.GetStatementResultWithContext(ctx, &redshiftdataapiservice.GetStatementResultInput{
		Id: aws.String(id),
	})
	if err != nil {
		// Statements without a result set (DDL/DML) are still a success.
		if strings.Contains(err.Error(), "has no result") {
			return &provider.QueryResult{}, nil
		}
		return nil, &provider.RemoteError{Op: "redshift-data GetStatementResult", Err: err}
	}

	result := &provider.QueryResult{}
	for _, col := range out.ColumnMetadata {
		result.Columns = append(result.Columns, aws.StringValue(col.Name))
	}
	for _, record := range out.Records {
		row := make([]any, 0, len(record))
		for _, field := range record {
			row = append(row, fieldValue(field))
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// TagColumns stores semantic tags in the private metadata table, creating
// the schema and table on first use.
func (p *DataProvider) TagColumns(ctx context.Context, tags []provider.ColumnTag, database, schema string) (*provider.TagResult, error) {
	db := p.databaseOr(database)
	if err := p.ensureMetadataTable(ctx, db); err != nil {
		return nil, err
	}

	result := &provider.TagResult{}
	for _, tag := range tags {
		stmt := fmt.Sprintf(
			`DELETE FROM %s WHERE schema_name = '%s' AND table_name = '%s' AND column_name = '%s';
INSERT INTO %s (schema_name, table_name, column_name, semantic_type, tagged_at)
VALUES ('%s', '%s', '%s', '%s', GETDATE());`,
			tagsTable, schema, tag.Table, tag.Column,
			tagsTable, schema, tag.Table, tag.Column, tag.SemanticType,
		)
		if _, err := p.executeAndWait(ctx, stmt, db); err != nil {
			result.Errors = append(result.Errors, provider.TagError{
				Table:   tag.Table,
				Column:  tag.Column,
				Message: err.Error(),
			})
			continue
		}
		result.Applied++
	}
	result.Success = len(result.Errors) == 0
	return result, nil
}

func (p *DataProvider) ensureMetadataTable(ctx context.Context, database string) error {
	stmts := []string{
		"CREATE SCHEMA IF NOT EXISTS " + metadataSchema,
		`CREATE TABLE IF NOT EXISTS ` + tagsTable + ` (
  schema_name   VARCHAR(256) NOT NULL,
  table_name    VARCHAR(256) NOT NULL,
  column_name   VARCHAR(256) NOT NULL,
  semantic_type VARCHAR(128) NOT NULL,
  tagged_at     TIMESTAMP NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := p.executeAndWait(ctx, stmt, database); err != nil {
			return fmt.Errorf("ensure metadata table: %w", err)
		}
	}
	return nil
}

// executeAndWait submits a statement and polls until it finishes, returning
// the statement id.
func (p *DataProvider) executeAndWait(ctx context.Context, query, database string) (string, error) {
	cluster, workgroup := p.target()

	out, err := p.api.ExecuteStatementWithContext(ctx, &redshiftdataapiservice.ExecuteStatementInput{
		ClusterIdentifier: cluster,
		WorkgroupName:     workgroup,
		Database:          aws.String(database),
		Sql:               aws.String(query),
	})
	if err != nil {
		return "", &provider.RemoteError{Op: "redshift-data ExecuteStatement", Err: err}
	}
	id := aws.StringValue(out.Id)

	for {
		desc, err := p.api.DescribeStatementWithContext(ctx, &redshiftdataapiservice.DescribeStatementInput{
			Id: aws.String(id),
		})
		if err != nil {
			return "", &provider.RemoteError{Op: "redshift-data DescribeStatement", Err: err}
		}

		switch aws.StringValue(desc.Status) {
		case redshiftdataapiservice.StatusStringFinished:
			return id, nil
		case redshiftdataapiservice.StatusStringFailed:
			return "", &provider.BackendError{Op: "execute statement", Reason: aws.StringValue(desc.Error)}
		case redshiftdataapiservice.StatusStringAborted:
			return "", &provider.BackendError{Op: "execute statement", Reason: "statement aborted"}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *DataProvider) databaseOr(database string) string {
	if database != "" {
		return database
	}
	return p.opts.Database
}

func fieldValue(f *redshiftdataapiservice.Field) any {
	switch {
	case f == nil || aws.BoolValue(f.IsNull):
		return nil
	case f.StringValue != nil:
		return aws.StringValue(f.StringValue)
	case f.LongValue != nil:
		return aws.Int64Value(f.LongValue)
	case f.DoubleValue != nil:
		return aws.Float64Value(f.DoubleValue)
	case f.BooleanValue != nil:
		return aws.BoolValue(f.BooleanValue)
	default:
		return nil
	}
}
