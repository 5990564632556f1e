package databricks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unisonhq/unison/internal/provider"
)

// DataProvider is the Unity Catalog implementation of
// provider.DataProvider. Semantic tags go onto columns natively via
// ALTER TABLE ... SET TAGS.
type DataProvider struct {
	client      *Client
	warehouseID string
}

// NewDataProvider wraps a client and the SQL warehouse used for statements.
func NewDataProvider(client *Client, warehouseID string) *DataProvider {
	return &DataProvider{client: client, warehouseID: warehouseID}
}

// Kind returns the variant tag.
func (p *DataProvider) Kind() provider.DataKind { return provider.DataDatabricks }

// ValidateConnection checks the workspace is reachable with the configured
// token by listing catalogs.
func (p *DataProvider) ValidateConnection(ctx context.Context) error {
	_, err := p.ListDatabases(ctx)
	return err
}

type catalogList struct {
	Catalogs []struct {
		Name string `json:"name"`
	} `json:"catalogs"`
}

// ListDatabases lists Unity Catalog catalogs.
func (p *DataProvider) ListDatabases(ctx context.Context) ([]string, error) {
	var out catalogList
	if err := p.client.doJSON(ctx, http.MethodGet, "/api/2.1/unity-catalog/catalogs", nil, nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Catalogs))
	for _, c := range out.Catalogs {
		names = append(names, c.Name)
	}
	return names, nil
}

type schemaList struct {
	Schemas []struct {
		Name string `json:"name"`
	} `json:"schemas"`
}

// ListSchemas lists schemas in a catalog.
func (p *DataProvider) ListSchemas(ctx context.Context, database string) ([]string, error) {
	q := url.Values{"catalog_name": {database}}
	var out schemaList
	if err := p.client.doJSON(ctx, http.MethodGet, "/api/2.1/unity-catalog/schemas", q, nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Schemas))
	for _, s := range out.Schemas {
		names = append(names, s.Name)
	}
	return names, nil
}

type tableInfo struct {
	Name        string `json:"name"`
	CatalogName string `json:"catalog_name"`
	SchemaName  string `json:"schema_name"`
	FullName    string `json:"full_name"`
	Columns     []struct {
		Name     string `json:"name"`
		TypeText string `json:"type_text"`
	} `json:"columns"`
}

func (t tableInfo) toMeta() provider.TableMeta {
	meta := provider.TableMeta{
		Name:     t.Name,
		Catalog:  t.CatalogName,
		Schema:   t.SchemaName,
		FullName: t.FullName,
	}
	for _, col := range t.Columns {
		meta.Columns = append(meta.Columns, provider.ColumnMeta{Name: col.Name, Type: col.TypeText})
	}
	return meta
}

type tableList struct {
	Tables []tableInfo `json:"tables"`
}

// ListTables lists tables in a schema; column metadata rides along when
// requested.
func (p *DataProvider) ListTables(ctx context.Context, database, schema string, opts provider.ListTablesOptions) ([]provider.TableMeta, error) {
	q := url.Values{
		"catalog_name": {database},
		"schema_name":  {schema},
	}
	if opts.IncludeColumns {
		q.Set("omit_columns", "false")
	}
	var out tableList
	if err := p.client.doJSON(ctx, http.MethodGet, "/api/2.1/unity-catalog/tables", q, nil, &out); err != nil {
		return nil, err
	}

	metas := make([]provider.TableMeta, 0, len(out.Tables))
	for _, t := range out.Tables {
		if opts.Pattern != "" && !strings.Contains(t.Name, opts.Pattern) {
			continue
		}
		metas = append(metas, t.toMeta())
	}
	return metas, nil
}

// GetTable fetches one table's metadata including columns.
func (p *DataProvider) GetTable(ctx context.Context, database, schema, table string) (*provider.TableMeta, error) {
	fullName := fmt.Sprintf("%s.%s.%s", database, schema, table)
	var out tableInfo
	if err := p.client.doJSON(ctx, http.MethodGet, "/api/2.1/unity-catalog/tables/"+url.PathEscape(fullName), nil, nil, &out); err != nil {
		return nil, err
	}
	meta := out.toMeta()
	return &meta, nil
}

type statementRequest struct {
	Statement   string `json:"statement"`
	WarehouseID string `json:"warehouse_id"`
	Catalog     string `json:"catalog,omitempty"`
	WaitTimeout string `json:"wait_timeout"`
}

type statementResponse struct {
	StatementID string `json:"statement_id"`
	Status      struct {
		State string `json:"state"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"status"`
	Manifest struct {
		Schema struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest"`
	Result struct {
		DataArray [][]any `json:"data_array"`
	} `json:"result"`
}

// ExecuteQuery runs a SQL statement on the configured warehouse and waits
// for completion.
func (p *DataProvider) ExecuteQuery(ctx context.Context, query, database string) (*provider.QueryResult, error) {
	if p.warehouseID == "" {
		return nil, &provider.ConfigError{Provider: string(provider.DataDatabricks), Missing: []string{"warehouse_id"}}
	}

	req := statementRequest{
		Statement:   query,
		WarehouseID: p.warehouseID,
		Catalog:     database,
		WaitTimeout: "30s",
	}
	var resp statementResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/api/2.0/sql/statements", nil, req, &resp); err != nil {
		return nil, err
	}

	// Long statements come back PENDING/RUNNING; poll until terminal.
	for resp.Status.State == "PENDING" || resp.Status.State == "RUNNING" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		var polled statementResponse
		path := "/api/2.0/sql/statements/" + resp.StatementID
		if err := p.client.doJSON(ctx, http.MethodGet, path, nil, nil, &polled); err != nil {
			return nil, err
		}
		polled.StatementID = resp.StatementID
		resp = polled
	}

	if resp.Status.State != "SUCCEEDED" {
		reason := resp.Status.Error.Message
		if reason == "" {
			reason = "statement finished in state " + resp.Status.State
		}
		return nil, &provider.BackendError{Op: "execute statement", Reason: reason}
	}

	result := &provider.QueryResult{Rows: resp.Result.DataArray}
	for _, col := range resp.Manifest.Schema.Columns {
		result.Columns = append(result.Columns, col.Name)
	}
	return result, nil
}

// TagColumns applies semantic tags natively with ALTER TABLE ... SET TAGS.
// Individual statement failures are collected per column; the call reports
// success only when every tag applied.
func (p *DataProvider) TagColumns(ctx context.Context, tags []provider.ColumnTag, database, schema string) (*provider.TagResult, error) {
	result := &provider.TagResult{}
	for _, tag := range tags {
		stmt := fmt.Sprintf(
			"ALTER TABLE %s.%s.%s ALTER COLUMN %s SET TAGS ('semantic' = '%s')",
			database, schema, tag.Table, tag.Column, tag.SemanticType,
		)
		if _, err := p.ExecuteQuery(ctx, stmt, database); err != nil {
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
