// Package scan walks a data provider's tables, classifies sensitive
// columns, and produces the per-table results the manifest builder
// consumes.
package scan

import (
	"context"
	"fmt"

	"github.com/unisonhq/unison/internal/log"
	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
)

// Classifier assigns semantic tags to columns. The classification algorithm
// itself is a collaborator; callers inject whatever implementation they
// have.
type Classifier interface {
	// Classify returns a column-name to semantic-tag mapping for the
	// sensitive columns of a table. Columns absent from the map carry no
	// tag.
	Classify(ctx context.Context, table provider.TableMeta) (map[string]string, error)
}

// Location names one catalog.schema to scan.
type Location struct {
	Catalog string
	Schema  string
}

func (l Location) String() string { return l.Catalog + "." + l.Schema }

// LocationResult is the outcome of scanning one location.
type LocationResult struct {
	Catalog string
	Schema  string
	// Err is set when the location itself could not be listed; per-table
	// failures land on the individual ScanTable instead.
	Err    string
	Tables []manifest.ScanTable
}

// TaggedCount returns how many tables in the result carry sensitive
// columns.
func (r LocationResult) TaggedCount() int {
	n := 0
	for _, t := range r.Tables {
		if t.HasPII {
			n++
		}
	}
	return n
}

// Service scans locations through a data provider.
type Service struct {
	data       provider.DataProvider
	classifier Classifier
}

// NewService builds a scanner.
func NewService(data provider.DataProvider, classifier Classifier) *Service {
	return &Service{data: data, classifier: classifier}
}

// ScanLocations scans every location, continuing past per-location and
// per-table failures so one bad schema does not sink the run.
func (s *Service) ScanLocations(ctx context.Context, locations []Location) ([]LocationResult, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("no scan locations given")
	}

	logger := log.WithComponent("scan")
	results := make([]LocationResult, 0, len(locations))
	for _, loc := range locations {
		result := LocationResult{Catalog: loc.Catalog, Schema: loc.Schema}

		tables, err := s.data.ListTables(ctx, loc.Catalog, loc.Schema, provider.ListTablesOptions{
			IncludeColumns: true,
		})
		if err != nil {
			logger.Warn("listing tables failed", "location", loc.String(), "error", err)
			result.Err = err.Error()
			results = append(results, result)
			continue
		}

		for _, meta := range tables {
			result.Tables = append(result.Tables, s.scanTable(ctx, meta))
		}
		logger.Info("scanned location",
			"location", loc.String(),
			"tables", len(result.Tables),
			"tagged", result.TaggedCount())
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) scanTable(ctx context.Context, meta provider.TableMeta) manifest.ScanTable {
	table := manifest.ScanTable{Path: meta.FullName}
	if len(meta.Columns) == 0 {
		table.Skipped = true
		return table
	}

	tags, err := s.classifier.Classify(ctx, meta)
	if err != nil {
		table.Err = err.Error()
		return table
	}

	for _, col := range meta.Columns {
		sc := manifest.ScanColumn{Name: col.Name, Type: col.Type}
		if tag, ok := tags[col.Name]; ok && tag != "" {
			sc.Semantic = tag
			table.HasPII = true
		}
		table.Columns = append(table.Columns, sc)
	}
	return table
}

// Tags flattens a location result into the column tags to write back to the
// data provider, keyed by table name (not full path).
func Tags(result LocationResult) []provider.ColumnTag {
	var tags []provider.ColumnTag
	for _, t := range result.Tables {
		if !t.HasPII {
			continue
		}
		name := tableName(t.Path)
		for _, col := range t.Columns {
			if col.Semantic == "" {
				continue
			}
			tags = append(tags, provider.ColumnTag{
				Table:        name,
				Column:       col.Name,
				SemanticType: col.Semantic,
			})
		}
	}
	return tags
}

func tableName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
