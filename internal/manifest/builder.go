package manifest

// ScanColumn is one column from a table scan, with the semantic tag the
// classifier attached (empty when the column carries no sensitive data).
type ScanColumn struct {
	Name     string
	Type     string
	Semantic string
}

// ScanTable is the per-table scan outcome the builder consumes.
type ScanTable struct {
	Path    string
	Skipped bool
	Err     string
	HasPII  bool
	Columns []ScanColumn
}

// UnsupportedTable records columns excluded because of structural types.
// When Path's table ended up with no usable columns at all, the whole table
// was dropped from the manifest.
type UnsupportedTable struct {
	Path    string
	Columns []string
}

// Build assembles a manifest from scan results and the destination settings.
//
// Tables with a scan error, marked skipped, or without any detected sensitive
// column are excluded. Columns with structural types (arrays, structs,
// binary) are dropped and reported via the unsupported list; a table whose
// columns were all dropped is excluded the same way, never treated as fatal.
func Build(tables []ScanTable, settings map[string]any) (*Manifest, []UnsupportedTable) {
	m := &Manifest{
		Tables:   make([]TableSpec, 0, len(tables)),
		Settings: settings,
	}
	var unsupported []UnsupportedTable

	for _, table := range tables {
		if table.Err != "" || table.Skipped || !table.HasPII {
			continue
		}
		if table.Path == "" {
			continue
		}

		var fields []FieldSpec
		var dropped []string
		for _, col := range table.Columns {
			if col.Name == "" {
				continue
			}
			if IsStructuralType(col.Type) {
				dropped = append(dropped, col.Name)
				continue
			}

			semantics := []string{}
			if col.Semantic != "" {
				// Generic pii marker rides along with every concrete tag.
				semantics = append(semantics, col.Semantic, "pii")
			}
			fields = append(fields, FieldSpec{
				Name:      col.Name,
				Type:      NormalizeType(col.Type),
				Semantics: semantics,
			})
		}

		if len(dropped) > 0 {
			unsupported = append(unsupported, UnsupportedTable{Path: table.Path, Columns: dropped})
		}
		if len(fields) == 0 {
			continue
		}
		m.Tables = append(m.Tables, TableSpec{Path: table.Path, Fields: fields})
	}

	return m, unsupported
}
