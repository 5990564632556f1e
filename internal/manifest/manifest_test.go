package manifest

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNormalizeType(t *testing.T) {
	t.Parallel()

	cases := map[string]CanonicalType{
		"VARCHAR(255)":   TypeString,
		"character":      TypeString,
		"text":           TypeString,
		"string":         TypeString,
		"int4":           TypeLong,
		"BIGINT":         TypeLong,
		"smallint":       TypeLong,
		"decimal(10,2)":  TypeDecimal,
		"numeric":        TypeDecimal,
		"float8":         TypeDouble,
		"DOUBLE":         TypeDouble,
		"real":           TypeDouble,
		"boolean":        TypeBoolean,
		"bool":           TypeBoolean,
		"date":           TypeDate,
		"timestamp_ntz":  TypeTimestamp,
		"TIMESTAMP":      TypeTimestamp,
		"geography":      TypeString, // unknown -> string
		"super":          TypeString,
		"point":          TypeLong, // "int" bucket wins via substring, by ordering
		"datetime":       TypeDate, // "date" bucket checked before timestamp
		"nvarchar(2000)": TypeString,
	}
	for raw, want := range cases {
		if got := NormalizeType(raw); got != want {
			t.Errorf("NormalizeType(%q) = %q, want %q", raw, got, want)
		}
		// Pure function: same input, same output.
		if got := NormalizeType(raw); got != want {
			t.Errorf("NormalizeType(%q) not stable", raw)
		}
	}
}

func TestBuildSkipsErroredSkippedAndCleanTables(t *testing.T) {
	t.Parallel()

	tables := []ScanTable{
		{Path: "dev.public.errored", Err: "timeout", HasPII: true,
			Columns: []ScanColumn{{Name: "email", Type: "varchar", Semantic: "email"}}},
		{Path: "dev.public.skipped", Skipped: true, HasPII: true,
			Columns: []ScanColumn{{Name: "email", Type: "varchar", Semantic: "email"}}},
		{Path: "dev.public.clean", HasPII: false,
			Columns: []ScanColumn{{Name: "id", Type: "bigint"}}},
		{Path: "dev.public.customers", HasPII: true,
			Columns: []ScanColumn{
				{Name: "email", Type: "varchar(255)", Semantic: "email"},
				{Name: "phone", Type: "varchar(32)", Semantic: "phone"},
			}},
	}

	m, unsupported := Build(tables, map[string]any{"output_path": "s3://b/out", "staging_dir": "s3://b/tmp"})
	if len(unsupported) != 0 {
		t.Fatalf("unexpected unsupported tables: %#v", unsupported)
	}
	if len(m.Tables) != 1 {
		t.Fatalf("expected exactly one table, got %d", len(m.Tables))
	}

	table := m.Tables[0]
	if table.Path != "dev.public.customers" || len(table.Fields) != 2 {
		t.Fatalf("unexpected table: %#v", table)
	}
	for _, field := range table.Fields {
		want := []string{field.Semantics[0], "pii"}
		if !reflect.DeepEqual(field.Semantics, want) {
			t.Errorf("field %s semantics = %v, want tag plus pii marker", field.Name, field.Semantics)
		}
	}
}

func TestBuildDropsStructuralColumnsAndEmptyTables(t *testing.T) {
	t.Parallel()

	tables := []ScanTable{
		{Path: "dev.public.blobs", HasPII: true,
			Columns: []ScanColumn{
				{Name: "payload", Type: "array<string>", Semantic: "email"},
				{Name: "raw", Type: "binary"},
			}},
		{Path: "dev.public.mixed", HasPII: true,
			Columns: []ScanColumn{
				{Name: "email", Type: "varchar", Semantic: "email"},
				{Name: "nested", Type: "struct<a:int>"},
			}},
	}

	m, unsupported := Build(tables, map[string]any{"output_path": "o", "staging_dir": "s"})

	if len(m.Tables) != 1 || m.Tables[0].Path != "dev.public.mixed" {
		t.Fatalf("expected only the mixed table to survive: %#v", m.Tables)
	}
	if len(m.Tables[0].Fields) != 1 || m.Tables[0].Fields[0].Name != "email" {
		t.Fatalf("unexpected fields: %#v", m.Tables[0].Fields)
	}

	if len(unsupported) != 2 {
		t.Fatalf("expected two unsupported records, got %#v", unsupported)
	}
	if unsupported[0].Path != "dev.public.blobs" || len(unsupported[0].Columns) != 2 {
		t.Fatalf("unexpected unsupported record: %#v", unsupported[0])
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	t.Parallel()

	tables := []ScanTable{
		{Path: "dev.public.customers", HasPII: true,
			Columns: []ScanColumn{{Name: "email", Type: "varchar", Semantic: "email"}}},
	}
	settings := map[string]any{"output_path": "o", "staging_dir": "s"}

	first, _ := Build(tables, settings)
	second, _ := Build(tables, settings)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical scan input must produce identical manifests")
	}
}

func TestValidateReturnsFirstViolation(t *testing.T) {
	t.Parallel()

	goodSettings := map[string]any{"output_path": "o", "staging_dir": "s"}
	goodField := map[string]any{"field-name": "email", "type": "string", "semantics": []any{"email", "pii"}}

	cases := []struct {
		name    string
		doc     map[string]any
		wantMsg string
	}{
		{"missing tables", map[string]any{"settings": goodSettings}, "missing 'tables' key in manifest"},
		{"missing settings", map[string]any{"tables": []any{}}, "missing 'settings' key in manifest"},
		{"missing staging", map[string]any{"tables": []any{}, "settings": map[string]any{"output_path": "o"}},
			"missing 'staging_dir' in settings"},
		{"tables not list", map[string]any{"tables": "nope", "settings": goodSettings}, "'tables' must be a list"},
		{"table missing fields", map[string]any{
			"tables":   []any{map[string]any{"path": "t"}},
			"settings": goodSettings,
		}, "table 0 (t) missing 'fields' field"},
		{"fields not list", map[string]any{
			"tables":   []any{map[string]any{"path": "t", "fields": 7}},
			"settings": goodSettings,
		}, "table 0 (t) 'fields' must be a list"},
		{"field missing type", map[string]any{
			"tables": []any{map[string]any{"path": "t", "fields": []any{
				map[string]any{"field-name": "email", "semantics": []any{}},
			}}},
			"settings": goodSettings,
		}, "table 0 field 0 (email) missing 'type'"},
		{"field missing semantics", map[string]any{
			"tables": []any{map[string]any{"path": "t", "fields": []any{
				map[string]any{"field-name": "email", "type": "string"},
			}}},
			"settings": goodSettings,
		}, "table 0 field 0 (email) missing 'semantics'"},
		{"semantics not list", map[string]any{
			"tables": []any{map[string]any{"path": "t", "fields": []any{
				map[string]any{"field-name": "email", "type": "string", "semantics": "pii"},
			}}},
			"settings": goodSettings,
		}, "table 0 field 0 (email) 'semantics' must be a list"},
		{"valid", map[string]any{
			"tables":   []any{map[string]any{"path": "t", "fields": []any{goodField}}},
			"settings": goodSettings,
		}, ""},
	}

	for _, tc := range cases {
		valid, msg := Validate(tc.doc)
		if tc.wantMsg == "" {
			if !valid || msg != "" {
				t.Errorf("%s: expected valid, got (%v, %q)", tc.name, valid, msg)
			}
			continue
		}
		if valid || msg != tc.wantMsg {
			t.Errorf("%s: got (%v, %q), want %q", tc.name, valid, msg, tc.wantMsg)
		}
	}
}

func TestValidateManifestAgreesWithWireFormat(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Tables: []TableSpec{{Path: "dev.public.customers", Fields: []FieldSpec{
			{Name: "email", Type: "string", Semantics: []string{"email", "pii"}},
		}}},
		Settings: map[string]any{"output_path": "s3://b/out", "staging_dir": "s3://b/tmp"},
	}
	if valid, msg := ValidateManifest(m); !valid {
		t.Fatalf("expected valid manifest, got %q", msg)
	}

	data, err := m.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	field := doc["tables"].([]any)[0].(map[string]any)["fields"].([]any)[0].(map[string]any)
	if _, ok := field["field-name"]; !ok {
		t.Fatal("wire format must use the 'field-name' key")
	}
	if got, _ := field["type"].(string); got != "string" {
		t.Fatalf("wire format must carry the type as a plain string, got %v", field["type"])
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Tables:   []TableSpec{{Path: "t", Fields: []FieldSpec{{Name: "n", Type: "string", Semantics: []string{}}}}},
		Settings: map[string]any{"output_path": "o", "staging_dir": "s"},
	}
	path := filepath.Join(t.TempDir(), "nested", "manifest.json")
	if err := SaveToFile(m, path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if !reflect.DeepEqual(m.Tables, loaded.Tables) {
		t.Fatalf("round trip mismatch: %#v", loaded.Tables)
	}
}
