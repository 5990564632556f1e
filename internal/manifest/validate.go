package manifest

import (
	"encoding/json"
	"fmt"
)

// requiredSettings are the settings sub-keys every manifest must carry: the
// destination for job output plus the staging location for intermediate
// artifacts. Backend-specific connection blocks vary and are not validated
// here.
var requiredSettings = []string{"output_path", "staging_dir"}

// Validate checks the structural invariants of a decoded manifest document.
// It never panics for any well-formed JSON document and returns the first
// violation found, checking top-down.
func Validate(doc map[string]any) (bool, string) {
	rawTables, ok := doc["tables"]
	if !ok {
		return false, "missing 'tables' key in manifest"
	}
	rawSettings, ok := doc["settings"]
	if !ok {
		return false, "missing 'settings' key in manifest"
	}

	settings, ok := rawSettings.(map[string]any)
	if !ok {
		return false, "'settings' must be an object"
	}
	for _, key := range requiredSettings {
		if _, ok := settings[key]; !ok {
			return false, fmt.Sprintf("missing '%s' in settings", key)
		}
	}

	tables, ok := rawTables.([]any)
	if !ok {
		return false, "'tables' must be a list"
	}

	for i, rawTable := range tables {
		table, ok := rawTable.(map[string]any)
		if !ok {
			return false, fmt.Sprintf("table %d must be an object", i)
		}
		path, _ := table["path"].(string)
		if _, ok := table["path"]; !ok {
			return false, fmt.Sprintf("table %d missing 'path' field", i)
		}
		if path == "" {
			path = "unknown"
		}

		rawFields, ok := table["fields"]
		if !ok {
			return false, fmt.Sprintf("table %d (%s) missing 'fields' field", i, path)
		}
		fields, ok := rawFields.([]any)
		if !ok {
			return false, fmt.Sprintf("table %d (%s) 'fields' must be a list", i, path)
		}

		for j, rawField := range fields {
			field, ok := rawField.(map[string]any)
			if !ok {
				return false, fmt.Sprintf("table %d field %d must be an object", i, j)
			}
			name, _ := field["field-name"].(string)
			if _, ok := field["field-name"]; !ok {
				return false, fmt.Sprintf("table %d field %d missing 'field-name'", i, j)
			}
			if name == "" {
				name = "unknown"
			}
			if _, ok := field["type"]; !ok {
				return false, fmt.Sprintf("table %d field %d (%s) missing 'type'", i, j, name)
			}
			if _, ok := field["semantics"]; !ok {
				return false, fmt.Sprintf("table %d field %d (%s) missing 'semantics'", i, j, name)
			}
			if _, ok := field["semantics"].([]any); !ok {
				return false, fmt.Sprintf("table %d field %d (%s) 'semantics' must be a list", i, j, name)
			}
		}
	}

	return true, ""
}

// ValidateManifest runs Validate against a typed manifest by round-tripping
// it through its JSON form, so the typed and decoded paths agree.
func ValidateManifest(m *Manifest) (bool, string) {
	if m == nil {
		return false, "missing 'tables' key in manifest"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Sprintf("manifest not serializable: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Sprintf("manifest not decodable: %v", err)
	}
	return Validate(doc)
}
