// Package manifest builds and validates the declarative job manifest consumed
// by the remote identity-resolution job.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CanonicalType is the closed set of field types the remote job understands.
type CanonicalType string

const (
	TypeString    CanonicalType = "string"
	TypeLong      CanonicalType = "long"
	TypeDecimal   CanonicalType = "decimal"
	TypeDouble    CanonicalType = "double"
	TypeBoolean   CanonicalType = "boolean"
	TypeDate      CanonicalType = "date"
	TypeTimestamp CanonicalType = "timestamp"
)

// FieldSpec describes one column selected for processing.
type FieldSpec struct {
	Name      string        `json:"field-name"`
	Type      CanonicalType `json:"type"`
	Semantics []string      `json:"semantics"`
}

// TableSpec describes one table selected for processing.
type TableSpec struct {
	Path   string      `json:"path"`
	Fields []FieldSpec `json:"fields"`
}

// Manifest is the full job description: which tables/fields to process and
// the settings the remote compute backend needs to execute.
type Manifest struct {
	Tables   []TableSpec    `json:"tables"`
	Settings map[string]any `json:"settings"`
}

// JSON serializes the manifest in the wire format.
func (m *Manifest) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// SaveToFile writes the manifest JSON to a local path.
func SaveToFile(m *Manifest, path string) error {
	data, err := m.JSON()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create manifest directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadFromFile reads a manifest from a local JSON file.
func LoadFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
