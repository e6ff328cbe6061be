package policy

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTables []byte

// Load reads YAML policy tables from path and builds a validated Policy.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes YAML tables, rejecting unknown keys, and validates the result.
func Parse(data []byte) (*Policy, error) {
	var t Tables
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	p, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate policy: %w", err)
	}
	return p, nil
}

// Default returns the built-in production tables.
func Default() (*Policy, error) {
	return Parse(defaultTables)
}

// FromFile loads path when it is set and falls back to Default otherwise.
func FromFile(path string) (*Policy, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}
