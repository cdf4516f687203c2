package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasOverrides adds site-specific header spellings per entity and field:
//
//	loadshare:
//	  rtNumber: ["RT No.", "RT #"]
//	other-clients:
//	  simNo: ["SIM NUMBER"]
type AliasOverrides map[string]map[string][]string

// ParseAliasOverrides decodes an override document.
func ParseAliasOverrides(data []byte) (AliasOverrides, error) {
	var o AliasOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse alias overrides: %w", err)
	}
	return o, nil
}

// Apply appends the overrides to the registered schemas. Overrides rank
// after the built-in aliases.
func (o AliasOverrides) Apply() error {
	for entity, fields := range o {
		for field, aliases := range fields {
			if err := AddAliases(entity, field, aliases...); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadAliasFile reads and applies an override file. An empty path is a no-op.
func LoadAliasFile(path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read alias file: %w", err)
	}
	o, err := ParseAliasOverrides(data)
	if err != nil {
		return 0, err
	}
	if err := o.Apply(); err != nil {
		return 0, fmt.Errorf("apply alias file %s: %w", path, err)
	}
	n := 0
	for _, fields := range o {
		for _, aliases := range fields {
			n += len(aliases)
		}
	}
	return n, nil
}
