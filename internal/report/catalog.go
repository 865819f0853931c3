package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog maps an ecosystem code to descriptive metadata. Lookups are
// advisory: a missing code never fails aggregation, the record's own
// labels are used instead.
type Catalog map[string]CatalogEntry

// CatalogEntry describes one ecosystem code.
type CatalogEntry struct {
	Formation string `yaml:"formacion" json:"formacion"`
	Piso      string `yaml:"piso" json:"piso"`
}

// LoadCatalog reads a YAML catalog file. An empty path returns a nil
// catalog, which disables lookups.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ecosystem catalog: %w", err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse ecosystem catalog: %w", err)
	}
	return cat, nil
}
