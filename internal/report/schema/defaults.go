package schema

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/facturo/facturo-backend/internal/report/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type defaultsFile struct {
	Fields []domain.FieldDescriptor `yaml:"fields"`
}

// ParseDefaults decodes a YAML field list. Missing paths default to the id and
// orders are assigned in file order.
func ParseDefaults(data []byte) ([]domain.FieldDescriptor, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse field defaults: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Fields))
	for i := range file.Fields {
		fd := &file.Fields[i]
		if fd.ID == "" {
			return nil, fmt.Errorf("field #%d has no id", i+1)
		}
		if _, dup := seen[fd.ID]; dup {
			return nil, fmt.Errorf("duplicate field id %q", fd.ID)
		}
		seen[fd.ID] = struct{}{}

		if fd.Path == "" {
			fd.Path = fd.ID
		}
		if !fd.Category.Valid() {
			fd.Category = domain.CategoryOther
		}
		fd.Order = i + 1
	}
	return file.Fields, nil
}

// Defaults returns the built-in field set for invoice documents.
func Defaults() []domain.FieldDescriptor {
	fields, err := ParseDefaults(defaultsYAML)
	if err != nil {
		panic(err)
	}
	return fields
}
