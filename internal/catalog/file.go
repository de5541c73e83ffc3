package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"db-schema-sync/internal/models"
)

// FileRegistry reads entity definitions from a YAML document. The file is
// read again on every call so edits show up without a restart.
type FileRegistry struct {
	path   string
	logger *slog.Logger
}

func NewFileRegistry(path string, logger *slog.Logger) *FileRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileRegistry{path: path, logger: logger}
}

func (r *FileRegistry) Path() string {
	return r.path
}

func (r *FileRegistry) ListEntities(ctx context.Context) ([]models.EntityDefinition, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity file: %w", err)
	}

	defs, err := ParseEntities(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}

	r.logger.DebugContext(ctx, "entity file loaded", "path", r.path, "entities", len(defs))
	return defs, nil
}

type entityFile struct {
	Entities []entityDoc `yaml:"entities"`
}

type entityDoc struct {
	Name   string     `yaml:"name"`
	Table  string     `yaml:"table"`
	Fields []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Nullable   *bool  `yaml:"nullable"`
	PrimaryKey bool   `yaml:"primaryKey"`
	Unique     bool   `yaml:"unique"`
	// Default is a scalar literal; DefaultExpr is raw SQL.
	Default     any           `yaml:"default"`
	DefaultExpr string        `yaml:"defaultExpr"`
	References  *referenceDoc `yaml:"references"`
}

type referenceDoc struct {
	Entity string `yaml:"entity"`
	Field  string `yaml:"field"`
}

// ParseEntities decodes an entity document. Unknown keys are rejected so
// typos surface instead of silently changing a definition.
func ParseEntities(data []byte) ([]models.EntityDefinition, error) {
	var doc entityFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	defs := make([]models.EntityDefinition, 0, len(doc.Entities))
	seen := make(map[string]bool, len(doc.Entities))
	for i, e := range doc.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity %d: name is required", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("entity %s: declared more than once", e.Name)
		}
		seen[e.Name] = true

		def := models.EntityDefinition{Name: e.Name, StorageName: e.Table}
		for _, f := range e.Fields {
			field, err := f.definition()
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", e.Name, err)
			}
			def.Fields = append(def.Fields, field)
		}
		defs = append(defs, def)
	}

	return Normalize(defs), nil
}

func (f fieldDoc) definition() (models.FieldDefinition, error) {
	if f.Name == "" {
		return models.FieldDefinition{}, errors.New("field name is required")
	}
	if f.Type == "" {
		return models.FieldDefinition{}, fmt.Errorf("field %s: type is required", f.Name)
	}

	field := models.FieldDefinition{
		Name:       f.Name,
		Type:       f.Type,
		Nullable:   true,
		PrimaryKey: f.PrimaryKey,
		Unique:     f.Unique,
	}
	if f.Nullable != nil {
		field.Nullable = *f.Nullable
	}

	switch {
	case f.Default != nil && f.DefaultExpr != "":
		return field, fmt.Errorf("field %s: default and defaultExpr are mutually exclusive", f.Name)
	case f.DefaultExpr != "":
		field.DefaultValue = models.RawExpr(f.DefaultExpr)
	case f.Default != nil:
		switch f.Default.(type) {
		case string, bool, int, int64, uint64, float64, time.Time:
			field.DefaultValue = f.Default
		default:
			return field, fmt.Errorf("field %s: default must be a scalar, got %T", f.Name, f.Default)
		}
	}

	if f.References != nil {
		if f.References.Entity == "" {
			return field, fmt.Errorf("field %s: references.entity is required", f.Name)
		}
		field.Reference = &models.Reference{
			TargetEntity: f.References.Entity,
			TargetField:  f.References.Field,
		}
	}

	return field, nil
}
