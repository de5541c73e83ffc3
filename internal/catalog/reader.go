// Package catalog enumerates the entity definitions a synchronization run
// works from.
package catalog

import (
	"context"
	"fmt"

	"db-schema-sync/internal/models"
)

// Reader lists every registered entity with its declared fields. An empty
// registry yields an empty slice, not an error.
type Reader interface {
	ListEntities(ctx context.Context) ([]models.EntityDefinition, error)
}

// Static serves a fixed set of definitions.
type Static []models.EntityDefinition

func (s Static) ListEntities(context.Context) ([]models.EntityDefinition, error) {
	return Normalize(append([]models.EntityDefinition(nil), s...)), nil
}

// Normalize fills in derived metadata: a missing storage name falls back to
// the entity name, and references to entities in the same snapshot learn the
// target's storage name.
func Normalize(defs []models.EntityDefinition) []models.EntityDefinition {
	tables := make(map[string]string, len(defs))
	for i := range defs {
		if defs[i].StorageName == "" {
			defs[i].StorageName = defs[i].Name
		}
		tables[defs[i].Name] = defs[i].StorageName
	}

	for i := range defs {
		fields := make([]models.FieldDefinition, len(defs[i].Fields))
		copy(fields, defs[i].Fields)
		for j, f := range fields {
			if f.Reference == nil {
				continue
			}
			ref := *f.Reference
			if ref.TargetTable == "" {
				ref.TargetTable = tables[ref.TargetEntity]
			}
			fields[j].Reference = &ref
		}
		defs[i].Fields = fields
	}
	return defs
}

// Selection is the subset of a catalog a request asked for.
type Selection struct {
	// Entities are the known requested entities in request order.
	Entities []models.EntityDefinition
	// Requested counts the distinct names in the request, known or not.
	Requested int
	Warnings  []string
}

// Select picks the requested entities out of defs. Unknown names and
// repeated names produce warnings and are skipped; a field list restricts
// the entity to those fields.
func Select(defs []models.EntityDefinition, refs []models.EntityRef) Selection {
	byName := make(map[string]models.EntityDefinition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	var sel Selection
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if seen[ref.Name] {
			sel.Warnings = append(sel.Warnings, fmt.Sprintf("Entity %s requested more than once, ignoring duplicate", ref.Name))
			continue
		}
		seen[ref.Name] = true
		sel.Requested++

		def, ok := byName[ref.Name]
		if !ok {
			sel.Warnings = append(sel.Warnings, fmt.Sprintf("Entity %s not found in catalog", ref.Name))
			continue
		}

		subset, unknown := def.WithFields(ref.Fields)
		for _, name := range unknown {
			sel.Warnings = append(sel.Warnings, fmt.Sprintf("Field %s not found on entity %s, skipping", name, ref.Name))
		}
		if len(ref.Fields) > 0 && len(subset.Fields) == 0 {
			sel.Warnings = append(sel.Warnings, fmt.Sprintf("No known fields selected for entity %s, syncing all fields", ref.Name))
			subset = def
		}
		sel.Entities = append(sel.Entities, subset)
	}
	return sel
}
