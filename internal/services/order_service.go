package services

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"db-schema-sync/internal/models"
)

//go:embed precedence.yaml
var defaultPrecedence []byte

// PrecedenceList is the curated creation order of known entities.
type PrecedenceList []string

type precedenceFile struct {
	Precedence []string `yaml:"precedence"`
}

// DefaultPrecedence returns the built-in list.
func DefaultPrecedence() PrecedenceList {
	list, err := ParsePrecedence(defaultPrecedence)
	if err != nil {
		panic(fmt.Sprintf("embedded precedence list: %v", err))
	}
	return list
}

// LoadPrecedence reads a precedence list from path, or returns the built-in
// list when path is empty.
func LoadPrecedence(path string) (PrecedenceList, error) {
	if path == "" {
		return DefaultPrecedence(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read precedence file: %w", err)
	}
	list, err := ParsePrecedence(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

func ParsePrecedence(data []byte) (PrecedenceList, error) {
	var doc precedenceFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse precedence list: %w", err)
	}

	seen := make(map[string]bool, len(doc.Precedence))
	for _, name := range doc.Precedence {
		if name == "" {
			return nil, fmt.Errorf("precedence list contains an empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("precedence list names %s more than once", name)
		}
		seen[name] = true
	}
	return PrecedenceList(doc.Precedence), nil
}

// Position returns the index of name in the list.
func (p PrecedenceList) Position(name string) (int, bool) {
	i := slices.Index(p, name)
	return i, i >= 0
}

// OrderResolver orders entities by a precedence list. It never infers
// order from references.
type OrderResolver struct {
	precedence PrecedenceList
}

func NewOrderResolver(precedence PrecedenceList) *OrderResolver {
	return &OrderResolver{precedence: slices.Clone(precedence)}
}

func (r *OrderResolver) Precedence() PrecedenceList {
	return slices.Clone(r.precedence)
}

// Resolve returns requested in creation order: listed entities in list
// order, then unlisted ones in their input order. Every entity appears
// exactly once.
func (r *OrderResolver) Resolve(requested []models.EntityDefinition) []models.EntityDefinition {
	lookup := make(map[string]models.EntityDefinition, len(requested))
	var declared []string
	for _, def := range requested {
		if _, dup := lookup[def.Name]; dup {
			continue
		}
		lookup[def.Name] = def
		declared = append(declared, def.Name)
	}

	ordered := make([]models.EntityDefinition, 0, len(lookup))
	for _, name := range r.precedence {
		if def, ok := lookup[name]; ok {
			ordered = append(ordered, def)
			delete(lookup, name)
		}
	}
	for _, name := range declared {
		if def, ok := lookup[name]; ok {
			ordered = append(ordered, def)
			delete(lookup, name)
		}
	}
	return ordered
}

// Reverse returns a reversed copy of order, the safe drop sequence.
func Reverse(order []models.EntityDefinition) []models.EntityDefinition {
	out := slices.Clone(order)
	slices.Reverse(out)
	return out
}

// Check reports references the list does not honour: a target listed after
// the entity that refers to it, or a target missing from the list. Self
// references and references to anything outside defs are ignored.
func (r *OrderResolver) Check(defs []models.EntityDefinition) []models.PrecedenceViolation {
	known := make(map[string]bool, len(defs))
	byTable := make(map[string]string, len(defs))
	for _, def := range defs {
		known[def.Name] = true
		byTable[def.StorageName] = def.Name
	}

	var violations []models.PrecedenceViolation
	for _, def := range defs {
		pos, listed := r.precedence.Position(def.Name)
		for _, f := range def.Fields {
			if f.Reference == nil {
				continue
			}
			target := f.Reference.TargetEntity
			if !known[target] {
				target = byTable[target]
			}
			if target == def.Name || !known[target] {
				continue
			}

			targetPos, targetListed := r.precedence.Position(target)
			switch {
			case !targetListed:
				violations = append(violations, models.PrecedenceViolation{
					Entity:   def.Name,
					Field:    f.Name,
					Target:   target,
					Unlisted: true,
					Message:  fmt.Sprintf("%s.%s references %s, which is not in the precedence list", def.Name, f.Name, target),
				})
			case listed && targetPos > pos:
				violations = append(violations, models.PrecedenceViolation{
					Entity:  def.Name,
					Field:   f.Name,
					Target:  target,
					Message: fmt.Sprintf("%s.%s references %s, which is listed after it", def.Name, f.Name, target),
				})
			}
		}
	}
	return violations
}

func entityNames(defs []models.EntityDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return names
}
