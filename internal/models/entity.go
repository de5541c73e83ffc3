package models

// RawExpr is a default value written into DDL verbatim, e.g. CURRENT_TIMESTAMP.
type RawExpr string

// Reference describes a foreign-key-like link to another entity. It is
// descriptive only and never drives ordering.
type Reference struct {
	TargetEntity string `json:"targetEntity"`
	TargetField  string `json:"targetField"`
	// TargetTable is the storage name of TargetEntity when the catalog knows it.
	TargetTable string `json:"targetTable,omitempty"`
}

type FieldDefinition struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primaryKey"`
	Unique     bool   `json:"unique"`
	// DefaultValue is nil, a scalar literal, or a RawExpr.
	DefaultValue any        `json:"defaultValue"`
	Reference    *Reference `json:"references"`
}

type EntityDefinition struct {
	Name        string            `json:"name"`
	StorageName string            `json:"tableName"`
	Fields      []FieldDefinition `json:"fields"`
}

// Field returns the field with the given name.
func (d EntityDefinition) Field(name string) (FieldDefinition, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

func (d EntityDefinition) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// WithFields returns a copy of d restricted to the named fields, kept in
// declaration order, along with any names d does not declare. An empty
// selection keeps every field.
func (d EntityDefinition) WithFields(names []string) (EntityDefinition, []string) {
	out := EntityDefinition{Name: d.Name, StorageName: d.StorageName}
	if len(names) == 0 {
		out.Fields = append([]FieldDefinition(nil), d.Fields...)
		return out, nil
	}

	wanted := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		if _, ok := d.Field(n); !ok {
			unknown = append(unknown, n)
			continue
		}
		wanted[n] = true
	}

	for _, f := range d.Fields {
		if wanted[f.Name] {
			out.Fields = append(out.Fields, f)
		}
	}
	return out, unknown
}
