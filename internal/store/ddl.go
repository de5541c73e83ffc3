package store

import (
	"fmt"
	"strings"
	"time"

	"db-schema-sync/internal/models"
)

// CreateTableSQL renders the CREATE TABLE statement for def.
func CreateTableSQL(d Dialect, def models.EntityDefinition) (string, error) {
	if len(def.Fields) == 0 {
		return "", fmt.Errorf("entity %s has no fields to create", def.Name)
	}

	var lines []string
	var pk []string
	for _, f := range def.Fields {
		line := columnSpec(d, f)
		if f.Unique && !f.PrimaryKey {
			line += " UNIQUE"
		}
		lines = append(lines, line)
		if f.PrimaryKey {
			pk = append(pk, d.Quote(f.Name))
		}
	}

	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}

	for _, f := range def.Fields {
		if f.Reference == nil || f.Reference.TargetField == "" {
			continue
		}
		target := f.Reference.TargetTable
		if target == "" {
			target = f.Reference.TargetEntity
		}
		lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.Quote(f.Name), d.Quote(target), d.Quote(f.Reference.TargetField)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		d.Quote(def.StorageName), strings.Join(lines, ",\n  ")), nil
}

// AddColumnSQL renders the statement adding f to table.
func AddColumnSQL(d Dialect, table string, f models.FieldDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(table), columnSpec(d, f))
}

func columnSpec(d Dialect, f models.FieldDefinition) string {
	parts := []string{d.Quote(f.Name), f.Type}
	if notNull(f) {
		parts = append(parts, "NOT NULL")
	}
	if f.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+literal(d, f.DefaultValue))
	}
	return strings.Join(parts, " ")
}

// notNull reports whether f must be declared NOT NULL. Primary keys always are.
func notNull(f models.FieldDefinition) bool {
	return !f.Nullable || f.PrimaryKey
}

func literal(d Dialect, v any) string {
	switch x := v.(type) {
	case models.RawExpr:
		return string(x)
	case string:
		return quoteString(x)
	case bool:
		return d.BoolLiteral(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x)
	case time.Time:
		return quoteString(x.UTC().Format("2006-01-02 15:04:05"))
	default:
		return quoteString(fmt.Sprint(x))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
