package store

import (
	"fmt"
	"strings"

	"db-schema-sync/internal/models"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Dialect captures the SQL differences between the supported stores.
type Dialect interface {
	Name() string
	// DriverName is the database/sql driver registered for this dialect.
	DriverName() string
	Quote(ident string) string
	BoolLiteral(b bool) string
	DropTableSQL(table string) string
	TablesQuery() string
	TableExistsQuery(table string) (string, []any)
	// ColumnsQuery selects name, type, nullability (YES/NO), default and
	// key (PRI/UNI/empty) for every column of table, in ordinal order.
	ColumnsQuery(table string) (string, []any)
	// ForeignKeysQuery selects column, referenced table, referenced column
	// and constraint name for every foreign key of table.
	ForeignKeysQuery(table string) (string, []any)
	ModifyColumnSQL(table string, f models.FieldDefinition) ([]string, error)
	NormalizeType(t string) string
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case DialectMySQL:
		return MySQL{}, nil
	case DialectPostgres, "postgresql", "pgx":
		return Postgres{}, nil
	case DialectSQLite, "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
}

type MySQL struct{}

func (MySQL) Name() string       { return DialectMySQL }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// DropTableSQL keeps the CASCADE keyword; MySQL parses and ignores it.
func (d MySQL) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", d.Quote(table))
}

func (MySQL) TablesQuery() string {
	return `SELECT TABLE_NAME
	          FROM information_schema.TABLES
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_TYPE = 'BASE TABLE'
	          ORDER BY TABLE_NAME`
}

func (MySQL) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*)
	          FROM information_schema.TABLES
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?`, []any{table}
}

func (MySQL) ColumnsQuery(table string) (string, []any) {
	return `SELECT
	            COLUMN_NAME,
	            COLUMN_TYPE,
	            IS_NULLABLE,
	            COLUMN_DEFAULT,
	            COLUMN_KEY
	          FROM information_schema.COLUMNS
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          ORDER BY ORDINAL_POSITION`, []any{table}
}

func (MySQL) ForeignKeysQuery(table string) (string, []any) {
	return `SELECT
	            kcu.COLUMN_NAME,
	            kcu.REFERENCED_TABLE_NAME,
	            kcu.REFERENCED_COLUMN_NAME,
	            kcu.CONSTRAINT_NAME
	          FROM information_schema.KEY_COLUMN_USAGE kcu
	          WHERE kcu.TABLE_SCHEMA = DATABASE()
	          AND kcu.TABLE_NAME = ?
	          AND kcu.REFERENCED_TABLE_NAME IS NOT NULL`, []any{table}
}

func (d MySQL) ModifyColumnSQL(table string, f models.FieldDefinition) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", d.Quote(table), columnSpec(d, f))}, nil
}

var mysqlTypeAliases = map[string]string{
	"integer":           "int",
	"bool":              "tinyint(1)",
	"boolean":           "tinyint(1)",
	"dec":               "decimal",
	"numeric":           "decimal",
	"character varying": "varchar",
	"character":         "char",
}

var mysqlIntTypes = map[string]bool{
	"tinyint": true, "smallint": true, "mediumint": true, "int": true, "bigint": true,
}

func (MySQL) NormalizeType(t string) string {
	base, params, rest := splitType(t)
	if alias, ok := mysqlTypeAliases[base]; ok {
		base, params = applyAlias(alias, params)
	}
	// Integer display widths are cosmetic, except the tinyint(1) boolean idiom.
	if mysqlIntTypes[base] && params != "" && !(base == "tinyint" && params == "(1)") {
		params = ""
	}
	return joinType(base, params, rest)
}

type Postgres struct{}

func (Postgres) Name() string       { return DialectPostgres }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (Postgres) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d Postgres) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", d.Quote(table))
}

func (Postgres) TablesQuery() string {
	return `SELECT table_name
	          FROM information_schema.tables
	          WHERE table_schema = current_schema()
	          AND table_type = 'BASE TABLE'
	          ORDER BY table_name`
}

func (Postgres) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*)
	          FROM information_schema.tables
	          WHERE table_schema = current_schema()
	          AND table_name = $1`, []any{table}
}

func (Postgres) ColumnsQuery(table string) (string, []any) {
	return `SELECT
	            c.column_name,
	            format_type(a.atttypid, a.atttypmod),
	            c.is_nullable,
	            c.column_default,
	            COALESCE((
	              SELECT CASE WHEN tc.constraint_type = 'PRIMARY KEY' THEN 'PRI' ELSE 'UNI' END
	              FROM information_schema.table_constraints tc
	              JOIN information_schema.key_column_usage kcu
	                ON tc.constraint_name = kcu.constraint_name
	                AND tc.table_schema = kcu.table_schema
	              WHERE tc.table_schema = c.table_schema
	              AND tc.table_name = c.table_name
	              AND kcu.column_name = c.column_name
	              AND (
	                tc.constraint_type = 'PRIMARY KEY'
	                OR (tc.constraint_type = 'UNIQUE' AND (
	                  SELECT COUNT(*)
	                  FROM information_schema.key_column_usage k2
	                  WHERE k2.constraint_name = tc.constraint_name
	                  AND k2.table_schema = tc.table_schema
	                  AND k2.table_name = tc.table_name
	                ) = 1)
	              )
	              ORDER BY tc.constraint_type
	              LIMIT 1
	            ), '')
	          FROM information_schema.columns c
	          JOIN pg_attribute a
	            ON a.attrelid = format('%I.%I', c.table_schema, c.table_name)::regclass
	            AND a.attname = c.column_name
	          WHERE c.table_schema = current_schema()
	          AND c.table_name = $1
	          ORDER BY c.ordinal_position`, []any{table}
}

func (Postgres) ForeignKeysQuery(table string) (string, []any) {
	return `SELECT
	            kcu.column_name,
	            ccu.table_name,
	            ccu.column_name,
	            tc.constraint_name
	          FROM information_schema.table_constraints tc
	          JOIN information_schema.key_column_usage kcu
	            ON tc.constraint_name = kcu.constraint_name
	            AND tc.table_schema = kcu.table_schema
	          JOIN information_schema.constraint_column_usage ccu
	            ON ccu.constraint_name = tc.constraint_name
	            AND ccu.table_schema = tc.table_schema
	          WHERE tc.constraint_type = 'FOREIGN KEY'
	          AND tc.table_schema = current_schema()
	          AND tc.table_name = $1`, []any{table}
}

func (d Postgres) ModifyColumnSQL(table string, f models.FieldDefinition) ([]string, error) {
	prefix := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", d.Quote(table), d.Quote(f.Name))
	stmts := []string{prefix + " TYPE " + f.Type}
	if notNull(f) {
		stmts = append(stmts, prefix+" SET NOT NULL")
	} else {
		stmts = append(stmts, prefix+" DROP NOT NULL")
	}
	if f.DefaultValue != nil {
		stmts = append(stmts, prefix+" SET DEFAULT "+literal(d, f.DefaultValue))
	}
	return stmts, nil
}

var postgresTypeAliases = map[string]string{
	"varchar":     "character varying",
	"char":        "character",
	"int":         "integer",
	"int4":        "integer",
	"serial":      "integer",
	"int8":        "bigint",
	"bigserial":   "bigint",
	"int2":        "smallint",
	"smallserial": "smallint",
	"bool":        "boolean",
	"float8":      "double precision",
	"float4":      "real",
	"decimal":     "numeric",
	"timestamptz": "timestamp with time zone",
	"timestamp":   "timestamp without time zone",
	"timetz":      "time with time zone",
	"time":        "time without time zone",
}

func (Postgres) NormalizeType(t string) string {
	base, params, rest := splitType(t)
	if alias, ok := postgresTypeAliases[base]; ok {
		base, params = applyAlias(alias, params)
	}
	return joinType(base, params, rest)
}

type SQLite struct{}

func (SQLite) Name() string       { return DialectSQLite }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (SQLite) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// DropTableSQL omits CASCADE, which SQLite does not parse.
func (d SQLite) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Quote(table))
}

func (SQLite) TablesQuery() string {
	return `SELECT name FROM sqlite_master
	          WHERE type = 'table'
	          AND name NOT LIKE 'sqlite_%'
	          ORDER BY name`
}

func (SQLite) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master
	          WHERE type = 'table'
	          AND name = ?`, []any{table}
}

func (SQLite) ColumnsQuery(table string) (string, []any) {
	return `SELECT
	            p.name,
	            p.type,
	            CASE WHEN p."notnull" = 1 OR p.pk > 0 THEN 'NO' ELSE 'YES' END,
	            p.dflt_value,
	            CASE
	              WHEN p.pk > 0 THEN 'PRI'
	              WHEN EXISTS (
	                SELECT 1 FROM pragma_index_list(?) il
	                JOIN pragma_index_info(il.name) ii
	                WHERE il."unique" = 1 AND il.origin = 'u' AND ii.name = p.name
	                AND (SELECT COUNT(*) FROM pragma_index_info(il.name)) = 1
	              ) THEN 'UNI'
	              ELSE ''
	            END
	          FROM pragma_table_info(?) p
	          ORDER BY p.cid`, []any{table, table}
}

func (SQLite) ForeignKeysQuery(table string) (string, []any) {
	return `SELECT "from", "table", "to", 'fk_' || id
	          FROM pragma_foreign_key_list(?)`, []any{table}
}

// ModifyColumnSQL always fails: SQLite can add columns but not change them.
func (SQLite) ModifyColumnSQL(table string, f models.FieldDefinition) ([]string, error) {
	return nil, fmt.Errorf("sqlite cannot modify column %s.%s in place", table, f.Name)
}

func (SQLite) NormalizeType(t string) string {
	return joinType(splitType(t))
}

// splitType lowercases t and splits "numeric(10, 2) unsigned" into
// "numeric", "(10,2)" and "unsigned".
func splitType(t string) (base, params, rest string) {
	t = strings.ToLower(strings.Join(strings.Fields(t), " "))
	open := strings.IndexByte(t, '(')
	end := strings.IndexByte(t, ')')
	if open < 0 || end < open {
		return t, "", ""
	}
	base = strings.TrimSpace(t[:open])
	params = strings.ReplaceAll(t[open:end+1], " ", "")
	rest = strings.TrimSpace(t[end+1:])
	return base, params, rest
}

// applyAlias replaces base with alias. An alias carrying its own parameters
// only applies them when the original type had none.
func applyAlias(alias, params string) (string, string) {
	aliasBase, aliasParams, _ := splitType(alias)
	if params == "" {
		params = aliasParams
	}
	return aliasBase, params
}

func joinType(base, params, rest string) string {
	out := base + params
	if rest != "" {
		out += " " + rest
	}
	return out
}
