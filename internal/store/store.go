package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"db-schema-sync/internal/models"
)

const defaultTimeout = 30 * time.Second

// TxBeginner opens a transaction scoped to one structural step.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Applier brings one entity's physical structure in line with its
// definition according to mode.
type Applier interface {
	Apply(ctx context.Context, def models.EntityDefinition, mode models.Mode) (ApplyResult, error)
}

type Action string

const (
	ActionCreated   Action = "created"
	ActionAltered   Action = "altered"
	ActionUnchanged Action = "unchanged"
	// ActionSkipped means an existing table was left alone without inspection.
	ActionSkipped Action = "skipped"
)

type ApplyResult struct {
	Action     Action
	Statements []string
	// Drift lists differences found but deliberately not applied.
	Drift []string
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Store)

// WithTimeout bounds every statement the store issues.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(db *sql.DB, d Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: d,
		timeout: defaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) DB() *sql.DB            { return s.db }
func (s *Store) Dialect() Dialect       { return s.dialect }
func (s *Store) Timeout() time.Duration { return s.timeout }

func (s *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, opts)
}

func (s *Store) Tables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.dialect.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query, args := s.dialect.TableExistsQuery(table)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}

	return count > 0, nil
}

func (s *Store) Columns(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query, args := s.dialect.ColumnsQuery(table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get table schema: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var col models.ColumnInfo
		err := rows.Scan(
			&col.ColumnName,
			&col.ColumnType,
			&col.IsNullable,
			&col.ColumnDefault,
			&col.ColumnKey,
		)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (s *Store) ForeignKeys(ctx context.Context, table string) ([]models.ForeignKey, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query, args := s.dialect.ForeignKeysQuery(table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []models.ForeignKey
	for rows.Next() {
		fk := models.ForeignKey{TableName: table}
		err := rows.Scan(
			&fk.ColumnName,
			&fk.ReferencedTableName,
			&fk.ReferencedColumnName,
			&fk.ConstraintName,
		)
		if err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}

	return fks, rows.Err()
}

// Apply creates def's table when it is missing. For an existing table,
// ModeCreateOnly leaves it alone, ModeDefault reports drift without applying
// it and ModeAlter adds missing columns and modifies differing ones.
// Columns are never dropped.
func (s *Store) Apply(ctx context.Context, def models.EntityDefinition, mode models.Mode) (ApplyResult, error) {
	var res ApplyResult

	exists, err := s.TableExists(ctx, def.StorageName)
	if err != nil {
		return res, err
	}

	if !exists {
		stmt, err := CreateTableSQL(s.dialect, def)
		if err != nil {
			return res, err
		}
		res.Statements = append(res.Statements, stmt)
		if err := s.exec(ctx, stmt); err != nil {
			return res, err
		}
		res.Action = ActionCreated
		return res, nil
	}

	if mode == models.ModeCreateOnly {
		res.Action = ActionSkipped
		return res, nil
	}

	changes, err := s.Diff(ctx, def)
	if err != nil {
		return res, err
	}

	if mode != models.ModeAlter || len(changes) == 0 {
		for _, c := range changes {
			res.Drift = append(res.Drift, c.String())
		}
		res.Action = ActionUnchanged
		return res, nil
	}

	s.logger.Debug("applying schema changes", "table", def.StorageName, "changes", len(changes))

	for _, c := range changes {
		stmts, err := c.Statements(s.dialect, def.StorageName)
		if err != nil {
			return res, err
		}
		for _, stmt := range stmts {
			res.Statements = append(res.Statements, stmt)
			if err := s.exec(ctx, stmt); err != nil {
				return res, err
			}
		}
	}

	res.Action = ActionAltered
	return res, nil
}

type ChangeKind string

const (
	ChangeAddColumn    ChangeKind = "add"
	ChangeModifyColumn ChangeKind = "modify"
)

// Change is one column-level difference between a definition and the store.
type Change struct {
	Kind    ChangeKind
	Field   models.FieldDefinition
	Current *models.ColumnInfo
}

func (c Change) String() string {
	if c.Kind == ChangeAddColumn {
		return fmt.Sprintf("add column %s %s", c.Field.Name, c.Field.Type)
	}
	want := "YES"
	if notNull(c.Field) {
		want = "NO"
	}
	return fmt.Sprintf("modify column %s: type %s -> %s, nullable %s -> %s",
		c.Field.Name, c.Current.ColumnType, c.Field.Type, c.Current.IsNullable, want)
}

func (c Change) Statements(d Dialect, table string) ([]string, error) {
	if c.Kind == ChangeAddColumn {
		return []string{AddColumnSQL(d, table, c.Field)}, nil
	}
	return d.ModifyColumnSQL(table, c.Field)
}

// Diff compares def against the live columns of its table.
func (s *Store) Diff(ctx context.Context, def models.EntityDefinition) ([]Change, error) {
	columns, err := s.Columns(ctx, def.StorageName)
	if err != nil {
		return nil, err
	}

	current := make(map[string]models.ColumnInfo, len(columns))
	for _, col := range columns {
		current[col.ColumnName] = col
	}

	var changes []Change
	for _, f := range def.Fields {
		col, exists := current[f.Name]
		if !exists {
			changes = append(changes, Change{Kind: ChangeAddColumn, Field: f})
			continue
		}
		if s.columnDiffers(f, col) {
			changes = append(changes, Change{Kind: ChangeModifyColumn, Field: f, Current: &col})
		}
	}

	return changes, nil
}

func (s *Store) columnDiffers(f models.FieldDefinition, col models.ColumnInfo) bool {
	if s.dialect.NormalizeType(f.Type) != s.dialect.NormalizeType(col.ColumnType) {
		return true
	}
	nullable := strings.EqualFold(col.IsNullable, "YES")
	return nullable == notNull(f)
}

func (s *Store) exec(ctx context.Context, stmt string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Debug("executing statement", "sql", stmt)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return &StatementError{Statement: stmt, Err: err}
	}
	return nil
}
