package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-schema-sync/internal/catalog"
	"db-schema-sync/internal/models"
	"db-schema-sync/internal/store"
	"db-schema-sync/internal/testutil"
)

type failingReader struct{ err error }

func (f failingReader) ListEntities(context.Context) ([]models.EntityDefinition, error) {
	return nil, f.err
}

func abcCatalog() catalog.Static {
	field := []models.FieldDefinition{{Name: "id", Type: "INTEGER", PrimaryKey: true}}
	return catalog.Static{
		{Name: "A", StorageName: "a_table", Fields: field},
		{Name: "B", StorageName: "b_table", Fields: field},
		{Name: "C", StorageName: "c_table", Fields: field},
	}
}

func refs(names ...string) []models.EntityRef {
	out := make([]models.EntityRef, 0, len(names))
	for _, n := range names {
		out = append(out, models.EntityRef{Name: n})
	}
	return out
}

func newSyncService(t *testing.T, reader catalog.Reader, schema *SchemaService, opts ...SyncOption) *SyncService {
	t.Helper()
	return NewSyncService(reader, NewOrderResolver(PrecedenceList{"A", "B"}), schema, testutil.NewTestLogger(t), opts...)
}

func logContaining(logs []string, substr string) (int, bool) {
	for i, line := range logs {
		if strings.Contains(line, substr) {
			return i, true
		}
	}
	return -1, false
}

func TestSynchronize_EmptyRequest(t *testing.T) {
	applier := &fakeApplier{}
	s := newSyncService(t, abcCatalog(), NewSchemaService(nil, store.SQLite{}, applier, 0, nil))

	out := s.Synchronize(context.Background(), nil, models.SyncOptions{})

	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
	assert.Contains(t, out.Error, ErrNoEntities.Error())
	assert.Equal(t, "Database synchronization failed", out.Message)
	assert.NotEmpty(t, out.Logs)
	assert.Empty(t, applier.applied)
	assert.Empty(t, out.Results)
	_, synced := logContaining(out.Logs, "Syncing entity")
	assert.False(t, synced)
}

func TestSynchronize_ContinuesPastFailure(t *testing.T) {
	applier := &fakeApplier{fail: map[string]error{"B": errors.New("duplicate key name")}}
	s := newSyncService(t, abcCatalog(), NewSchemaService(nil, store.SQLite{}, applier, 0, nil))

	out := s.Synchronize(context.Background(), refs("C", "B", "A"), models.SyncOptions{})

	assert.True(t, out.Success)
	assert.Contains(t, out.Message, "2/3")
	assert.Empty(t, out.Error)
	assert.Equal(t, 2, out.Synced)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, []string{"A", "B", "C"}, out.Order)
	assert.Equal(t, []string{"A", "B", "C"}, applier.applied)

	i, ok := logContaining(out.Logs, "Error syncing entity B")
	require.True(t, ok)
	assert.Contains(t, out.Logs[i], "duplicate key name")

	require.Len(t, out.Results, 3)
	assert.False(t, out.Results[1].Success)
	assert.Equal(t, "duplicate key name", out.Results[1].Error)
	assert.Equal(t, []string{"CREATE TABLE b_table"}, out.Results[1].Statements)
	assert.NotEmpty(t, out.RunID)
	assert.False(t, out.FinishedAt.Before(out.StartedAt))
}

func TestSynchronize_AllFail(t *testing.T) {
	applier := &fakeApplier{fail: map[string]error{"A": errors.New("x"), "B": errors.New("y")}}
	s := newSyncService(t, abcCatalog(), NewSchemaService(nil, store.SQLite{}, applier, 0, nil))

	out := s.Synchronize(context.Background(), refs("A", "B"), models.SyncOptions{})

	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "0/2")
	assert.Empty(t, out.Error)
}

func TestSynchronize_UnknownEntityCounted(t *testing.T) {
	applier := &fakeApplier{}
	s := newSyncService(t, abcCatalog(), NewSchemaService(nil, store.SQLite{}, applier, 0, nil))

	out := s.Synchronize(context.Background(), refs("A", "ghost"), models.SyncOptions{})

	assert.True(t, out.Success)
	assert.Contains(t, out.Message, "1/2")
	_, warned := logContaining(out.Logs, "Entity ghost not found in catalog")
	assert.True(t, warned)
	assert.Equal(t, []string{"A"}, applier.applied)
}

func TestSynchronize_EffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		opts models.SyncOptions
		want models.Mode
	}{
		{"safe mode", models.SyncOptions{SafeMode: true, Alter: true}, models.ModeCreateOnly},
		{"alter", models.SyncOptions{Alter: true}, models.ModeAlter},
		{"plain", models.SyncOptions{}, models.ModeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &fakeApplier{}
			s := newSyncService(t, abcCatalog(), NewSchemaService(nil, store.SQLite{}, applier, 0, nil))

			out := s.Synchronize(context.Background(), refs("A", "B", "C"), tt.opts)
			assert.Equal(t, tt.want, out.Mode)
			assert.Equal(t, []models.Mode{tt.want, tt.want, tt.want}, applier.modes)
		})
	}
}

func TestSynchronize_ForceDropsInReverse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"c_table", "b_table", "a_table"} {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "` + table + `"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
	}

	applier := &fakeApplier{}
	s := newSyncService(t, abcCatalog(), NewSchemaService(db, store.SQLite{}, applier, 0, nil))

	out := s.Synchronize(context.Background(), refs("C", "A", "B"), models.SyncOptions{Force: true, Alter: true})

	require.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, out.Success)
	assert.Equal(t, models.ModeDefault, out.Mode)
	assert.Equal(t, []string{"A", "B", "C"}, applier.applied)

	dropIdx, ok := logContaining(out.Logs, "Successfully dropped table: a_table")
	require.True(t, ok)
	syncIdx, ok := logContaining(out.Logs, "Syncing entity: A")
	require.True(t, ok)
	assert.Less(t, dropIdx, syncIdx)

	var drops []string
	for _, r := range out.Results {
		if r.Phase == models.PhaseDrop {
			drops = append(drops, r.Entity)
		}
	}
	assert.Equal(t, []string{"C", "B", "A"}, drops)
}

func TestSynchronize_FailedDropsDoNotStopCreates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range 3 {
		mock.ExpectBegin()
		mock.ExpectExec("DROP TABLE").WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()
	}

	applier := &fakeApplier{}
	s := newSyncService(t, abcCatalog(), NewSchemaService(db, store.MySQL{}, applier, 0, nil))

	out := s.Synchronize(context.Background(), refs("A", "B", "C"), models.SyncOptions{Force: true})

	require.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, out.Success)
	assert.Contains(t, out.Message, "3/3")
	assert.Len(t, applier.applied, 3)

	i, ok := logContaining(out.Logs, "Error dropping table c_table")
	require.True(t, ok)
	assert.Contains(t, out.Logs[i], "permission denied")
}

func TestSynchronize_CatalogFailure(t *testing.T) {
	history := NewHistory(5)
	s := newSyncService(t, failingReader{err: errors.New("file vanished")}, NewSchemaService(nil, store.SQLite{}, &fakeApplier{}, 0, nil), WithRecorder(history))

	out := s.Synchronize(context.Background(), refs("A"), models.SyncOptions{})

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "file vanished")
	_, ok := logContaining(out.Logs, "Entities selected for sync: A")
	assert.True(t, ok, "logs recorded so far are kept")

	last := history.Last()
	require.NotNil(t, last)
	assert.Equal(t, out.RunID, last.RunID)
}

// cancelOnBegin cancels the batch context when the nth transaction opens.
type cancelOnBegin struct {
	db     *sql.DB
	n      int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelOnBegin) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	c.calls++
	if c.calls == c.n {
		c.cancel()
	}
	return c.db.BeginTx(ctx, opts)
}

func TestSynchronize_CancelledDuringDropsStillCreates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"c_table", "b_table", "a_table"} {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "` + table + `"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	beginner := &cancelOnBegin{db: db, n: 3, cancel: cancel}

	applier := &fakeApplier{}
	s := newSyncService(t, abcCatalog(), NewSchemaService(beginner, store.SQLite{}, applier, 0, nil))

	out := s.Synchronize(ctx, refs("A", "B", "C"), models.SyncOptions{Force: true})

	require.Error(t, ctx.Err())
	require.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, out.Success, out.Logs)
	assert.Empty(t, out.Error)
	assert.Contains(t, out.Message, "3/3")
	assert.Equal(t, []string{"A", "B", "C"}, applier.applied)
	assert.Equal(t, []error{nil, nil, nil}, applier.ctxErrs)
}

func TestSynchronize_CancelledBeforeStart(t *testing.T) {
	applier := &fakeApplier{}
	s := newSyncService(t, abcCatalog(), NewSchemaService(nil, store.SQLite{}, applier, 0, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := s.Synchronize(ctx, refs("A"), models.SyncOptions{})
	assert.True(t, out.Success, out.Logs)
	assert.Equal(t, []string{"A"}, applier.applied)
}

func TestSynchronize_FieldSubset(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	st := store.New(db, store.SQLite{})
	reader := catalog.Static{{
		Name:        "user",
		StorageName: "users",
		Fields: []models.FieldDefinition{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "email", Type: "VARCHAR(255)", Nullable: true},
			{Name: "bio", Type: "TEXT", Nullable: true},
		},
	}}
	s := newSyncService(t, reader, NewSchemaServiceForStore(st, nil))

	out := s.Synchronize(ctx, []models.EntityRef{{Name: "user", Fields: []string{"id", "email"}}}, models.SyncOptions{})
	require.True(t, out.Success, out.Logs)

	columns, err := st.Columns(ctx, "users")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "email", columns[1].ColumnName)
}

func TestSynchronize_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	st := store.New(db, store.SQLite{})

	id := models.FieldDefinition{Name: "id", Type: "INTEGER", PrimaryKey: true}
	reader := catalog.Static{
		{Name: "enrollment", StorageName: "enrollments", Fields: []models.FieldDefinition{
			id,
			{Name: "user_id", Type: "INTEGER", Reference: &models.Reference{TargetEntity: "user", TargetField: "id"}},
		}},
		{Name: "user", StorageName: "users", Fields: []models.FieldDefinition{
			id,
			{Name: "email", Type: "VARCHAR(255)", Unique: true},
		}},
	}
	s := NewSyncService(reader, NewOrderResolver(DefaultPrecedence()), NewSchemaServiceForStore(st, nil), testutil.NewTestLogger(t))

	out := s.Synchronize(ctx, refs("enrollment", "user"), models.SyncOptions{SafeMode: true})
	require.True(t, out.Success, out.Logs)
	assert.Equal(t, []string{"user", "enrollment"}, out.Order)
	assert.Contains(t, out.Message, "2/2")

	testutil.Exec(t, db,
		`INSERT INTO users (id, email) VALUES (1, 'a@example.com')`,
		`INSERT INTO enrollments (id, user_id) VALUES (1, 1)`,
	)

	// Safe mode leaves existing tables alone.
	out = s.Synchronize(ctx, refs("user", "enrollment"), models.SyncOptions{SafeMode: true})
	require.True(t, out.Success)
	for _, r := range out.Results {
		assert.Equal(t, string(store.ActionSkipped), r.Action)
	}

	// Force drops dependents first, so foreign keys never block the drop.
	out = s.Synchronize(ctx, refs("user", "enrollment"), models.SyncOptions{Force: true})
	require.True(t, out.Success, out.Logs)
	assert.Contains(t, out.Message, "2/2")
	_, failed := logContaining(out.Logs, "Error dropping")
	assert.False(t, failed, out.Logs)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Zero(t, count)
}
