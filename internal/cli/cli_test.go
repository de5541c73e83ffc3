package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-schema-sync/internal/app"
	"db-schema-sync/internal/config"
	"db-schema-sync/internal/models"
	"db-schema-sync/internal/testutil"
)

// sqliteOpener builds the application over db. The test owns db, so the
// application must not close it.
func sqliteOpener(t *testing.T, db *sql.DB) Opener {
	return func(ctx context.Context, opts *RootOptions) (*app.Application, error) {
		cfg := &config.AppConfig{
			TargetDB: config.DatabaseConfig{Dialect: "sqlite"},
			Catalog: config.CatalogConfig{
				Source: config.CatalogSourceFile,
				File:   filepath.Join("..", "catalog", "testdata", "entities.yaml"),
			},
			Sync: config.SyncConfig{Schedule: "0 */6 * * *"},
		}
		application, err := app.NewApplication(cfg, db, nil, testutil.NewTestLogger(t))
		if err != nil {
			return nil, err
		}
		application.TargetDB = nil
		return application, nil
	}
}

func execute(t *testing.T, db *sql.DB, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := newRootCommand(&RootOptions{Open: sqliteOpener(t, db)})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "schemasync", cmd.Use)

	for _, name := range []string{"entities", "order", "check", "sync"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, testutil.OpenSQLite(t), "entities", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEntitiesCommand(t *testing.T) {
	db := testutil.OpenSQLite(t)

	out, _, err := execute(t, db, "entities")
	require.NoError(t, err)
	assert.Contains(t, out, "enrollments")
	assert.Contains(t, out, "instructor_id->user")
	assert.Contains(t, out, "(4 entities)")

	out, _, err = execute(t, db, "entities", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string                    `json:"status"`
		Data   []models.EntityDefinition `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data, 4)
}

func TestOrderCommand(t *testing.T) {
	out, errOut, err := execute(t, testutil.OpenSQLite(t), "order", "enrollment", "user", "ghost", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data OrderResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"user", "enrollment"}, resp.Data.Order)
	assert.Equal(t, []string{"enrollment", "user"}, resp.Data.Drop)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Empty(t, errOut)

	out, errOut, err = execute(t, testutil.OpenSQLite(t), "order", "enrollment", "ghost")
	require.NoError(t, err)
	assert.Contains(t, errOut, "ghost")
	assert.Contains(t, out, "enrollments")
}

func TestCheckCommand(t *testing.T) {
	out, _, err := execute(t, testutil.OpenSQLite(t), "check")
	require.NoError(t, err)
	assert.Contains(t, out, "consistent")
}

func TestSyncCommand(t *testing.T) {
	db := testutil.OpenSQLite(t)

	out, _, err := execute(t, db, "sync", "Course", "user", "category")
	require.NoError(t, err)
	assert.Contains(t, out, "Database synchronized successfully (3/3 entities)")
	assert.Contains(t, out, "Resolved creation order: user -> category -> Course")

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'courses'`).Scan(&count))
	assert.Equal(t, 1, count)

	out, _, err = execute(t, db, "sync", "--all", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string             `json:"status"`
		Data   models.SyncOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, resp.Data.Total)
	assert.Equal(t, models.ModeCreateOnly, resp.Data.Mode)
}

func TestSyncCommand_FieldSubset(t *testing.T) {
	db := testutil.OpenSQLite(t)

	_, _, err := execute(t, db, "sync", "user:user_id,email", "--safe-mode=false")
	require.NoError(t, err)

	rows, err := db.Query(`SELECT name FROM pragma_table_info('users') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"user_id", "email"}, cols)
}

func TestSyncCommand_AllFail(t *testing.T) {
	_, _, err := execute(t, testutil.OpenSQLite(t), "sync", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "0/1")
}

func TestSyncCommand_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no entities", []string{"sync"}, "at least one entity"},
		{"all with names", []string{"sync", "--all", "user"}, "cannot be combined"},
		{"force without yes", []string{"sync", "user", "--force"}, "--yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, testutil.OpenSQLite(t), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseEntityRefs(t *testing.T) {
	refs := ParseEntityRefs([]string{"user", "Course:title, price,", " goal : "})
	assert.Equal(t, []models.EntityRef{
		{Name: "user"},
		{Name: "Course", Fields: []string{"title", "price"}},
		{Name: "goal"},
	}, refs)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open", errors.New("boom"))))
	assert.Equal(t, "open: boom", WrapExitError(ExitCommandError, "open", errors.New("boom")).Error())
}
