package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"db-schema-sync/internal/models"
	"db-schema-sync/internal/store"
)

// SchemaService runs the structural step for one entity at a time.
type SchemaService struct {
	db      store.TxBeginner
	dialect store.Dialect
	applier store.Applier
	timeout time.Duration
	logger  *slog.Logger
}

// NewSchemaService creates a new schema service. Drops run in their own
// transaction on db; creates and alters go through applier.
func NewSchemaService(db store.TxBeginner, dialect store.Dialect, applier store.Applier, timeout time.Duration, logger *slog.Logger) *SchemaService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SchemaService{
		db:      db,
		dialect: dialect,
		applier: applier,
		timeout: timeout,
		logger:  logger,
	}
}

// NewSchemaServiceForStore wires a schema service to a single store.
func NewSchemaServiceForStore(s *store.Store, logger *slog.Logger) *SchemaService {
	return NewSchemaService(s, s.Dialect(), s, s.Timeout(), logger)
}

// DropEntity drops def's table inside a transaction scoped to this entity.
// A failure rolls back only that transaction.
func (s *SchemaService) DropEntity(ctx context.Context, def models.EntityDefinition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &DropError{Entity: def.Name, Table: def.StorageName, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	stmt := s.DropStatement(def)

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Debug("executing statement", "entity", def.Name, "sql", stmt)
	if _, err := tx.ExecContext(execCtx, stmt); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "entity", def.Name, "error", rbErr)
		}
		return &DropError{Entity: def.Name, Table: def.StorageName, Err: &store.StatementError{Statement: stmt, Err: err}}
	}

	if err := tx.Commit(); err != nil {
		return &DropError{Entity: def.Name, Table: def.StorageName, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// DropStatement is the statement DropEntity issues for def.
func (s *SchemaService) DropStatement(def models.EntityDefinition) string {
	return s.dialect.DropTableSQL(def.StorageName)
}

// SyncEntity creates or alters def's table according to mode.
func (s *SchemaService) SyncEntity(ctx context.Context, def models.EntityDefinition, mode models.Mode) (store.ApplyResult, error) {
	res, err := s.applier.Apply(ctx, def, mode)
	if err != nil {
		return res, &SyncError{Entity: def.Name, Table: def.StorageName, Err: err}
	}

	if len(res.Drift) > 0 {
		s.logger.Info("schema drift left in place", "entity", def.Name, "mode", mode, "changes", len(res.Drift))
	}
	return res, nil
}
