package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"db-schema-sync/internal/catalog"
	"db-schema-sync/internal/models"
	"db-schema-sync/internal/store"
)

// Recorder receives every finished outcome.
type Recorder interface {
	Record(outcome *models.SyncOutcome)
}

// SyncService runs synchronization batches: resolve the order, drop in
// reverse when forced, then create or alter in forward order.
type SyncService struct {
	catalog  catalog.Reader
	resolver *OrderResolver
	schema   *SchemaService
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	// mutex serializes batches against the same store.
	mutex sync.Mutex
}

type SyncOption func(*SyncService)

func WithRecorder(r Recorder) SyncOption {
	return func(s *SyncService) {
		s.recorder = r
	}
}

func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSyncService creates a new sync service
func NewSyncService(reader catalog.Reader, resolver *OrderResolver, schema *SchemaService, logger *slog.Logger, opts ...SyncOption) *SyncService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &SyncService{
		catalog:  reader,
		resolver: resolver,
		schema:   schema,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEntities passes the catalog through unchanged.
func (s *SyncService) ListEntities(ctx context.Context) ([]models.EntityDefinition, error) {
	return s.catalog.ListEntities(ctx)
}

// PreviewOrder resolves the creation order of the named entities without
// touching the store. An empty name list previews the whole catalog.
func (s *SyncService) PreviewOrder(ctx context.Context, names []string) ([]models.EntityDefinition, []string, error) {
	defs, err := s.catalog.ListEntities(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 0 {
		return s.resolver.Resolve(defs), nil, nil
	}

	refs := make([]models.EntityRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, models.EntityRef{Name: n})
	}
	sel := catalog.Select(defs, refs)
	return s.resolver.Resolve(sel.Entities), sel.Warnings, nil
}

// CheckPrecedence lints the precedence list against the catalog's references.
func (s *SyncService) CheckPrecedence(ctx context.Context) ([]models.PrecedenceViolation, error) {
	defs, err := s.catalog.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolver.Check(defs), nil
}

// Synchronize runs one batch. It never returns nil: failures of individual
// entities are logged and counted, and only an empty request or an
// unreadable catalog fail the batch as a whole.
//
// Cancelling ctx does not stop the batch. Once a table may have been
// dropped, every selected entity still gets its create or alter attempt;
// each statement stays bounded by the store timeout.
func (s *SyncService) Synchronize(ctx context.Context, refs []models.EntityRef, opts models.SyncOptions) *models.SyncOutcome {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	caller := ctx
	ctx = context.WithoutCancel(ctx)

	mode := opts.EffectiveMode()
	outcome := &models.SyncOutcome{
		RunID:     uuid.NewString(),
		Mode:      mode,
		Options:   opts,
		Order:     []string{},
		Results:   []models.EntityResult{},
		StartedAt: s.now(),
	}
	logger := s.logger.With("run_id", outcome.RunID)
	tr := newTrace(logger)

	logger.Info("synchronization started", "entities", len(refs), "mode", mode, "force", opts.Force)
	tr.add("Starting database synchronization with options: %s", opts)

	if err := s.run(ctx, refs, opts, mode, outcome, tr); err != nil {
		tr.add("Error in synchronization: %v", err)
		outcome.Success = false
		outcome.Message = "Database synchronization failed"
		outcome.Error = err.Error()
		logger.Error("synchronization failed", "error", err)
	} else {
		logger.Info("synchronization finished", "synced", outcome.Synced, "total", outcome.Total, "success", outcome.Success)
	}

	if caller.Err() != nil {
		logger.Warn("caller went away before the batch finished", "error", caller.Err())
	}

	outcome.Logs = tr.Lines()
	outcome.FinishedAt = s.now()

	if s.recorder != nil {
		s.recorder.Record(outcome)
	}
	return outcome
}

func (s *SyncService) run(ctx context.Context, refs []models.EntityRef, opts models.SyncOptions, mode models.Mode, outcome *models.SyncOutcome, tr *trace) error {
	if len(refs) == 0 {
		return &ValidationError{Err: ErrNoEntities}
	}

	requested := make([]string, 0, len(refs))
	for _, ref := range refs {
		requested = append(requested, ref.Name)
	}
	tr.add("Entities selected for sync: %s", strings.Join(requested, ", "))

	defs, err := s.catalog.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to read entity catalog: %w", err)
	}

	sel := catalog.Select(defs, refs)
	outcome.Total = sel.Requested
	for _, w := range sel.Warnings {
		tr.add("%s", w)
	}

	order := s.resolver.Resolve(sel.Entities)
	outcome.Order = entityNames(order)
	tr.add("Effective sync mode: %s", mode)
	tr.add("Resolved creation order: %s", strings.Join(outcome.Order, " -> "))

	if opts.Force {
		tr.add("Force sync requested. Dropping all selected tables...")
		for _, def := range Reverse(order) {
			outcome.Results = append(outcome.Results, s.drop(ctx, def, tr))
		}
	}

	for _, def := range order {
		result := s.sync(ctx, def, mode, tr)
		if result.Success {
			outcome.Synced++
		}
		outcome.Results = append(outcome.Results, result)
	}

	tr.add("Database synchronization completed. %d of %d entities synced successfully.", outcome.Synced, outcome.Total)

	outcome.Success = outcome.Synced > 0
	if outcome.Success {
		outcome.Message = fmt.Sprintf("Database synchronized successfully (%d/%d entities)", outcome.Synced, outcome.Total)
	} else {
		outcome.Message = fmt.Sprintf("Database synchronization failed for all entities (%d/%d entities)", outcome.Synced, outcome.Total)
	}
	return nil
}

func (s *SyncService) drop(ctx context.Context, def models.EntityDefinition, tr *trace) models.EntityResult {
	result := models.EntityResult{
		Entity:     def.Name,
		Table:      def.StorageName,
		Phase:      models.PhaseDrop,
		Statements: []string{s.schema.DropStatement(def)},
	}

	tr.add("Dropping table: %s", def.StorageName)
	if err := s.schema.DropEntity(ctx, def); err != nil {
		var dropErr *DropError
		cause := err
		if errors.As(err, &dropErr) {
			cause = dropErr.Err
		}
		result.Error = store.Describe(cause)
		tr.add("Error dropping table %s: %s", def.StorageName, result.Error)
		return result
	}

	result.Success = true
	result.Action = "dropped"
	tr.add("Successfully dropped table: %s", def.StorageName)
	return result
}

func (s *SyncService) sync(ctx context.Context, def models.EntityDefinition, mode models.Mode, tr *trace) models.EntityResult {
	result := models.EntityResult{
		Entity: def.Name,
		Table:  def.StorageName,
		Phase:  models.PhaseSync,
	}

	tr.add("Syncing entity: %s with fields: %s", def.Name, strings.Join(def.FieldNames(), ", "))
	res, err := s.schema.SyncEntity(ctx, def, mode)
	result.Statements = res.Statements
	result.Drift = res.Drift
	if err != nil {
		var syncErr *SyncError
		cause := err
		if errors.As(err, &syncErr) {
			cause = syncErr.Err
		}
		result.Error = store.Describe(cause)
		tr.add("Error syncing entity %s: %s", def.Name, result.Error)
		return result
	}

	for _, d := range res.Drift {
		tr.add("Schema drift on %s left in place: %s", def.Name, d)
	}

	result.Success = true
	result.Action = string(res.Action)
	tr.add("Successfully synced entity: %s (%s)", def.Name, res.Action)
	return result
}
