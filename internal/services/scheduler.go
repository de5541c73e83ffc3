package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"db-schema-sync/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	ErrSchedulerRunning    = errors.New("scheduled sync already running")
	ErrSchedulerNotRunning = errors.New("scheduled sync is not running")
)

// Synchronizer is the part of SyncService the scheduler drives.
type Synchronizer interface {
	ListEntities(ctx context.Context) ([]models.EntityDefinition, error)
	Synchronize(ctx context.Context, refs []models.EntityRef, opts models.SyncOptions) *models.SyncOutcome
}

// SchedulerConfig is the job definition. An empty entity list means every
// catalog entity. Scheduled runs never force.
type SchedulerConfig struct {
	Schedule   string
	Entities   []string
	Alter      bool
	SafeMode   bool
	RunOnStart bool
}

// ConfigUpdate changes selected settings of a scheduler.
type ConfigUpdate struct {
	Schedule string    `json:"cronSchedule"`
	Entities *[]string `json:"entities"`
	Alter    *bool     `json:"alter"`
	SafeMode *bool     `json:"safeMode"`
}

// Scheduler runs synchronization batches on a cron schedule.
type Scheduler struct {
	sync   Synchronizer
	logger *slog.Logger

	mutex       sync.RWMutex
	cfg         SchedulerConfig
	cron        *cron.Cron
	entryID     cron.EntryID
	runCtx      context.Context
	cancel      context.CancelFunc
	isRunning   bool
	lastRunTime time.Time
	lastOutcome *models.SyncOutcome
}

func NewScheduler(s Synchronizer, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		sync:   s,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the job and starts the cron loop. Jobs run with a context
// derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return ErrSchedulerRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	entryID, err := c.AddFunc(s.cfg.Schedule, func() { s.runScheduled(runCtx) })
	if err != nil {
		cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	s.cron = c
	s.entryID = entryID
	s.runCtx = runCtx
	s.cancel = cancel
	s.isRunning = true

	s.logger.Info("scheduled sync started", "schedule", s.cfg.Schedule, "entry_id", entryID, "next_run", s.nextRunLocked())

	if s.cfg.RunOnStart {
		go func() {
			s.logger.Info("running initial sync")
			s.runScheduled(runCtx)
		}()
	}

	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() error {
	s.mutex.Lock()
	if !s.isRunning {
		s.mutex.Unlock()
		return ErrSchedulerNotRunning
	}
	c, cancel := s.cron, s.cancel
	s.isRunning = false
	s.mutex.Unlock()

	<-c.Stop().Done()
	cancel()

	s.logger.Info("scheduled sync stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isRunning
}

// TriggerNow runs the scheduled job once, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) *models.SyncOutcome {
	s.logger.Info("manual trigger of scheduled sync")
	return s.run(ctx)
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	s.logger.Info("cron triggered", "at", time.Now().Format(timeLayout))
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) *models.SyncOutcome {
	s.mutex.Lock()
	s.lastRunTime = time.Now()
	cfg := s.cfg
	s.mutex.Unlock()

	refs, err := s.refs(ctx, cfg.Entities)
	var outcome *models.SyncOutcome
	if err != nil {
		s.logger.Error("failed to list entities for scheduled sync", "error", err)
		outcome = &models.SyncOutcome{
			Success: false,
			Message: "Database synchronization failed",
			Error:   err.Error(),
			Logs:    []string{fmt.Sprintf("Error listing entities: %v", err)},
		}
	} else {
		outcome = s.sync.Synchronize(ctx, refs, models.SyncOptions{Alter: cfg.Alter, SafeMode: cfg.SafeMode})
	}

	s.mutex.Lock()
	s.lastOutcome = outcome
	s.mutex.Unlock()

	s.logger.Info("scheduled sync finished", "success", outcome.Success, "message", outcome.Message)
	return outcome
}

func (s *Scheduler) refs(ctx context.Context, names []string) ([]models.EntityRef, error) {
	if len(names) == 0 {
		defs, err := s.sync.ListEntities(ctx)
		if err != nil {
			return nil, err
		}
		names = entityNames(defs)
	}

	refs := make([]models.EntityRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, models.EntityRef{Name: n})
	}
	return refs, nil
}

func (s *Scheduler) Status() models.ScheduleStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status := models.ScheduleStatus{
		IsRunning: s.isRunning,
		Schedule:  s.cfg.Schedule,
		Entities:  append([]string{}, s.cfg.Entities...),
		Options:   models.SyncOptions{Alter: s.cfg.Alter, SafeMode: s.cfg.SafeMode},
	}
	if !s.lastRunTime.IsZero() {
		status.LastRun = s.lastRunTime.Format(timeLayout)
	}
	if next := s.nextRunLocked(); !next.IsZero() && s.isRunning {
		status.NextRun = next.Format(timeLayout)
	}
	if s.lastOutcome != nil {
		last := *s.lastOutcome
		status.LastOutcome = &last
	}
	return status
}

// UpdateConfig applies update. A new schedule takes effect immediately when
// the job is running.
func (s *Scheduler) UpdateConfig(update ConfigUpdate) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if update.Schedule != "" && update.Schedule != s.cfg.Schedule {
		if _, err := cron.ParseStandard(update.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", update.Schedule, err)
		}
		if s.isRunning {
			runCtx := s.runCtx
			s.cron.Remove(s.entryID)
			entryID, err := s.cron.AddFunc(update.Schedule, func() { s.runScheduled(runCtx) })
			if err != nil {
				return fmt.Errorf("failed to add cron job: %w", err)
			}
			s.entryID = entryID
		}
		s.cfg.Schedule = update.Schedule
	}

	if update.Entities != nil {
		s.cfg.Entities = append([]string{}, (*update.Entities)...)
	}
	if update.Alter != nil {
		s.cfg.Alter = *update.Alter
	}
	if update.SafeMode != nil {
		s.cfg.SafeMode = *update.SafeMode
	}

	s.logger.Info("schedule configuration updated",
		"schedule", s.cfg.Schedule, "entities", s.cfg.Entities, "alter", s.cfg.Alter, "safe_mode", s.cfg.SafeMode)
	return nil
}

func (s *Scheduler) nextRunLocked() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}
