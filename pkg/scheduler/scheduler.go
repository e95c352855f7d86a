package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/graphstore"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/registry"
	fusion "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Fusion"
	"github.com/Mimir-AIP/OntoGraph-Go/utils"
)

// FusionRun records the outcome of one scheduled fusion pass.
type FusionRun struct {
	StartedAt        time.Time                 `json:"started_at"`
	Elapsed          time.Duration             `json:"elapsed"`
	InputEntities    int                       `json:"input_entities"`
	ResolvedEntities int                       `json:"resolved_entities"`
	MergedAway       int                       `json:"merged_away"`
	Metrics          models.ConsistencyMetrics `json:"metrics"`
	Error            string                    `json:"error,omitempty"`
}

// FusionScheduler periodically fuses the identity registry's current
// entity snapshot and persists the result. Fusion runs on a best-effort
// snapshot; extractions racing the schedule produce read-skew, not errors.
type FusionScheduler struct {
	cron     *cron.Cron
	engine   func() *fusion.FusionEngine
	registry *registry.IdentityRegistry
	store    graphstore.GraphStore
	strategy fusion.ConflictStrategy
	logger   *utils.Logger

	mu      sync.RWMutex
	lastRun *FusionRun
	entryID cron.EntryID
	running bool
}

// NewFusionScheduler creates a scheduler. The engine is resolved through a
// provider function on every run, so an ontology swap takes effect without
// restarting the schedule. The store is optional; without it fusion results
// are only reflected in run history.
func NewFusionScheduler(engine func() *fusion.FusionEngine, reg *registry.IdentityRegistry, store graphstore.GraphStore, strategy fusion.ConflictStrategy) *FusionScheduler {
	return &FusionScheduler{
		cron:     cron.New(),
		engine:   engine,
		registry: reg,
		store:    store,
		strategy: strategy,
		logger:   utils.GetLogger(),
	}
}

// Start schedules fusion at the given cron expression and begins running.
func (s *FusionScheduler) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("fusion scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(cronExpr, s.runOnce)
	if err != nil {
		return fmt.Errorf("invalid fusion schedule %q: %w", cronExpr, err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.running = true

	s.logger.Info("fusion scheduler started",
		utils.Component("scheduler"),
		utils.String("schedule", cronExpr))
	return nil
}

// Stop halts the schedule, waiting for an in-flight run to finish.
func (s *FusionScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("fusion scheduler is not running")
	}
	s.running = false
	s.mu.Unlock()

	// Released the lock first: an in-flight run records its result under
	// the same mutex.
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("fusion scheduler stopped", utils.Component("scheduler"))
	return nil
}

// TriggerNow runs one fusion pass immediately, outside the schedule.
func (s *FusionScheduler) TriggerNow() *FusionRun {
	s.runOnce()
	return s.LastRun()
}

// LastRun returns the most recent run record, or nil before the first run.
func (s *FusionScheduler) LastRun() *FusionRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

func (s *FusionScheduler) runOnce() {
	run := &FusionRun{StartedAt: time.Now()}

	entities := s.registry.Entities()
	run.InputEntities = len(entities)

	result, err := s.engine().Fuse(entities, nil, s.strategy)
	if err != nil {
		run.Error = err.Error()
		run.Elapsed = time.Since(run.StartedAt)
		s.recordRun(run)
		s.logger.Error("scheduled fusion failed", err, utils.Component("scheduler"))
		return
	}

	run.ResolvedEntities = len(result.Entities)
	run.MergedAway = len(result.Aliases)
	run.Metrics = result.Metrics

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.store.SaveEntities(ctx, result.Entities); err != nil {
			run.Error = err.Error()
			s.logger.Error("failed to persist fused entities", err, utils.Component("scheduler"))
		}
	}

	run.Elapsed = time.Since(run.StartedAt)
	s.recordRun(run)
}

func (s *FusionScheduler) recordRun(run *FusionRun) {
	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()
}
