package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/graphstore"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/registry"
	fusion "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Fusion"
)

func testScheduler(t *testing.T) (*FusionScheduler, *registry.IdentityRegistry, *graphstore.MemoryStore) {
	t.Helper()
	engine := fusion.NewFusionEngine(0.85, nil)
	reg := registry.NewIdentityRegistry()
	store := graphstore.NewMemoryStore()
	s := NewFusionScheduler(func() *fusion.FusionEngine { return engine }, reg, store, fusion.StrategyEvidenceBased)
	return s, reg, store
}

func TestTriggerNowFusesRegistrySnapshot(t *testing.T) {
	s, reg, store := testScheduler(t)

	reg.FindOrCreateEntity("Paris Agreement", "CLIMATE_POLICY", "", 0.9)
	reg.FindOrCreateEntity("The Paris Agreement", "CLIMATE_POLICY", "", 0.8)
	reg.FindOrCreateEntity("France", "COUNTRY", "", 0.9)

	run := s.TriggerNow()
	require.NotNil(t, run)
	assert.Empty(t, run.Error)
	assert.Equal(t, 3, run.InputEntities)
	assert.Equal(t, 2, run.ResolvedEntities)
	assert.Equal(t, 1, run.MergedAway)

	persisted, err := store.ListEntities(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestLastRunBeforeFirstRun(t *testing.T) {
	s, _, _ := testScheduler(t)
	assert.Nil(t, s.LastRun())
}

func TestStartStop(t *testing.T) {
	s, _, _ := testScheduler(t)

	require.NoError(t, s.Start("@every 1h"))
	assert.Error(t, s.Start("@every 1h"), "double start is rejected")
	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop(), "double stop is rejected")
}

func TestStartInvalidSchedule(t *testing.T) {
	s, _, _ := testScheduler(t)
	assert.Error(t, s.Start("not a cron expression"))
}
