package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSurface(t *testing.T) {
	assert.Equal(t, "steve jobs", CanonicalizeSurface("  Steve   Jobs "))
	assert.Equal(t, "apple inc", CanonicalizeSurface("Apple\tInc"))
	assert.Equal(t, "", CanonicalizeSurface("   "))
}

func TestCreateMention(t *testing.T) {
	r := NewIdentityRegistry()

	m := r.CreateMention("Steve Jobs", 10, 20, "doc-1", "person", "founded Apple", 0.9)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Steve Jobs", m.SurfaceForm)
	assert.Equal(t, "steve jobs", m.NormalizedForm)
	assert.Equal(t, "PERSON", m.EntityType)
	assert.Equal(t, 10, m.StartPos)
	assert.Equal(t, "doc-1", m.SourceRef)
	assert.Equal(t, "founded Apple", m.Context)

	assert.Len(t, r.Mentions(), 1)
}

func TestFindOrCreateEntityIdempotent(t *testing.T) {
	r := NewIdentityRegistry()

	first, created := r.FindOrCreateEntity("Steve Jobs", "PERSON", "founder", 0.8)
	assert.True(t, created)

	second, created := r.FindOrCreateEntity("  steve   JOBS ", "person", "", 0.5)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID, "same canonical key resolves to one entity")
	assert.Equal(t, 1, r.EntityCount())
}

func TestFindOrCreateEntityTypeDistinguishes(t *testing.T) {
	r := NewIdentityRegistry()

	person, _ := r.FindOrCreateEntity("Jordan", "PERSON", "", 0.8)
	place, _ := r.FindOrCreateEntity("Jordan", "LOCATION", "", 0.8)
	assert.NotEqual(t, person.ID, place.ID, "same surface with different types are different entities")
	assert.Equal(t, 2, r.EntityCount())
}

func TestFindOrCreateEntityRefreshesOnHigherConfidence(t *testing.T) {
	r := NewIdentityRegistry()

	e, _ := r.FindOrCreateEntity("Apple Inc", "ORGANIZATION", "old context", 0.6)
	assert.Equal(t, 0.6, e.Confidence)

	refreshed, created := r.FindOrCreateEntity("Apple Inc", "ORGANIZATION", "new context", 0.9)
	assert.False(t, created)
	assert.Equal(t, 0.9, refreshed.Confidence)
	assert.Equal(t, "new context", refreshed.Attributes["context"])

	// Lower-confidence re-resolution keeps the stronger observation.
	again, _ := r.FindOrCreateEntity("Apple Inc", "ORGANIZATION", "weak context", 0.3)
	assert.Equal(t, 0.9, again.Confidence)
	assert.Equal(t, "new context", again.Attributes["context"])
	assert.Equal(t, 3, again.Attributes["mention_count"])
}

func TestFindOrCreateEntityConcurrent(t *testing.T) {
	r := NewIdentityRegistry()

	const goroutines = 64
	ids := make([]string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e, _ := r.FindOrCreateEntity("Steve Jobs", "PERSON", "", 0.8)
			ids[n] = e.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "at most one entity per canonical key under concurrency")
	}
	assert.Equal(t, 1, r.EntityCount())
}

func TestFindOrCreateEntityConcurrentDistinctKeys(t *testing.T) {
	r := NewIdentityRegistry()

	const keys = 200
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.FindOrCreateEntity(fmt.Sprintf("Entity %d", n), "THING", "", 0.5)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, keys, r.EntityCount())
}

func TestLinkMentionToEntity(t *testing.T) {
	r := NewIdentityRegistry()

	m := r.CreateMention("Steve Jobs", 0, 10, "doc-1", "PERSON", "", 0.9)
	e, _ := r.FindOrCreateEntity("Steve Jobs", "PERSON", "", 0.9)

	r.LinkMentionToEntity(m.ID, e.ID)
	r.LinkMentionToEntity(m.ID, e.ID) // idempotent
	r.LinkMentionToEntity("no-such-mention", e.ID)

	mentions := r.Mentions()
	require.Len(t, mentions, 1)
	assert.Equal(t, e.ID, mentions[0].EntityID)
}

func TestFindOrCreateEntityReturnsPrivateCopy(t *testing.T) {
	r := NewIdentityRegistry()

	e, _ := r.FindOrCreateEntity("Steve Jobs", "PERSON", "", 0.9)
	e.CanonicalName = "changed"
	e.Attributes["theory_validated"] = true

	stored, ok := r.GetEntity("Steve Jobs", "PERSON")
	require.True(t, ok)
	assert.Equal(t, "Steve Jobs", stored.CanonicalName)
	assert.NotContains(t, stored.Attributes, "theory_validated")
}

func TestEntitiesSnapshot(t *testing.T) {
	r := NewIdentityRegistry()
	r.FindOrCreateEntity("Steve Jobs", "PERSON", "", 0.9)
	r.FindOrCreateEntity("Apple Inc", "ORGANIZATION", "", 0.8)

	snapshot := r.Entities()
	assert.Len(t, snapshot, 2)

	// Mutating the snapshot must not touch the registry.
	snapshot[0].CanonicalName = "changed"
	e, ok := r.GetEntity("Steve Jobs", "PERSON")
	require.True(t, ok)
	assert.Equal(t, "Steve Jobs", e.CanonicalName)
}
