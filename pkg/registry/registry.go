package registry

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
)

const stripeCount = 64

// IdentityRegistry maps surface mentions to canonical entity identities for
// the lifetime of a session. Find-or-create resolution is serialized per
// canonical key with striped locks, so concurrent extractions sharing one
// registry never create two divergent entities for the same key. The
// registry is never cleared automatically; callers needing isolation use
// separate instances.
//
// Stored entities and mentions never leave the registry as pointers: every
// accessor returns a copy taken while the relevant lock is held, so callers
// can annotate their copies freely while other goroutines resolve the same
// key.
type IdentityRegistry struct {
	stripes [stripeCount]stripe

	mentionsMu sync.RWMutex
	mentions   []*models.Mention
	mentionIdx map[string]*models.Mention
}

type stripe struct {
	mu       sync.Mutex
	entities map[string]*models.Entity
}

// NewIdentityRegistry creates an empty registry.
func NewIdentityRegistry() *IdentityRegistry {
	r := &IdentityRegistry{
		mentionIdx: make(map[string]*models.Mention),
	}
	for i := range r.stripes {
		r.stripes[i].entities = make(map[string]*models.Entity)
	}
	return r
}

// CanonicalizeSurface normalizes a surface form for identity lookup:
// trimmed, lowercased, inner whitespace collapsed.
func CanonicalizeSurface(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// normalizeTypeName mirrors the ontology package's UPPER_SNAKE form; the
// registry itself is type-agnostic and only uses this for keying.
func normalizeTypeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return strings.ToUpper(name)
}

func canonicalKey(surface, entityType string) string {
	return CanonicalizeSurface(surface) + "|" + normalizeTypeName(entityType)
}

func (r *IdentityRegistry) stripeFor(key string) *stripe {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &r.stripes[h.Sum32()%stripeCount]
}

// copyEntity duplicates an entity along with its attribute map. Must be
// called with the owning stripe locked.
func copyEntity(e *models.Entity) models.Entity {
	out := *e
	out.Attributes = make(map[string]any, len(e.Attributes))
	for k, v := range e.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// CreateMention records one observed occurrence of a surface form. Pure
// append; always succeeds. The returned mention is the caller's own copy.
func (r *IdentityRegistry) CreateMention(surfaceForm string, start, end int, sourceRef, entityType, context string, confidence float64) models.Mention {
	m := &models.Mention{
		ID:             uuid.NewString(),
		SurfaceForm:    surfaceForm,
		NormalizedForm: CanonicalizeSurface(surfaceForm),
		StartPos:       start,
		EndPos:         end,
		SourceRef:      sourceRef,
		Confidence:     confidence,
		EntityType:     normalizeTypeName(entityType),
		Context:        context,
	}

	r.mentionsMu.Lock()
	r.mentions = append(r.mentions, m)
	r.mentionIdx[m.ID] = m
	r.mentionsMu.Unlock()

	return *m
}

// FindOrCreateEntity resolves a mention text to a canonical entity, creating
// one on first sight of the canonical (surface, type) key. A re-resolution
// with higher confidence refreshes the stored confidence and context. The
// returned entity is a copy taken under the stripe lock.
func (r *IdentityRegistry) FindOrCreateEntity(mentionText, entityType, context string, confidence float64) (models.Entity, bool) {
	key := canonicalKey(mentionText, entityType)
	s := r.stripeFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entities[key]; ok {
		if confidence > existing.Confidence {
			existing.Confidence = confidence
			if context != "" {
				existing.Attributes["context"] = context
			}
		}
		if count, ok := existing.Attributes["mention_count"].(int); ok {
			existing.Attributes["mention_count"] = count + 1
		}
		return copyEntity(existing), false
	}

	entity := &models.Entity{
		ID:            uuid.NewString(),
		CanonicalName: strings.Join(strings.Fields(mentionText), " "),
		EntityType:    normalizeTypeName(entityType),
		Confidence:    confidence,
		Attributes: map[string]any{
			"mention_count": 1,
		},
	}
	if context != "" {
		entity.Attributes["context"] = context
	}
	s.entities[key] = entity
	return copyEntity(entity), true
}

// LinkMentionToEntity records the mention-to-entity association. Idempotent;
// unknown mention IDs are ignored.
func (r *IdentityRegistry) LinkMentionToEntity(mentionID, entityID string) {
	r.mentionsMu.Lock()
	defer r.mentionsMu.Unlock()
	if m, ok := r.mentionIdx[mentionID]; ok {
		m.EntityID = entityID
	}
}

// GetEntity looks up an entity by canonical surface form and type.
func (r *IdentityRegistry) GetEntity(surface, entityType string) (models.Entity, bool) {
	key := canonicalKey(surface, entityType)
	s := r.stripeFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key]
	if !ok {
		return models.Entity{}, false
	}
	return copyEntity(e), true
}

// Entities returns a snapshot copy of all registered entities. Concurrent
// extractions may add entries while the snapshot is taken; callers tolerate
// read-skew.
func (r *IdentityRegistry) Entities() []models.Entity {
	var out []models.Entity
	for i := range r.stripes {
		s := &r.stripes[i]
		s.mu.Lock()
		for _, e := range s.entities {
			out = append(out, copyEntity(e))
		}
		s.mu.Unlock()
	}
	return out
}

// Mentions returns a snapshot copy of all recorded mentions.
func (r *IdentityRegistry) Mentions() []models.Mention {
	r.mentionsMu.RLock()
	defer r.mentionsMu.RUnlock()
	out := make([]models.Mention, len(r.mentions))
	for i, m := range r.mentions {
		out[i] = *m
	}
	return out
}

// EntityCount returns the number of distinct entities in the registry.
func (r *IdentityRegistry) EntityCount() int {
	count := 0
	for i := range r.stripes {
		s := &r.stripes[i]
		s.mu.Lock()
		count += len(s.entities)
		s.mu.Unlock()
	}
	return count
}
