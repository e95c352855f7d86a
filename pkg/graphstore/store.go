package graphstore

import (
	"context"
	"sync"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
)

// GraphStore persists fused entities and relationships. The extraction
// pipeline itself works purely in memory; a store is wired in when results
// need to outlive the process.
type GraphStore interface {
	SaveEntities(ctx context.Context, entities []models.Entity) error
	SaveRelationships(ctx context.Context, relationships []models.Relationship) error
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	ListEntities(ctx context.Context, entityType string, limit int) ([]models.Entity, error)
	ListRelationships(ctx context.Context, limit int) ([]models.Relationship, error)
	Close() error
}

// MemoryStore is the in-process GraphStore used in tests and when no
// database path is configured.
type MemoryStore struct {
	mu            sync.RWMutex
	entities      map[string]models.Entity
	entityOrder   []string
	relationships map[string]models.Relationship
	relOrder      []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:      make(map[string]models.Entity),
		relationships: make(map[string]models.Relationship),
	}
}

// SaveEntities upserts entities by ID.
func (s *MemoryStore) SaveEntities(ctx context.Context, entities []models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		if _, exists := s.entities[e.ID]; !exists {
			s.entityOrder = append(s.entityOrder, e.ID)
		}
		s.entities[e.ID] = e
	}
	return nil
}

// SaveRelationships upserts relationships by ID.
func (s *MemoryStore) SaveRelationships(ctx context.Context, relationships []models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range relationships {
		if _, exists := s.relationships[r.ID]; !exists {
			s.relOrder = append(s.relOrder, r.ID)
		}
		s.relationships[r.ID] = r
	}
	return nil
}

// GetEntity looks up one entity by ID; nil when absent.
func (s *MemoryStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		return &e, nil
	}
	return nil, nil
}

// ListEntities returns stored entities in insertion order, optionally
// filtered by type. A non-positive limit means no limit.
func (s *MemoryStore) ListEntities(ctx context.Context, entityType string, limit int) ([]models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Entity{}
	for _, id := range s.entityOrder {
		e := s.entities[id]
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListRelationships returns stored relationships in insertion order.
func (s *MemoryStore) ListRelationships(ctx context.Context, limit int) ([]models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Relationship{}
	for _, id := range s.relOrder {
		out = append(out, s.relationships[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
