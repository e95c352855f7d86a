package models

import (
	"time"
)

// Entity represents a canonical entity resolved from one or more mentions.
// The identity registry assigns IDs; the fusion engine may later merge an
// entity into another, in which case the old ID becomes a tombstoned alias.
type Entity struct {
	ID            string         `json:"id"`
	CanonicalName string         `json:"canonical_name"`
	EntityType    string         `json:"entity_type"`
	Confidence    float64        `json:"confidence"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Timestamp     *time.Time     `json:"timestamp,omitempty"`
}

// Relationship represents a typed, directed edge between two entities.
type Relationship struct {
	ID               string         `json:"id"`
	SourceID         string         `json:"source_id"`
	TargetID         string         `json:"target_id"`
	RelationshipType string         `json:"relationship_type"`
	Confidence       float64        `json:"confidence"`
	Attributes       map[string]any `json:"attributes,omitempty"`
	SourceDocument   string         `json:"source_document,omitempty"`
	Timestamp        *time.Time     `json:"timestamp,omitempty"`
}

// Mention represents one observed occurrence of a surface form in a text
// unit. Offsets are best-effort character positions, not guaranteed to
// align with any particular tokenization.
type Mention struct {
	ID             string  `json:"id"`
	SurfaceForm    string  `json:"surface_form"`
	NormalizedForm string  `json:"normalized_form"`
	StartPos       int     `json:"start_pos"`
	EndPos         int     `json:"end_pos"`
	SourceRef      string  `json:"source_ref"`
	Confidence     float64 `json:"confidence"`
	EntityType     string  `json:"entity_type"`
	Context        string  `json:"context,omitempty"`
	EntityID       string  `json:"entity_id,omitempty"`
}

// EntityCluster groups entities believed to denote the same real-world
// referent. Clusters are ephemeral: produced during a single fusion run and
// consumed to yield one resolved entity each.
type EntityCluster struct {
	ClusterID string   `json:"cluster_id"`
	Entities  []Entity `json:"entities"`
}

// Inconsistency describes one detected problem in a fused knowledge set.
type Inconsistency struct {
	Type    string         `json:"type"`
	Details map[string]any `json:"details,omitempty"`
}

// Inconsistency type constants
const (
	InconsistencyPotentialDuplicate       = "potential_duplicate"
	InconsistencyConflictingRelationships = "conflicting_relationships"
	InconsistencyTemporal                 = "temporal_inconsistency"
	InconsistencyOntologyViolation        = "ontology_violation"
)

// ConsistencyMetrics is a snapshot report over a fused knowledge set.
// Every sub-score below 1.0 is accompanied by at least one matching entry
// in Inconsistencies.
type ConsistencyMetrics struct {
	EntityConsistency       float64         `json:"entity_consistency"`
	RelationshipConsistency float64         `json:"relationship_consistency"`
	TemporalConsistency     float64         `json:"temporal_consistency"`
	OntologicalCompliance   float64         `json:"ontological_compliance"`
	OverallScore            float64         `json:"overall_score"`
	Inconsistencies         []Inconsistency `json:"inconsistencies"`
}

// FusionEvidenceKey is the attribute key under which the fusion engine
// records merge provenance on resolved entities and relationships.
const FusionEvidenceKey = "_fusion_evidence"

// PlaceholderEmbeddingFlag marks an embedding attribute as non-semantic,
// produced because the embedding capability was unavailable.
const PlaceholderEmbeddingFlag = "embedding_placeholder"
