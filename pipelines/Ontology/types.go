package ontology

import (
	"errors"
	"fmt"
	"time"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
)

// EntityCandidate is a raw extraction candidate before threshold filtering
// and identity resolution. All extraction backends return this shape.
type EntityCandidate struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

// RelationshipCandidate is a raw relationship candidate; Source and Target
// refer to entity candidates by their original surface text.
type RelationshipCandidate struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Relation   string  `json:"relation"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

// RawCandidates is the uniform output of every extraction backend.
type RawCandidates struct {
	Entities      []EntityCandidate      `json:"entities"`
	Relationships []RelationshipCandidate `json:"relationships"`
}

// ExtractionMetadata reports what happened during one extraction call.
// Filter and drop counters are observability data, not errors.
type ExtractionMetadata struct {
	Domain                string        `json:"domain"`
	SourceRef             string        `json:"source_ref"`
	Backend               string        `json:"backend"`
	FallbackUsed          bool          `json:"fallback_used"`
	ConfidenceThreshold   float64       `json:"confidence_threshold"`
	EntityCandidates      int           `json:"entity_candidates"`
	EntitiesFiltered      int           `json:"entities_filtered"`
	RelationshipCandidates int          `json:"relationship_candidates"`
	RelationshipsFiltered int           `json:"relationships_filtered"`
	RelationshipsDropped  int           `json:"relationships_dropped"`
	NewEntities           int           `json:"new_entities"`
	ResolvedEntities      int           `json:"resolved_entities"`
	TheoryValidated       int           `json:"theory_validated"`
	Elapsed               time.Duration `json:"elapsed"`
}

// ExtractionOutput is the structured result of one extraction call.
type ExtractionOutput struct {
	Entities      []models.Entity       `json:"entities"`
	Relationships []models.Relationship `json:"relationships"`
	Mentions      []models.Mention      `json:"mentions"`
	Metadata      ExtractionMetadata    `json:"metadata"`
}

// TheoryValidationResult reports how well an entity candidate aligns with
// the ontology's concept hierarchy.
type TheoryValidationResult struct {
	EntityID             string   `json:"entity_id"`
	IsValid              bool     `json:"is_valid"`
	ValidationScore      float64  `json:"validation_score"`
	TheoryAlignment      float64  `json:"theory_alignment"`
	ConceptHierarchyPath []string `json:"concept_hierarchy_path"`
	ValidationReasons    []string `json:"validation_reasons"`
}

// Input-contract errors. These are the only hard failures Extract raises;
// everything else degrades to a structured (possibly empty) result.
var (
	ErrNilOntology      = errors.New("ontology is required")
	ErrInvalidThreshold = errors.New("confidence threshold must be in [0,1]")
)

// AlignmentError is raised by the theory validator when semantic alignment
// cannot be computed (typically a missing embedding). Callers treat the
// single affected candidate as unvalidated rather than failing the batch.
type AlignmentError struct {
	EntityText string
	Concept    string
	Err        error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("semantic alignment failed for %q against concept %q: %v", e.EntityText, e.Concept, e.Err)
}

func (e *AlignmentError) Unwrap() error {
	return e.Err
}
