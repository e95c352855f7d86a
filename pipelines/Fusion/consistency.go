package fusion

import (
	"fmt"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
)

// CalculateKnowledgeConsistency scores a fused knowledge set. Each sub-score
// is 1 minus the observed violation rate for its dimension, and every
// sub-score below 1.0 carries at least one matching entry in
// Inconsistencies. Empty input is vacuously consistent: all scores 1.0.
func (f *FusionEngine) CalculateKnowledgeConsistency(entities []models.Entity, relationships []models.Relationship) models.ConsistencyMetrics {
	metrics := models.ConsistencyMetrics{
		EntityConsistency:       1.0,
		RelationshipConsistency: 1.0,
		TemporalConsistency:     1.0,
		OntologicalCompliance:   1.0,
		Inconsistencies:         []models.Inconsistency{},
	}

	f.scoreEntityConsistency(entities, &metrics)
	f.scoreRelationshipConsistency(relationships, &metrics)
	f.scoreTemporalConsistency(entities, &metrics)
	f.scoreOntologicalCompliance(entities, relationships, &metrics)

	metrics.OverallScore = (metrics.EntityConsistency +
		metrics.RelationshipConsistency +
		metrics.TemporalConsistency +
		metrics.OntologicalCompliance) / 4.0
	return metrics
}

// scoreEntityConsistency estimates the duplicate rate remaining after
// fusion: same-type entity pairs still above the similarity threshold.
func (f *FusionEngine) scoreEntityConsistency(entities []models.Entity, metrics *models.ConsistencyMetrics) {
	if len(entities) < 2 {
		return
	}

	blocks := make(map[string][]models.Entity)
	for _, e := range entities {
		blocks[e.EntityType] = append(blocks[e.EntityType], e)
	}

	duplicated := make(map[string]bool)
	for _, block := range blocks {
		for i := 0; i < len(block); i++ {
			for j := i + 1; j < len(block); j++ {
				similarity := NameSimilarity(block[i].CanonicalName, block[j].CanonicalName)
				if similarity < f.similarityThreshold {
					continue
				}
				duplicated[block[i].ID] = true
				duplicated[block[j].ID] = true
				metrics.Inconsistencies = append(metrics.Inconsistencies, models.Inconsistency{
					Type: models.InconsistencyPotentialDuplicate,
					Details: map[string]any{
						"entity_a":   block[i].CanonicalName,
						"entity_b":   block[j].CanonicalName,
						"similarity": similarity,
					},
				})
			}
		}
	}

	metrics.EntityConsistency = 1.0 - float64(len(duplicated))/float64(len(entities))
}

// scoreRelationshipConsistency flags relationships of a type the ontology
// does not declare, and pairs asserting the same type in both directions
// between the same two entities.
func (f *FusionEngine) scoreRelationshipConsistency(relationships []models.Relationship, metrics *models.ConsistencyMetrics) {
	if len(relationships) == 0 {
		return
	}

	edges := make(map[string]bool)
	for _, rel := range relationships {
		edges[rel.SourceID+"|"+rel.TargetID+"|"+rel.RelationshipType] = true
	}

	violations := 0
	for _, rel := range relationships {
		if f.ontology != nil {
			if _, _, known := f.ontology.LookupRelationshipType(rel.RelationshipType); !known {
				violations++
				metrics.Inconsistencies = append(metrics.Inconsistencies, models.Inconsistency{
					Type: models.InconsistencyConflictingRelationships,
					Details: map[string]any{
						"relationship_id": rel.ID,
						"reason":          fmt.Sprintf("relationship type %q is not declared in the ontology", rel.RelationshipType),
					},
				})
				continue
			}
		}
		if rel.SourceID != rel.TargetID && edges[rel.TargetID+"|"+rel.SourceID+"|"+rel.RelationshipType] {
			violations++
			metrics.Inconsistencies = append(metrics.Inconsistencies, models.Inconsistency{
				Type: models.InconsistencyConflictingRelationships,
				Details: map[string]any{
					"relationship_id": rel.ID,
					"reason":          fmt.Sprintf("%s asserted in both directions between the same entities", rel.RelationshipType),
				},
			})
		}
	}

	metrics.RelationshipConsistency = 1.0 - float64(violations)/float64(len(relationships))
}

// scoreTemporalConsistency flags same-referent entities whose timestamped
// observations disagree on a shared attribute value.
func (f *FusionEngine) scoreTemporalConsistency(entities []models.Entity, metrics *models.ConsistencyMetrics) {
	if len(entities) < 2 {
		return
	}

	groups := make(map[string][]models.Entity)
	for _, e := range entities {
		groups[e.EntityType+"|"+normalizeName(e.CanonicalName)] = append(groups[e.EntityType+"|"+normalizeName(e.CanonicalName)], e)
	}

	conflicted := make(map[string]bool)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.Timestamp == nil || b.Timestamp == nil {
					continue
				}
				key, ok := conflictingAttribute(a.Attributes, b.Attributes)
				if !ok {
					continue
				}
				conflicted[a.ID] = true
				conflicted[b.ID] = true
				metrics.Inconsistencies = append(metrics.Inconsistencies, models.Inconsistency{
					Type: models.InconsistencyTemporal,
					Details: map[string]any{
						"entity":    a.CanonicalName,
						"attribute": key,
						"timestamps": []string{
							a.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
							b.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
						},
					},
				})
			}
		}
	}

	metrics.TemporalConsistency = 1.0 - float64(len(conflicted))/float64(len(entities))
}

// scoreOntologicalCompliance checks each relationship's endpoint entity
// types against the declared source/target constraints. Without an ontology
// the score stays vacuously 1.0.
func (f *FusionEngine) scoreOntologicalCompliance(entities []models.Entity, relationships []models.Relationship, metrics *models.ConsistencyMetrics) {
	if f.ontology == nil || len(relationships) == 0 {
		return
	}

	typeByID := make(map[string]string, len(entities))
	nameByID := make(map[string]string, len(entities))
	for _, e := range entities {
		typeByID[e.ID] = e.EntityType
		nameByID[e.ID] = e.CanonicalName
	}

	compliant := 0
	for _, rel := range relationships {
		sourceType, sourceKnown := typeByID[rel.SourceID]
		targetType, targetKnown := typeByID[rel.TargetID]
		if sourceKnown && targetKnown && f.ontology.CheckEndpointTypes(rel.RelationshipType, sourceType, targetType) {
			compliant++
			continue
		}
		metrics.Inconsistencies = append(metrics.Inconsistencies, models.Inconsistency{
			Type: models.InconsistencyOntologyViolation,
			Details: map[string]any{
				"relationship_type": rel.RelationshipType,
				"source":            nameByID[rel.SourceID],
				"source_type":       sourceType,
				"target":            nameByID[rel.TargetID],
				"target_type":       targetType,
			},
		})
	}

	metrics.OntologicalCompliance = float64(compliant) / float64(len(relationships))
}

// conflictingAttribute returns the first attribute key present in both maps
// with distinct values.
func conflictingAttribute(a, b map[string]any) (string, bool) {
	for key, valueA := range a {
		if key == models.FusionEvidenceKey {
			continue
		}
		valueB, shared := b[key]
		if !shared {
			continue
		}
		if fmt.Sprintf("%v", valueA) != fmt.Sprintf("%v", valueB) {
			return key, true
		}
	}
	return "", false
}
