package fusion

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
	ontology "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Ontology"
	"github.com/Mimir-AIP/OntoGraph-Go/utils"
)

// ConflictStrategy selects how attribute conflicts inside an entity cluster
// are resolved.
type ConflictStrategy string

const (
	// StrategyEvidenceBased unions attributes across the cluster with
	// majority voting per key, ties broken by the highest-confidence source.
	StrategyEvidenceBased ConflictStrategy = "evidence_based"

	// StrategyConfidenceWeighted takes every attribute from the single
	// highest-confidence cluster member.
	StrategyConfidenceWeighted ConflictStrategy = "confidence_weighted"

	// StrategyTemporalPriority takes the cluster member with the most recent
	// timestamp; members without timestamps are treated as oldest.
	StrategyTemporalPriority ConflictStrategy = "temporal_priority"
)

// DefaultSimilarityThreshold is the clustering threshold used when the
// engine config leaves it unset.
const DefaultSimilarityThreshold = 0.85

// FusionResult is the outcome of one fusion run.
type FusionResult struct {
	Entities      []models.Entity           `json:"entities"`
	Relationships []models.Relationship     `json:"relationships"`
	Metrics       models.ConsistencyMetrics `json:"metrics"`

	// Aliases maps each merged-away entity ID to its surviving canonical
	// ID. Callers holding old IDs must treat them as tombstoned.
	Aliases map[string]string `json:"aliases,omitempty"`
}

// FusionEngine deduplicates and reconciles entities and relationships
// extracted independently from many documents. It operates on a
// caller-supplied snapshot and holds no cross-call mutable state, so one
// engine may serve concurrent fusion runs.
type FusionEngine struct {
	similarityThreshold float64
	ontology            *ontology.DomainOntology
	logger              *utils.Logger
}

// NewFusionEngine creates an engine. A zero threshold selects the default;
// the ontology is optional and only drives consistency scoring.
func NewFusionEngine(similarityThreshold float64, ont *ontology.DomainOntology) *FusionEngine {
	if similarityThreshold == 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	return &FusionEngine{
		similarityThreshold: similarityThreshold,
		ontology:            ont,
		logger:              utils.GetLogger(),
	}
}

// Fuse runs the full pipeline: cluster near-duplicate entities, resolve one
// canonical entity per cluster, remap relationship endpoints, merge
// relationship duplicates, and score the result. Empty input yields a valid
// vacuously-consistent result, not an error.
func (f *FusionEngine) Fuse(entities []models.Entity, relationships []models.Relationship, strategy ConflictStrategy) (*FusionResult, error) {
	switch strategy {
	case "":
		strategy = StrategyEvidenceBased
	case StrategyEvidenceBased, StrategyConfidenceWeighted, StrategyTemporalPriority:
	default:
		return nil, fmt.Errorf("unknown conflict resolution strategy %q", strategy)
	}

	clusters := f.FindEntityClusters(entities)

	resolved := make([]models.Entity, 0, len(clusters))
	aliases := make(map[string]string)
	for _, cluster := range clusters {
		entity := f.resolveCluster(cluster, strategy)
		for _, member := range cluster.Entities {
			if member.ID != entity.ID {
				aliases[member.ID] = entity.ID
			}
		}
		resolved = append(resolved, entity)
	}

	remapped := f.remapRelationships(relationships, aliases)

	metrics := f.CalculateKnowledgeConsistency(resolved, remapped)

	f.logger.Info("fusion completed",
		utils.Component("fusion"),
		utils.String("strategy", string(strategy)),
		utils.Int("input_entities", len(entities)),
		utils.Int("resolved_entities", len(resolved)),
		utils.Int("merged_away", len(aliases)),
		utils.Float("overall_consistency", metrics.OverallScore))

	return &FusionResult{
		Entities:      resolved,
		Relationships: remapped,
		Metrics:       metrics,
		Aliases:       aliases,
	}, nil
}

// FindEntityClusters groups entities into candidate-duplicate clusters.
// Entities are blocked by type before any similarity comparison, so the
// pairwise work stays bounded by the largest type block rather than the
// whole input.
func (f *FusionEngine) FindEntityClusters(entities []models.Entity) []models.EntityCluster {
	blocks := make(map[string][]models.Entity)
	var blockOrder []string
	for _, e := range entities {
		if _, seen := blocks[e.EntityType]; !seen {
			blockOrder = append(blockOrder, e.EntityType)
		}
		blocks[e.EntityType] = append(blocks[e.EntityType], e)
	}

	var clusters []models.EntityCluster
	for _, entityType := range blockOrder {
		for _, entity := range blocks[entityType] {
			placed := false
			for i := range clusters {
				cluster := &clusters[i]
				if cluster.Entities[0].EntityType != entityType {
					continue
				}
				if NameSimilarity(entity.CanonicalName, cluster.Entities[0].CanonicalName) >= f.similarityThreshold {
					cluster.Entities = append(cluster.Entities, entity)
					placed = true
					break
				}
			}
			if !placed {
				clusters = append(clusters, models.EntityCluster{
					ClusterID: uuid.NewString(),
					Entities:  []models.Entity{entity},
				})
			}
		}
	}
	return clusters
}

// resolveCluster produces one canonical entity per cluster. Singleton
// clusters pass through untouched, which keeps fusion idempotent on an
// already-deduplicated set.
func (f *FusionEngine) resolveCluster(cluster models.EntityCluster, strategy ConflictStrategy) models.Entity {
	if len(cluster.Entities) == 1 {
		return cluster.Entities[0]
	}

	switch strategy {
	case StrategyConfidenceWeighted:
		return f.resolveByConfidence(cluster)
	case StrategyTemporalPriority:
		return f.resolveByRecency(cluster)
	default:
		return f.resolveByEvidence(cluster)
	}
}

// resolveByEvidence unions attributes with per-key majority voting, ties
// broken by the highest-confidence contributor. Result confidence is the
// mean of the cluster's confidences.
func (f *FusionEngine) resolveByEvidence(cluster models.EntityCluster) models.Entity {
	base := highestConfidenceMember(cluster.Entities)
	resolved := base
	resolved.Attributes = make(map[string]any)

	// Gather every (key, value, confidence) observation across the cluster.
	type observation struct {
		value      any
		confidence float64
	}
	observations := make(map[string][]observation)
	var keyOrder []string
	for _, member := range cluster.Entities {
		for key, value := range member.Attributes {
			if key == models.FusionEvidenceKey {
				continue
			}
			if _, seen := observations[key]; !seen {
				keyOrder = append(keyOrder, key)
			}
			observations[key] = append(observations[key], observation{value: value, confidence: member.Confidence})
		}
	}
	sort.Strings(keyOrder)

	conflicts := 0
	for _, key := range keyOrder {
		votes := make(map[string]int)
		bestByValue := make(map[string]observation)
		for _, obs := range observations[key] {
			repr := fmt.Sprintf("%v", obs.value)
			votes[repr]++
			if prev, ok := bestByValue[repr]; !ok || obs.confidence > prev.confidence {
				bestByValue[repr] = obs
			}
		}
		if len(votes) > 1 {
			conflicts++
		}

		var winner string
		for repr, count := range votes {
			if winner == "" {
				winner = repr
				continue
			}
			switch {
			case count > votes[winner]:
				winner = repr
			case count == votes[winner] && bestByValue[repr].confidence > bestByValue[winner].confidence:
				winner = repr
			}
		}
		resolved.Attributes[key] = bestByValue[winner].value
	}

	var sum float64
	names := make([]string, 0, len(cluster.Entities))
	mergedFrom := make([]string, 0, len(cluster.Entities))
	for _, member := range cluster.Entities {
		sum += member.Confidence
		names = append(names, member.CanonicalName)
		mergedFrom = append(mergedFrom, member.ID)
	}
	resolved.Confidence = sum / float64(len(cluster.Entities))

	mergedAttributes := make(map[string]any, len(resolved.Attributes))
	for k, v := range resolved.Attributes {
		mergedAttributes[k] = v
	}
	resolved.Attributes[models.FusionEvidenceKey] = map[string]any{
		"strategy":           string(StrategyEvidenceBased),
		"merged_from":        mergedFrom,
		"source_names":       names,
		"merged_attributes":  mergedAttributes,
		"conflicts_resolved": conflicts,
		"evidence_count":     len(cluster.Entities),
	}
	return resolved
}

// resolveByConfidence takes the highest-confidence member wholesale.
func (f *FusionEngine) resolveByConfidence(cluster models.EntityCluster) models.Entity {
	resolved := highestConfidenceMember(cluster.Entities)
	resolved.Attributes = cloneAttributes(resolved.Attributes)
	resolved.Attributes[models.FusionEvidenceKey] = map[string]any{
		"strategy":       string(StrategyConfidenceWeighted),
		"merged_from":    memberIDs(cluster.Entities),
		"source_names":   memberNames(cluster.Entities),
		"evidence_count": len(cluster.Entities),
	}
	return resolved
}

// resolveByRecency takes the member with the most recent timestamp.
func (f *FusionEngine) resolveByRecency(cluster models.EntityCluster) models.Entity {
	resolved := cluster.Entities[0]
	for _, member := range cluster.Entities[1:] {
		if member.Timestamp == nil {
			continue
		}
		if resolved.Timestamp == nil || member.Timestamp.After(*resolved.Timestamp) {
			resolved = member
		}
	}
	resolved.Attributes = cloneAttributes(resolved.Attributes)
	resolved.Attributes[models.FusionEvidenceKey] = map[string]any{
		"strategy":       string(StrategyTemporalPriority),
		"merged_from":    memberIDs(cluster.Entities),
		"source_names":   memberNames(cluster.Entities),
		"evidence_count": len(cluster.Entities),
	}
	return resolved
}

// remapRelationships rewrites endpoints through the alias map and merges
// relationships that became identical (same source, target, and type).
func (f *FusionEngine) remapRelationships(relationships []models.Relationship, aliases map[string]string) []models.Relationship {
	groups := make(map[string][]models.Relationship)
	var groupOrder []string
	for _, rel := range relationships {
		if canonical, ok := aliases[rel.SourceID]; ok {
			rel.SourceID = canonical
		}
		if canonical, ok := aliases[rel.TargetID]; ok {
			rel.TargetID = canonical
		}
		key := rel.SourceID + "|" + rel.TargetID + "|" + rel.RelationshipType
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], rel)
	}

	merged := make([]models.Relationship, 0, len(groupOrder))
	for _, key := range groupOrder {
		group := groups[key]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		merged = append(merged, MergeRelationshipEvidence(group))
	}
	return merged
}

// MergeRelationshipEvidence merges relationships that share (source, target,
// type) into one. Confidence is the mean of the merged set; the evidence
// attribute records the count and the full confidence distribution.
func MergeRelationshipEvidence(relationships []models.Relationship) models.Relationship {
	if len(relationships) == 0 {
		return models.Relationship{}
	}

	merged := relationships[0]
	merged.Attributes = cloneAttributes(merged.Attributes)

	var sum float64
	distribution := make([]float64, 0, len(relationships))
	var sourceDocuments []string
	seenDocs := make(map[string]bool)
	for _, rel := range relationships {
		sum += rel.Confidence
		distribution = append(distribution, rel.Confidence)
		if rel.SourceDocument != "" && !seenDocs[rel.SourceDocument] {
			seenDocs[rel.SourceDocument] = true
			sourceDocuments = append(sourceDocuments, rel.SourceDocument)
		}
		for key, value := range rel.Attributes {
			if key == models.FusionEvidenceKey {
				continue
			}
			if _, exists := merged.Attributes[key]; !exists {
				merged.Attributes[key] = value
			}
		}
	}
	merged.Confidence = sum / float64(len(relationships))

	evidence := map[string]any{
		"evidence_count":          len(relationships),
		"confidence_distribution": distribution,
	}
	if len(sourceDocuments) > 0 {
		evidence["source_documents"] = sourceDocuments
	}
	merged.Attributes[models.FusionEvidenceKey] = evidence
	return merged
}

func highestConfidenceMember(entities []models.Entity) models.Entity {
	best := entities[0]
	for _, e := range entities[1:] {
		if e.Confidence > best.Confidence {
			best = e
		}
	}
	return best
}

func memberIDs(entities []models.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

func memberNames(entities []models.Entity) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.CanonicalName
	}
	return names
}

func cloneAttributes(attrs map[string]any) map[string]any {
	clone := make(map[string]any, len(attrs))
	for k, v := range attrs {
		clone[k] = v
	}
	return clone
}
