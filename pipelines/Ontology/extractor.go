package ontology

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/embedding"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/registry"
	"github.com/Mimir-AIP/OntoGraph-Go/utils"
)

// DefaultConfidenceThreshold is applied when ExtractOptions leaves the
// threshold unset.
const DefaultConfidenceThreshold = 0.7

// ExtractOptions tunes a single extraction call.
type ExtractOptions struct {
	// ConfidenceThreshold drops candidates strictly below it. Zero means
	// "use the default"; pass a small positive value to accept everything.
	ConfidenceThreshold float64

	// TheoryValidation scores each accepted entity against the ontology's
	// concept hierarchy.
	TheoryValidation bool
}

// OntologyExtractor orchestrates candidate extraction, threshold filtering,
// mention creation, and identity resolution into validated extraction
// output. Entities and mentions it creates land in the shared identity
// registry, so concurrent extractions sharing a registry observe each
// other's entities.
type OntologyExtractor struct {
	client    *ExtractionClient
	registry  *registry.IdentityRegistry
	embedder  embedding.EmbeddingService
	validator *TheoryValidator
	logger    *utils.Logger
}

// NewOntologyExtractor creates an extractor. The embedder and validator are
// optional; nil disables embedding attachment and theory validation
// respectively.
func NewOntologyExtractor(client *ExtractionClient, reg *registry.IdentityRegistry, embedder embedding.EmbeddingService, validator *TheoryValidator) *OntologyExtractor {
	return &OntologyExtractor{
		client:    client,
		registry:  reg,
		embedder:  embedder,
		validator: validator,
		logger:    utils.GetLogger(),
	}
}

// Extract runs the full pipeline over one text unit. Empty text and
// ontologies without entity types yield an empty result; only a nil
// ontology or an out-of-range threshold is a hard error.
func (e *OntologyExtractor) Extract(ctx context.Context, text string, ont *DomainOntology, sourceRef string, opts ExtractOptions) (*ExtractionOutput, error) {
	if ont == nil {
		return nil, ErrNilOntology
	}
	threshold := opts.ConfidenceThreshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, ErrInvalidThreshold
	}

	started := time.Now()
	output := &ExtractionOutput{
		Entities:      []models.Entity{},
		Relationships: []models.Relationship{},
		Mentions:      []models.Mention{},
		Metadata: ExtractionMetadata{
			Domain:              ont.DomainName,
			SourceRef:           sourceRef,
			ConfidenceThreshold: threshold,
		},
	}

	if strings.TrimSpace(text) == "" || !ont.HasEntityTypes() {
		output.Metadata.Elapsed = time.Since(started)
		return output, nil
	}

	candidates, backend := e.client.ExtractCandidates(ctx, text, ont)
	output.Metadata.Backend = backend
	output.Metadata.FallbackUsed = backend == "pattern_fallback"
	output.Metadata.EntityCandidates = len(candidates.Entities)
	output.Metadata.RelationshipCandidates = len(candidates.Relationships)

	entityBySurface := make(map[string]*models.Entity)
	seenEntityIDs := make(map[string]bool)

	for _, candidate := range candidates.Entities {
		if candidate.Confidence < threshold {
			output.Metadata.EntitiesFiltered++
			continue
		}
		validated, _, known := ont.LookupEntityType(candidate.Type)
		if !known {
			output.Metadata.EntitiesFiltered++
			continue
		}

		start, end := mentionOffsets(text, candidate.Text)
		mention := e.registry.CreateMention(candidate.Text, start, end, sourceRef, validated.Name(), candidate.Context, candidate.Confidence)

		entity, created := e.registry.FindOrCreateEntity(candidate.Text, validated.Name(), candidate.Context, candidate.Confidence)
		e.registry.LinkMentionToEntity(mention.ID, entity.ID)
		mention.EntityID = entity.ID

		if created {
			output.Metadata.NewEntities++
		} else {
			output.Metadata.ResolvedEntities++
		}

		// The registry hands back private copies, so per-call attributes
		// go straight on them without racing concurrent resolutions.
		if opts.TheoryValidation && e.validator != nil {
			e.applyTheoryValidation(ctx, &entity, candidate, ont, &output.Metadata)
		}

		entityBySurface[candidate.Text] = &entity
		output.Mentions = append(output.Mentions, mention)
		if !seenEntityIDs[entity.ID] {
			seenEntityIDs[entity.ID] = true
			output.Entities = append(output.Entities, entity)
		}
	}

	for _, candidate := range candidates.Relationships {
		if candidate.Confidence < threshold {
			output.Metadata.RelationshipsFiltered++
			continue
		}
		validated, _, known := ont.LookupRelationshipType(candidate.Relation)
		if !known {
			output.Metadata.RelationshipsFiltered++
			continue
		}
		source, sourceOK := entityBySurface[candidate.Source]
		target, targetOK := entityBySurface[candidate.Target]
		if !sourceOK || !targetOK {
			// Expected when an endpoint was filtered out; not an error.
			output.Metadata.RelationshipsDropped++
			continue
		}

		now := time.Now()
		relationship := models.Relationship{
			ID:               uuid.NewString(),
			SourceID:         source.ID,
			TargetID:         target.ID,
			RelationshipType: validated.Name(),
			Confidence:       candidate.Confidence,
			SourceDocument:   sourceRef,
			Timestamp:        &now,
		}
		if candidate.Context != "" {
			relationship.Attributes = map[string]any{"context": candidate.Context}
		}
		output.Relationships = append(output.Relationships, relationship)
	}

	if e.embedder != nil {
		e.attachEmbeddings(ctx, output)
	}

	output.Metadata.Elapsed = time.Since(started)
	e.logger.Debug("extraction completed",
		utils.Component("extraction"),
		utils.String("domain", ont.DomainName),
		utils.String("backend", backend),
		utils.Int("entities", len(output.Entities)),
		utils.Int("relationships", len(output.Relationships)))
	return output, nil
}

// applyTheoryValidation scores one entity against the concept hierarchy.
// Alignment errors mark the single entity unvalidated; they never abort
// the batch.
func (e *OntologyExtractor) applyTheoryValidation(ctx context.Context, entity *models.Entity, candidate EntityCandidate, ont *DomainOntology, meta *ExtractionMetadata) {
	result, err := e.validator.Validate(ctx, candidate, ont)
	if err != nil {
		e.logger.Warn("theory validation unavailable for candidate",
			utils.Component("extraction"),
			utils.String("entity", candidate.Text),
			utils.Error(err))
		entity.Attributes["theory_validated"] = false
		return
	}
	entity.Attributes["theory_validated"] = true
	entity.Attributes["theory_validation_score"] = result.ValidationScore
	entity.Attributes["theory_is_valid"] = result.IsValid
	meta.TheoryValidated++
}

// attachEmbeddings adds a semantic embedding to each entity's attributes.
// Best-effort: an embedding failure degrades to a tagged placeholder
// vector, never to a failed extraction.
func (e *OntologyExtractor) attachEmbeddings(ctx context.Context, output *ExtractionOutput) {
	for i := range output.Entities {
		entity := &output.Entities[i]
		text := entity.CanonicalName
		if ctxStr, ok := entity.Attributes["context"].(string); ok && ctxStr != "" {
			text += " " + ctxStr
		}

		vector, err := e.embedder.EmbedText(ctx, text)
		if err != nil {
			e.logger.Warn("embedding failed, attaching placeholder",
				utils.Component("extraction"),
				utils.String("entity", entity.CanonicalName),
				utils.Error(err))
			vector = embedding.Placeholder(e.embedder.GetDimensions())
			entity.Attributes[models.PlaceholderEmbeddingFlag] = true
		}
		entity.Attributes["embedding"] = vector
	}
}

// mentionOffsets locates the first occurrence of a surface form in the
// text. Best-effort character offsets; (0, 0) when the surface form was
// paraphrased by the backend and cannot be located.
func mentionOffsets(text, surface string) (int, int) {
	idx := strings.Index(text, surface)
	if idx < 0 {
		idx = strings.Index(strings.ToLower(text), strings.ToLower(surface))
	}
	if idx < 0 {
		return 0, 0
	}
	return idx, idx + len(surface)
}
