package ontology

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/embedding"
	"github.com/Mimir-AIP/OntoGraph-Go/utils"
)

// Validation score weights and acceptance threshold.
const (
	semanticAlignmentWeight   = 0.6
	contextualAlignmentWeight = 0.4
	validationAcceptThreshold = 0.5
)

// conceptNode is one entry in the validator's concept hierarchy: an entity
// type annotated with the validation signals derived from its declaration.
type conceptNode struct {
	name               string
	description        string
	expectedAttributes []string
	examples           []string

	// Only successful embeddings are cached; a failed attempt is retried on
	// the next candidate so one transient embedder error cannot poison the
	// concept for the validator's lifetime.
	embedMu   sync.Mutex
	embedding []float32
}

// conceptEmbedding returns the cached embedding of the concept text,
// computing it on first successful call.
func (c *conceptNode) conceptEmbedding(ctx context.Context, embedder embedding.EmbeddingService, conceptText string) ([]float32, error) {
	c.embedMu.Lock()
	defer c.embedMu.Unlock()

	if c.embedding != nil {
		return c.embedding, nil
	}
	vector, err := embedder.EmbedText(ctx, conceptText)
	if err != nil {
		return nil, err
	}
	c.embedding = vector
	return vector, nil
}

// conceptHierarchy is the per-ontology validation structure: the domain as
// root, one concept node per declared entity type.
type conceptHierarchy struct {
	domainName string
	concepts   map[string]*conceptNode
}

// TheoryValidator scores entity candidates against an ontology's concept
// hierarchy. The hierarchy is built once per ontology and cached by domain
// name; embeddings of concept descriptions are computed lazily.
type TheoryValidator struct {
	embedder embedding.EmbeddingService
	logger   *utils.Logger

	mu          sync.Mutex
	hierarchies map[string]*conceptHierarchy
}

// NewTheoryValidator creates a validator. A nil embedder degrades semantic
// alignment to lexical token overlap instead of raising alignment errors.
func NewTheoryValidator(embedder embedding.EmbeddingService) *TheoryValidator {
	return &TheoryValidator{
		embedder:    embedder,
		logger:      utils.GetLogger(),
		hierarchies: make(map[string]*conceptHierarchy),
	}
}

// Validate scores one candidate. Unknown entity types deterministically
// score 0 with is_valid=false and no error; an embedding failure returns an
// *AlignmentError so the caller can treat the single candidate as
// unvalidated.
func (v *TheoryValidator) Validate(ctx context.Context, candidate EntityCandidate, ont *DomainOntology) (*TheoryValidationResult, error) {
	if ont == nil {
		return nil, ErrNilOntology
	}

	hierarchy := v.hierarchyFor(ont)
	concept, known := hierarchy.concepts[NormalizeTypeName(candidate.Type)]
	if !known {
		return &TheoryValidationResult{
			IsValid:           false,
			ValidationScore:   0,
			TheoryAlignment:   0,
			ValidationReasons: []string{fmt.Sprintf("entity type %q is not declared in ontology %q", candidate.Type, ont.DomainName)},
		}, nil
	}

	semantic, err := v.semanticAlignment(ctx, candidate, concept)
	if err != nil {
		return nil, &AlignmentError{EntityText: candidate.Text, Concept: concept.name, Err: err}
	}
	contextual, contextualReasons := v.contextualAlignment(candidate, concept)

	score := semanticAlignmentWeight*semantic + contextualAlignmentWeight*contextual
	result := &TheoryValidationResult{
		IsValid:              score >= validationAcceptThreshold,
		ValidationScore:      score,
		TheoryAlignment:      semantic,
		ConceptHierarchyPath: []string{hierarchy.domainName, concept.name},
		ValidationReasons: append([]string{
			fmt.Sprintf("semantic alignment with %q: %.2f", concept.name, semantic),
		}, contextualReasons...),
	}
	return result, nil
}

// hierarchyFor returns the cached concept hierarchy for an ontology,
// building it on first use.
func (v *TheoryValidator) hierarchyFor(ont *DomainOntology) *conceptHierarchy {
	v.mu.Lock()
	defer v.mu.Unlock()

	if h, ok := v.hierarchies[ont.DomainName]; ok {
		return h
	}

	h := &conceptHierarchy{
		domainName: ont.DomainName,
		concepts:   make(map[string]*conceptNode, len(ont.EntityTypes)),
	}
	for _, et := range ont.EntityTypes {
		h.concepts[et.Name] = &conceptNode{
			name:               et.Name,
			description:        et.Description,
			expectedAttributes: et.Attributes,
			examples:           et.Examples,
		}
	}
	v.hierarchies[ont.DomainName] = h
	return h
}

// semanticAlignment scores how close the candidate's text+context is to the
// concept's description. With an embedder this is cosine similarity clamped
// to [0,1]; without one it falls back to lexical token overlap.
func (v *TheoryValidator) semanticAlignment(ctx context.Context, candidate EntityCandidate, concept *conceptNode) (float64, error) {
	candidateText := candidate.Text
	if candidate.Context != "" {
		candidateText += " " + candidate.Context
	}
	conceptText := concept.description
	if conceptText == "" {
		conceptText = concept.name
	}
	if len(concept.examples) > 0 {
		conceptText += " " + strings.Join(concept.examples, " ")
	}

	if v.embedder == nil {
		return tokenOverlap(candidateText, conceptText), nil
	}

	conceptVec, err := concept.conceptEmbedding(ctx, v.embedder, conceptText)
	if err != nil {
		return 0, fmt.Errorf("embedding concept description: %w", err)
	}

	candidateVec, err := v.embedder.EmbedText(ctx, candidateText)
	if err != nil {
		return 0, fmt.Errorf("embedding candidate text: %w", err)
	}

	similarity := embedding.CosineSimilarity(candidateVec, conceptVec)
	if similarity < 0 {
		similarity = 0
	}
	return similarity, nil
}

// contextualAlignment checks the candidate's context against the concept's
// expected attribute keys. A concept without declared attributes imposes no
// contextual constraint.
func (v *TheoryValidator) contextualAlignment(candidate EntityCandidate, concept *conceptNode) (float64, []string) {
	if len(concept.expectedAttributes) == 0 {
		return 1.0, nil
	}

	contextLower := strings.ToLower(candidate.Text + " " + candidate.Context)
	matched := 0
	var missing []string
	for _, attr := range concept.expectedAttributes {
		keyword := strings.ToLower(strings.ReplaceAll(attr, "_", " "))
		if strings.Contains(contextLower, keyword) {
			matched++
		} else {
			missing = append(missing, attr)
		}
	}

	score := float64(matched) / float64(len(concept.expectedAttributes))
	var reasons []string
	if len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf("expected attribute hints not found in context: %s", strings.Join(missing, ", ")))
	}
	return score, reasons
}

// tokenOverlap is the lexical fallback similarity: Jaccard overlap of the
// lowercased token sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(s)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if token != "" {
			set[token] = true
		}
	}
	return set
}
