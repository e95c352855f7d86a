package ontology

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/embedding"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/registry"
	AI "github.com/Mimir-AIP/OntoGraph-Go/pipelines/AI"
	"github.com/philippgille/chromem-go"
)

func mockExtractor(t *testing.T) (*OntologyExtractor, *registry.IdentityRegistry) {
	t.Helper()
	mock := AI.NewMockClient(AI.LLMClientConfig{Provider: AI.ProviderMock})
	client := NewExtractionClient([]AI.LLMClient{mock}, 5*time.Second)
	reg := registry.NewIdentityRegistry()
	return NewOntologyExtractor(client, reg, nil, nil), reg
}

func TestExtractInputContract(t *testing.T) {
	extractor, _ := mockExtractor(t)
	ont := testOntology(t)

	t.Run("nil ontology fails fast", func(t *testing.T) {
		_, err := extractor.Extract(context.Background(), "text", nil, "doc-1", ExtractOptions{})
		assert.ErrorIs(t, err, ErrNilOntology)
	})

	t.Run("threshold above one fails fast", func(t *testing.T) {
		_, err := extractor.Extract(context.Background(), "text", ont, "doc-1", ExtractOptions{ConfidenceThreshold: 1.5})
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})

	t.Run("negative threshold fails fast", func(t *testing.T) {
		_, err := extractor.Extract(context.Background(), "text", ont, "doc-1", ExtractOptions{ConfidenceThreshold: -0.1})
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})

	t.Run("empty text yields empty result", func(t *testing.T) {
		result, err := extractor.Extract(context.Background(), "   ", ont, "doc-1", ExtractOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.Entities)
		assert.Empty(t, result.Relationships)
		assert.Empty(t, result.Mentions)
	})

	t.Run("ontology without entity types yields empty result", func(t *testing.T) {
		empty, err := NewDomainOntology("empty", "", nil, nil, nil)
		require.NoError(t, err)
		result, err := extractor.Extract(context.Background(), "Steve Jobs founded Apple.", empty, "doc-1", ExtractOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.Entities)
	})
}

func TestExtractFoundedByScenario(t *testing.T) {
	extractor, _ := mockExtractor(t)
	ont := testOntology(t)

	result, err := extractor.Extract(context.Background(),
		"Apple Inc was founded by Steve Jobs.", ont, "doc-1",
		ExtractOptions{ConfidenceThreshold: 0.5})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Entities)
	assert.Len(t, result.Mentions, len(result.Entities))

	require.NotEmpty(t, result.Relationships, "FOUNDED_BY relationship should survive")
	rel := result.Relationships[0]
	assert.Equal(t, "FOUNDED_BY", rel.RelationshipType)

	nameByID := make(map[string]string)
	for _, e := range result.Entities {
		nameByID[e.ID] = e.CanonicalName
	}
	assert.Equal(t, "Steve Jobs", nameByID[rel.SourceID])
	assert.Equal(t, "Apple Inc", nameByID[rel.TargetID])
	assert.Equal(t, "doc-1", rel.SourceDocument)
}

func TestExtractThresholdProperty(t *testing.T) {
	ont := testOntology(t)
	for _, threshold := range []float64{0.1, 0.5, 0.75, 0.9, 1.0} {
		t.Run(fmt.Sprintf("threshold=%.2f", threshold), func(t *testing.T) {
			extractor, _ := mockExtractor(t)
			result, err := extractor.Extract(context.Background(),
				"Apple Inc was founded by Steve Jobs. Tim Cook works at Apple Inc.", ont, "doc-1",
				ExtractOptions{ConfidenceThreshold: threshold})
			require.NoError(t, err)

			for _, e := range result.Entities {
				assert.GreaterOrEqual(t, e.Confidence, threshold)
			}
			for _, r := range result.Relationships {
				assert.GreaterOrEqual(t, r.Confidence, threshold)
			}
			for _, m := range result.Mentions {
				assert.GreaterOrEqual(t, m.Confidence, threshold)
			}
		})
	}
}

func TestExtractDropsDanglingRelationships(t *testing.T) {
	extractor, _ := mockExtractor(t)
	ont := testOntology(t)

	// The mock scores single-token entities 0.7 and multi-token 0.8, and
	// relationships 0.8. At 0.75 single-token endpoints are filtered while
	// their relationships still clear the bar, so endpoint lookup fails.
	result, err := extractor.Extract(context.Background(),
		"Apple was founded by Steve Jobs.", ont, "doc-1",
		ExtractOptions{ConfidenceThreshold: 0.75})
	require.NoError(t, err)

	assert.Empty(t, result.Relationships)
	assert.Equal(t, 1, result.Metadata.RelationshipsDropped)
	for _, e := range result.Entities {
		assert.Equal(t, "Steve Jobs", e.CanonicalName)
	}
}

func TestExtractNoCapitalizedTokensRoundTrip(t *testing.T) {
	ont, err := NewDomainOntology("d", "",
		[]EntityType{{Name: "A"}, {Name: "B"}}, nil, nil)
	require.NoError(t, err)
	extractor, _ := mockExtractor(t)

	result, err := extractor.Extract(context.Background(),
		"all lowercase words with no names at all.", ont, "doc-1", ExtractOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relationships)
}

func TestExtractResolvesIdentityAcrossCalls(t *testing.T) {
	extractor, reg := mockExtractor(t)
	ont := testOntology(t)

	first, err := extractor.Extract(context.Background(), "Steve Jobs spoke.", ont, "doc-1", ExtractOptions{ConfidenceThreshold: 0.5})
	require.NoError(t, err)
	second, err := extractor.Extract(context.Background(), "Steve Jobs spoke again.", ont, "doc-2", ExtractOptions{ConfidenceThreshold: 0.5})
	require.NoError(t, err)

	require.NotEmpty(t, first.Entities)
	require.NotEmpty(t, second.Entities)
	assert.Equal(t, first.Entities[0].ID, second.Entities[0].ID, "same surface and type resolve to one entity")
	assert.Equal(t, 1, second.Metadata.ResolvedEntities)
	assert.Equal(t, 1, reg.EntityCount())
}

func TestExtractConcurrentSharedRegistry(t *testing.T) {
	extractor, reg := mockExtractor(t)
	ont := testOntology(t)

	// Re-resolutions of the same key mutate the stored entity under the
	// stripe lock while other calls receive their copies; run under -race.
	const goroutines = 8
	results := make([]*ExtractionOutput, goroutines)
	errs := make([]error, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = extractor.Extract(context.Background(),
				"Apple Inc was founded by Steve Jobs.", ont, fmt.Sprintf("doc-%d", n),
				ExtractOptions{ConfidenceThreshold: 0.5})
		}(i)
	}
	wg.Wait()

	idsByName := make(map[string]string)
	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		require.NotEmpty(t, results[i].Entities)
		for _, e := range results[i].Entities {
			if seen, ok := idsByName[e.CanonicalName]; ok {
				assert.Equal(t, seen, e.ID, "all calls resolve %q to one identity", e.CanonicalName)
			} else {
				idsByName[e.CanonicalName] = e.ID
			}
		}
	}
	assert.Equal(t, len(idsByName), reg.EntityCount())
}

func TestExtractMetadata(t *testing.T) {
	extractor, _ := mockExtractor(t)
	ont := testOntology(t)

	result, err := extractor.Extract(context.Background(),
		"Apple Inc was founded by Steve Jobs.", ont, "doc-42",
		ExtractOptions{ConfidenceThreshold: 0.5})
	require.NoError(t, err)

	meta := result.Metadata
	assert.Equal(t, "business", meta.Domain)
	assert.Equal(t, "doc-42", meta.SourceRef)
	assert.Equal(t, string(AI.ProviderMock), meta.Backend)
	assert.False(t, meta.FallbackUsed)
	assert.Equal(t, 0.5, meta.ConfidenceThreshold)
	assert.Equal(t, len(result.Entities), meta.NewEntities)
	assert.Greater(t, meta.EntityCandidates, 0)
}

// brokenEmbedder fails every embedding call.
type brokenEmbedder struct{}

func (b *brokenEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding service down")
}
func (b *brokenEmbedder) GetDimensions() int { return 8 }

func (b *brokenEmbedder) GetProvider() embedding.EmbeddingProvider { return "broken" }
func (b *brokenEmbedder) ToChromemFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding service down")
	}
}

func TestExtractEmbeddingAttachment(t *testing.T) {
	ont := testOntology(t)
	mock := AI.NewMockClient(AI.LLMClientConfig{Provider: AI.ProviderMock})
	client := NewExtractionClient([]AI.LLMClient{mock}, 5*time.Second)

	t.Run("working embedder attaches vectors", func(t *testing.T) {
		extractor := NewOntologyExtractor(client, registry.NewIdentityRegistry(), embedding.NewMockEmbedder(8), nil)
		result, err := extractor.Extract(context.Background(), "Steve Jobs spoke.", ont, "doc-1", ExtractOptions{ConfidenceThreshold: 0.5})
		require.NoError(t, err)
		require.NotEmpty(t, result.Entities)

		vector, ok := result.Entities[0].Attributes["embedding"].([]float32)
		require.True(t, ok)
		assert.Len(t, vector, 8)
		_, placeholder := result.Entities[0].Attributes[models.PlaceholderEmbeddingFlag]
		assert.False(t, placeholder)
	})

	t.Run("failing embedder degrades to tagged placeholder", func(t *testing.T) {
		extractor := NewOntologyExtractor(client, registry.NewIdentityRegistry(), &brokenEmbedder{}, nil)
		result, err := extractor.Extract(context.Background(), "Steve Jobs spoke.", ont, "doc-1", ExtractOptions{ConfidenceThreshold: 0.5})
		require.NoError(t, err, "embedding failure must not fail extraction")
		require.NotEmpty(t, result.Entities)

		vector, ok := result.Entities[0].Attributes["embedding"].([]float32)
		require.True(t, ok)
		assert.Len(t, vector, 8)
		assert.Equal(t, true, result.Entities[0].Attributes[models.PlaceholderEmbeddingFlag])
	})
}

func TestExtractTheoryValidation(t *testing.T) {
	ont := testOntology(t)
	mock := AI.NewMockClient(AI.LLMClientConfig{Provider: AI.ProviderMock})
	client := NewExtractionClient([]AI.LLMClient{mock}, 5*time.Second)

	t.Run("validated entities carry scores", func(t *testing.T) {
		validator := NewTheoryValidator(embedding.NewMockEmbedder(8))
		extractor := NewOntologyExtractor(client, registry.NewIdentityRegistry(), nil, validator)

		result, err := extractor.Extract(context.Background(), "Steve Jobs spoke.", ont, "doc-1",
			ExtractOptions{ConfidenceThreshold: 0.5, TheoryValidation: true})
		require.NoError(t, err)
		require.NotEmpty(t, result.Entities)

		attrs := result.Entities[0].Attributes
		assert.Equal(t, true, attrs["theory_validated"])
		assert.Contains(t, attrs, "theory_validation_score")
		assert.Equal(t, len(result.Entities), result.Metadata.TheoryValidated)
	})

	t.Run("alignment failure marks candidate unvalidated without aborting", func(t *testing.T) {
		validator := NewTheoryValidator(&brokenEmbedder{})
		extractor := NewOntologyExtractor(client, registry.NewIdentityRegistry(), nil, validator)

		result, err := extractor.Extract(context.Background(), "Steve Jobs spoke.", ont, "doc-1",
			ExtractOptions{ConfidenceThreshold: 0.5, TheoryValidation: true})
		require.NoError(t, err)
		require.NotEmpty(t, result.Entities)
		assert.Equal(t, false, result.Entities[0].Attributes["theory_validated"])
		assert.Equal(t, 0, result.Metadata.TheoryValidated)
	})
}
