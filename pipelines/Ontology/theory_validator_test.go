package ontology

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/embedding"
	"github.com/philippgille/chromem-go"
)

func TestValidateUnknownType(t *testing.T) {
	validator := NewTheoryValidator(embedding.NewMockEmbedder(8))
	ont := testOntology(t)

	result, err := validator.Validate(context.Background(), EntityCandidate{
		Text: "Mars", Type: "PLANET", Confidence: 0.9,
	}, ont)
	require.NoError(t, err, "unknown type is a deterministic zero score, not an error")
	assert.False(t, result.IsValid)
	assert.Equal(t, 0.0, result.ValidationScore)
	assert.NotEmpty(t, result.ValidationReasons)
}

func TestValidateKnownType(t *testing.T) {
	validator := NewTheoryValidator(embedding.NewMockEmbedder(8))
	ont := testOntology(t)

	result, err := validator.Validate(context.Background(), EntityCandidate{
		Text: "Steve Jobs", Type: "person", Confidence: 0.9, Context: "A natural person and founder",
	}, ont)
	require.NoError(t, err)
	assert.Equal(t, []string{"business", "PERSON"}, result.ConceptHierarchyPath)
	assert.GreaterOrEqual(t, result.ValidationScore, 0.0)
	assert.LessOrEqual(t, result.ValidationScore, 1.0)
	assert.NotEmpty(t, result.ValidationReasons)
}

func TestValidateAlignmentError(t *testing.T) {
	validator := NewTheoryValidator(&brokenEmbedder{})
	ont := testOntology(t)

	_, err := validator.Validate(context.Background(), EntityCandidate{
		Text: "Steve Jobs", Type: "PERSON", Confidence: 0.9,
	}, ont)
	require.Error(t, err)

	var alignErr *AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, "Steve Jobs", alignErr.EntityText)
	assert.Equal(t, "PERSON", alignErr.Concept)
}

// flakyEmbedder fails a fixed number of leading calls, then delegates to a
// working mock embedder.
type flakyEmbedder struct {
	failures int
	calls    int
	inner    *embedding.MockEmbedder
}

func (f *flakyEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("embedding backend unavailable")
	}
	return f.inner.EmbedText(ctx, text)
}
func (f *flakyEmbedder) GetDimensions() int                       { return f.inner.GetDimensions() }
func (f *flakyEmbedder) GetProvider() embedding.EmbeddingProvider { return "flaky" }
func (f *flakyEmbedder) ToChromemFunc() chromem.EmbeddingFunc     { return f.EmbedText }

func TestValidateRecoversAfterTransientEmbedderFailure(t *testing.T) {
	validator := NewTheoryValidator(&flakyEmbedder{failures: 1, inner: embedding.NewMockEmbedder(8)})
	ont := testOntology(t)
	candidate := EntityCandidate{Text: "Steve Jobs", Type: "PERSON", Confidence: 0.9}

	_, err := validator.Validate(context.Background(), candidate, ont)
	var alignErr *AlignmentError
	require.ErrorAs(t, err, &alignErr, "first attempt hits the outage")

	result, err := validator.Validate(context.Background(), candidate, ont)
	require.NoError(t, err, "a recovered embedder must not stay poisoned for the concept")
	assert.Equal(t, []string{"business", "PERSON"}, result.ConceptHierarchyPath)
}

func TestValidateWithoutEmbedderUsesLexicalFallback(t *testing.T) {
	validator := NewTheoryValidator(nil)
	ont := testOntology(t)

	result, err := validator.Validate(context.Background(), EntityCandidate{
		Text: "Steve Jobs", Type: "PERSON", Confidence: 0.9, Context: "a natural person",
	}, ont)
	require.NoError(t, err)
	assert.Greater(t, result.TheoryAlignment, 0.0, "shared tokens with the concept description should align")
}

func TestValidateContextualAlignment(t *testing.T) {
	ont, err := NewDomainOntology("hr", "",
		[]EntityType{{
			Name:        "employee",
			Description: "A person employed by the organization",
			Attributes:  []string{"job_title", "department"},
		}},
		nil, nil)
	require.NoError(t, err)
	validator := NewTheoryValidator(nil)

	t.Run("attribute hints present", func(t *testing.T) {
		full, err := validator.Validate(context.Background(), EntityCandidate{
			Text: "Jane Doe", Type: "EMPLOYEE",
			Context: "Jane Doe, job title Engineer, department Platform",
		}, ont)
		require.NoError(t, err)

		partial, err := validator.Validate(context.Background(), EntityCandidate{
			Text: "John Doe", Type: "EMPLOYEE",
			Context: "John Doe attended",
		}, ont)
		require.NoError(t, err)

		assert.Greater(t, full.ValidationScore, partial.ValidationScore)
	})

	t.Run("missing hints are reported", func(t *testing.T) {
		result, err := validator.Validate(context.Background(), EntityCandidate{
			Text: "John Doe", Type: "EMPLOYEE", Context: "John Doe attended",
		}, ont)
		require.NoError(t, err)

		found := false
		for _, reason := range result.ValidationReasons {
			if strings.Contains(reason, "job_title") {
				found = true
			}
		}
		assert.True(t, found, "missing attribute hints should be named in reasons")
	})
}
