package embedding

import (
	"context"
	"math"
	"math/rand"

	"github.com/philippgille/chromem-go"
)

// MockEmbedder produces deterministic pseudo-embeddings for testing: the
// same text always yields the same unit-length vector, and different texts
// almost always differ.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder creates a new mock embedder with specified dimensions
func NewMockEmbedder(dimensions int) *MockEmbedder {
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedText creates a deterministic mock embedding for a single text
func (me *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return me.generateEmbedding(text), nil
}

// GetDimensions returns the dimensionality of embeddings
func (me *MockEmbedder) GetDimensions() int {
	return me.dimensions
}

// GetProvider returns the provider name
func (me *MockEmbedder) GetProvider() EmbeddingProvider {
	return ProviderMock
}

// ToChromemFunc converts to a chromem-go EmbeddingFunc
func (me *MockEmbedder) ToChromemFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return me.generateEmbedding(text), nil
	}
}

// generateEmbedding hashes the text into a seed and draws a normalized
// vector from it, so equal inputs map to equal vectors.
func (me *MockEmbedder) generateEmbedding(text string) []float32 {
	var hash int64
	for _, char := range text {
		hash = hash*31 + int64(char)
	}

	seededRand := rand.New(rand.NewSource(hash))
	embedding := make([]float32, me.dimensions)
	for i := range embedding {
		embedding[i] = float32(seededRand.Float64()*2 - 1)
	}

	return normalizeVector(embedding)
}

// normalizeVector scales a vector to unit length (required by chromem-go).
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = val / norm
	}
	return normalized
}
