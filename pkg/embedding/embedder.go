package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/philippgille/chromem-go"
)

// EmbeddingProvider identifies the backing embedding capability
type EmbeddingProvider string

const (
	ProviderOpenAI EmbeddingProvider = "openai"
	ProviderMock   EmbeddingProvider = "mock"
)

// EmbeddingService produces vector embeddings for text. Implementations
// wrap a chromem-go EmbeddingFunc so the same function can drive both
// direct embedding and collection indexing.
type EmbeddingService interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	GetDimensions() int
	GetProvider() EmbeddingProvider
	ToChromemFunc() chromem.EmbeddingFunc
}

// ChromemEmbedder adapts any chromem-go EmbeddingFunc to EmbeddingService.
type ChromemEmbedder struct {
	fn         chromem.EmbeddingFunc
	dimensions int
	provider   EmbeddingProvider
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(apiKey string) (*ChromemEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for embeddings")
	}
	return &ChromemEmbedder{
		fn:         chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small),
		dimensions: 1536,
		provider:   ProviderOpenAI,
	}, nil
}

// NewChromemEmbedder wraps an arbitrary embedding function.
func NewChromemEmbedder(fn chromem.EmbeddingFunc, dimensions int, provider EmbeddingProvider) *ChromemEmbedder {
	return &ChromemEmbedder{fn: fn, dimensions: dimensions, provider: provider}
}

// EmbedText embeds a single text
func (e *ChromemEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.fn(ctx, text)
}

// GetDimensions returns the dimensionality of embeddings
func (e *ChromemEmbedder) GetDimensions() int {
	return e.dimensions
}

// GetProvider returns the provider name
func (e *ChromemEmbedder) GetProvider() EmbeddingProvider {
	return e.provider
}

// ToChromemFunc exposes the underlying chromem-go embedding function
func (e *ChromemEmbedder) ToChromemFunc() chromem.EmbeddingFunc {
	return e.fn
}

// Placeholder returns a zero vector of the given dimensionality. Callers
// that attach it must also tag the result as non-semantic.
func Placeholder(dimensions int) []float32 {
	return make([]float32, dimensions)
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors
// of different lengths or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
