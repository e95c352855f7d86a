package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	me := NewMockEmbedder(64)

	first, err := me.EmbedText(context.Background(), "Paris Agreement")
	require.NoError(t, err)
	second, err := me.EmbedText(context.Background(), "Paris Agreement")
	require.NoError(t, err)

	assert.Equal(t, first, second, "same text yields the same vector")
	assert.Len(t, first, 64)
}

func TestMockEmbedderDistinctTexts(t *testing.T) {
	me := NewMockEmbedder(64)

	a, _ := me.EmbedText(context.Background(), "Paris Agreement")
	b, _ := me.EmbedText(context.Background(), "Kyoto Protocol")
	assert.NotEqual(t, a, b)
}

func TestMockEmbedderUnitLength(t *testing.T) {
	me := NewMockEmbedder(32)
	v, err := me.EmbedText(context.Background(), "anything")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedderChromemFunc(t *testing.T) {
	me := NewMockEmbedder(16)
	fn := me.ToChromemFunc()

	direct, _ := me.EmbedText(context.Background(), "same input")
	viaFunc, err := fn(context.Background(), "same input")
	require.NoError(t, err)
	assert.Equal(t, direct, viaFunc)
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		v := []float32{0.5, 0.5, 0.1}
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("opposite vectors", func(t *testing.T) {
		assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	})

	t.Run("mismatched lengths score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	})

	t.Run("zero vector scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	})
}

func TestPlaceholder(t *testing.T) {
	v := Placeholder(8)
	assert.Len(t, v, 8)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("")
	assert.Error(t, err)

	e, err := NewOpenAIEmbedder("sk-test")
	require.NoError(t, err)
	assert.Equal(t, 1536, e.GetDimensions())
	assert.Equal(t, ProviderOpenAI, e.GetProvider())
}
