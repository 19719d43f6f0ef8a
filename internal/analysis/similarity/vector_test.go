package similarity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/pkg/errors"
)

func TestCosine_SelfSimilarityIsOne(t *testing.T) {
	t.Parallel()
	v := similarity.Vector{0.3, -1.2, 4.5, 0.0, 2.2}
	score, err := similarity.Cosine(v, v)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestCosine_Orthogonal(t *testing.T) {
	t.Parallel()
	score, err := similarity.Cosine(similarity.Vector{1, 0}, similarity.Vector{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestCosine_OppositeIsMinusOne(t *testing.T) {
	t.Parallel()
	score, err := similarity.Cosine(similarity.Vector{1, 2}, similarity.Vector{-1, -2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, score, 1e-9)
}

func TestCosine_DimensionMismatch(t *testing.T) {
	t.Parallel()
	_, err := similarity.Cosine(similarity.Vector{1, 2}, similarity.Vector{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
}

func TestCosine_ZeroVectorScoresZero(t *testing.T) {
	t.Parallel()
	score, err := similarity.Cosine(similarity.Vector{0, 0}, similarity.Vector{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	v := similarity.Vector{3, 4}
	v.Normalize()
	assert.InDelta(t, 1.0, v.Norm(), 1e-6)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)

	zero := similarity.Vector{0, 0}
	zero.Normalize()
	assert.Equal(t, similarity.Vector{0, 0}, zero)
}

func TestLexicalEmbedder_DeterministicAndDiscriminative(t *testing.T) {
	t.Parallel()
	e := similarity.NewLexicalEmbedder()
	ctx := context.Background()

	textA := "revenue growth accelerated across all segments in the third quarter driven by cloud adoption"
	textB := "revenue growth accelerated across all segments in the third quarter driven by cloud adoption"
	textC := "commodity prices collapsed as demand from construction projects slowed during the monsoon season"

	va, err := e.Embed(ctx, textA)
	require.NoError(t, err)
	vb, err := e.Embed(ctx, textB)
	require.NoError(t, err)
	vc, err := e.Embed(ctx, textC)
	require.NoError(t, err)

	same, err := similarity.Cosine(va, vb)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-6, "identical text must embed identically")

	diff, err := similarity.Cosine(va, vc)
	require.NoError(t, err)
	assert.Less(t, diff, 0.2, "unrelated text must score low")

	assert.Len(t, va, e.Dimension())
	assert.InDelta(t, 1.0, va.Norm(), 1e-6, "lexical vectors are L2-normalised")
}
