package milvus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/analysis/similarity"
)

type countingLock struct {
	locks   int
	unlocks int
}

func (l *countingLock) acquire(context.Context) (func(context.Context) error, error) {
	l.locks++
	return func(context.Context) error { l.unlocks++; return nil }, nil
}

func TestLockedBackend_InsertHoldsLock(t *testing.T) {
	lock := &countingLock{}
	backend := NewLockedBackend(similarity.NewMemoryIndex(4), lock.acquire)

	vec := similarity.Vector{1, 0, 0, 0}
	require.NoError(t, backend.Insert(context.Background(), "rpt-1", vec))

	assert.Equal(t, 1, lock.locks)
	assert.Equal(t, 1, lock.unlocks)

	// Reads bypass the lock.
	_, found, err := backend.Fetch(context.Background(), "rpt-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, lock.locks)
}

func TestCollectionSuffix(t *testing.T) {
	assert.Equal(t, "lexical_trigram_v1", collectionSuffix("lexical-trigram-v1"))
	assert.Equal(t, "text_embed_3_small", collectionSuffix("text.embed/3:small"))
}
