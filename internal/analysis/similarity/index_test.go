package similarity_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

func TestMemoryIndex_InsertAndSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := similarity.NewMemoryIndex(3)

	require.NoError(t, idx.Insert(ctx, "r-a", similarity.Vector{1, 0, 0}))
	require.NoError(t, idx.Insert(ctx, "r-b", similarity.Vector{0.9, 0.1, 0}))
	require.NoError(t, idx.Insert(ctx, "r-c", similarity.Vector{0, 0, 1}))

	hits, err := idx.Search(ctx, similarity.Vector{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, common.ID("r-a"), hits[0].ReportID)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, common.ID("r-b"), hits[1].ReportID)
	assert.Greater(t, hits[1].Score, 0.9)

	size, err := idx.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestMemoryIndex_UpsertReplacesVector(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := similarity.NewMemoryIndex(2)

	require.NoError(t, idx.Insert(ctx, "r-a", similarity.Vector{1, 0}))
	require.NoError(t, idx.Insert(ctx, "r-a", similarity.Vector{0, 1}))

	size, err := idx.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	vec, ok, err := idx.Fetch(ctx, "r-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, similarity.Vector{0, 1}, vec)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := similarity.NewMemoryIndex(4)

	err := idx.Insert(ctx, "r-a", similarity.Vector{1, 2})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))

	_, err = idx.Search(ctx, similarity.Vector{1}, 5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
}

func TestMemoryIndex_FetchMissing(t *testing.T) {
	t.Parallel()
	idx := similarity.NewMemoryIndex(2)
	_, ok, err := idx.Fetch(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryIndex_ConcurrentReadersDuringWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := similarity.NewMemoryIndex(2)
	require.NoError(t, idx.Insert(ctx, "seed", similarity.Vector{1, 1}))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := common.ID(fmt.Sprintf("w%d-%d", w, i))
				assert.NoError(t, idx.Insert(ctx, id, similarity.Vector{float32(i), 1}))
			}
		}()
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				hits, err := idx.Search(ctx, similarity.Vector{1, 0}, 5)
				assert.NoError(t, err)
				assert.NotEmpty(t, hits, "readers always see a consistent snapshot")
			}
		}()
	}
	wg.Wait()

	size, err := idx.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1+4*50, size)
}
