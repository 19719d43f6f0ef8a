package similarity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

// Neighbor is one nearest-neighbour search hit.
type Neighbor struct {
	ReportID common.ID
	Score    float64
}

// VectorBackend is the storage port of the similarity index.  One backend
// instance serves exactly one vector namespace (embedding model); the Milvus
// adapter in internal/infrastructure/search/milvus implements it for shared
// deployments, MemoryIndex is the default and the test implementation.
//
// Concurrency contract: Insert calls are serialised (single writer); Search
// and Fetch may run concurrently with each other and with one writer, and
// always observe a consistent snapshot taken at call time.
type VectorBackend interface {
	// Insert adds or replaces the vector of a report.  Returns
	// ErrCodeDimensionMismatch when the vector does not fit the namespace.
	Insert(ctx context.Context, id common.ID, vec Vector) error

	// Search returns up to topK neighbours of vec ordered by descending
	// cosine similarity.  The query vector itself is not stored.
	Search(ctx context.Context, vec Vector, topK int) ([]Neighbor, error)

	// Fetch returns the stored vector of a report, with ok=false when the
	// report is not indexed.
	Fetch(ctx context.Context, id common.ID) (Vector, bool, error)

	// Size returns the number of indexed vectors.
	Size(ctx context.Context) (int, error)
}

// indexSnapshot is an immutable view of the index.  Readers load it
// atomically and iterate without locking; the writer builds a new snapshot
// per insert (copy-on-write).
type indexSnapshot struct {
	ids     []common.ID
	vectors []Vector
	byID    map[common.ID]int
}

// MemoryIndex is the embedded brute-force cosine index.  It enforces the
// single-writer/multi-reader discipline in-process: a mutex serialises
// writers while readers work off atomic snapshots and are never blocked.
type MemoryIndex struct {
	dimension int

	writeMu  sync.Mutex
	snapshot atomic.Value // *indexSnapshot
}

// NewMemoryIndex constructs an empty index for vectors of the given
// dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	idx := &MemoryIndex{dimension: dimension}
	idx.snapshot.Store(&indexSnapshot{byID: map[common.ID]int{}})
	return idx
}

func (m *MemoryIndex) load() *indexSnapshot {
	return m.snapshot.Load().(*indexSnapshot)
}

// Insert adds or replaces a report vector.  The new snapshot is visible to
// every Search that starts after Insert returns, which is what gives two
// concurrently assessed reports their mutual match: each one searches again
// after its own insert.
func (m *MemoryIndex) Insert(ctx context.Context, id common.ID, vec Vector) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeComputationTimeout, "similarity index insert cancelled")
	}
	if len(vec) != m.dimension {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index dimension %d, vector dimension %d", m.dimension, len(vec)))
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	cur := m.load()
	next := &indexSnapshot{
		ids:     make([]common.ID, len(cur.ids)),
		vectors: make([]Vector, len(cur.vectors)),
		byID:    make(map[common.ID]int, len(cur.byID)+1),
	}
	copy(next.ids, cur.ids)
	copy(next.vectors, cur.vectors)
	for k, v := range cur.byID {
		next.byID[k] = v
	}

	if pos, ok := next.byID[id]; ok {
		next.vectors[pos] = vec
	} else {
		next.byID[id] = len(next.ids)
		next.ids = append(next.ids, id)
		next.vectors = append(next.vectors, vec)
	}

	m.snapshot.Store(next)
	return nil
}

// Search scans the snapshot with brute-force cosine.  Acceptable for corpus
// sizes in the tens of thousands; larger deployments switch to the Milvus
// backend.
func (m *MemoryIndex) Search(ctx context.Context, vec Vector, topK int) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeComputationTimeout, "similarity search cancelled")
	}
	if len(vec) != m.dimension {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index dimension %d, query dimension %d", m.dimension, len(vec)))
	}
	if topK <= 0 {
		topK = 10
	}

	snap := m.load()
	neighbors := make([]Neighbor, 0, len(snap.ids))
	for i, stored := range snap.vectors {
		score, err := Cosine(vec, stored)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, Neighbor{ReportID: snap.ids[i], Score: score})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].ReportID < neighbors[j].ReportID
	})

	if len(neighbors) > topK {
		neighbors = neighbors[:topK]
	}
	return neighbors, nil
}

// Fetch returns the stored vector for a report.
func (m *MemoryIndex) Fetch(_ context.Context, id common.ID) (Vector, bool, error) {
	snap := m.load()
	pos, ok := snap.byID[id]
	if !ok {
		return nil, false, nil
	}
	return snap.vectors[pos], true, nil
}

// Size returns the number of indexed vectors.
func (m *MemoryIndex) Size(_ context.Context) (int, error) {
	return len(m.load().ids), nil
}
