package milvus

import (
	"context"

	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

// AcquireFunc obtains the distributed writer lock and returns the release
// callback bound to that one acquisition.  The Redis writer lock's Acquire
// method satisfies it; releasing through the returned callback means a stale
// holder can never release a lock that has since changed hands.
type AcquireFunc func(ctx context.Context) (release func(context.Context) error, err error)

// LockedBackend decorates a backend so that inserts hold a distributed lock.
// A single instance writing to Milvus does not need it; deployments running
// several assessment workers against one collection do, to keep the
// single-writer discipline the index contract promises.
type LockedBackend struct {
	similarity.VectorBackend
	acquire AcquireFunc
}

// NewLockedBackend wraps backend with the given lock acquisition.
func NewLockedBackend(backend similarity.VectorBackend, acquire AcquireFunc) *LockedBackend {
	return &LockedBackend{VectorBackend: backend, acquire: acquire}
}

func (b *LockedBackend) Insert(ctx context.Context, id common.ID, vec similarity.Vector) error {
	release, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()
	return b.VectorBackend.Insert(ctx, id, vec)
}
