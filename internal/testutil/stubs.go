package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// RecordingPublisher captures published domain events.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []common.DomainEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, events []common.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, events...)
	return nil
}

// EventTypes returns the types of all captured events in publish order.
func (p *RecordingPublisher) EventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.EventType()
	}
	return out
}

// QueuedAssessment is one captured enqueue call.
type QueuedAssessment struct {
	ReportID common.ID
	Reassess bool
}

// RecordingQueue captures assessment enqueue requests.
type RecordingQueue struct {
	mu      sync.Mutex
	Entries []QueuedAssessment
	Err     error
}

func (q *RecordingQueue) EnqueueAssessment(_ context.Context, reportID common.ID, reassess bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Entries = append(q.Entries, QueuedAssessment{ReportID: reportID, Reassess: reassess})
	return nil
}

// MemoryCache is an in-memory latest-assessment cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[common.ID]rtypes.AssessmentDTO
	Hits    int
	Misses  int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[common.ID]rtypes.AssessmentDTO)}
}

func (c *MemoryCache) Get(_ context.Context, reportID common.ID) (rtypes.AssessmentDTO, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dto, ok := c.entries[reportID]
	if ok {
		c.Hits++
	} else {
		c.Misses++
	}
	return dto, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, dto rtypes.AssessmentDTO) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dto.ReportID] = dto
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, reportID common.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, reportID)
	return nil
}
