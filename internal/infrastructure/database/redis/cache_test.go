package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

func newTestCache(t *testing.T, ttl time.Duration) (*AssessmentCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	client := &Client{
		rdb:       db,
		keyPrefix: "test:",
		log:       logging.NewNopLogger(),
	}
	return NewAssessmentCache(client, ttl, logging.NewNopLogger()), mock
}

func TestAssessmentCache_GetMiss(t *testing.T) {
	cache, mock := newTestCache(t, time.Minute)
	mock.ExpectGet("test:assessment:latest:rpt-1").RedisNil()

	_, ok, err := cache.Get(context.Background(), "rpt-1")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentCache_SetThenGet(t *testing.T) {
	cache, mock := newTestCache(t, time.Minute)

	dto := rtypes.AssessmentDTO{
		ID:           "asmt-1",
		ReportID:     "rpt-1",
		Version:      2,
		OverallScore: 71.5,
		Narrative:    "solid report",
	}
	raw, err := json.Marshal(dto)
	require.NoError(t, err)

	mock.ExpectSet("test:assessment:latest:rpt-1", raw, time.Minute).SetVal("OK")
	require.NoError(t, cache.Set(context.Background(), dto))

	mock.ExpectGet("test:assessment:latest:rpt-1").SetVal(string(raw))
	got, ok, err := cache.Get(context.Background(), "rpt-1")

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dto.ID, got.ID)
	assert.Equal(t, 2, got.Version)
	assert.InDelta(t, 71.5, got.OverallScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentCache_CorruptEntryDroppedAsMiss(t *testing.T) {
	cache, mock := newTestCache(t, time.Minute)

	mock.ExpectGet("test:assessment:latest:rpt-1").SetVal("{not json")
	mock.ExpectDel("test:assessment:latest:rpt-1").SetVal(1)

	_, ok, err := cache.Get(context.Background(), "rpt-1")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentCache_Invalidate(t *testing.T) {
	cache, mock := newTestCache(t, time.Minute)

	mock.ExpectDel("test:assessment:latest:rpt-1").SetVal(1)
	require.NoError(t, cache.Invalidate(context.Background(), "rpt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentCache_DefaultTTL(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	assert.Equal(t, defaultCacheTTL, cache.ttl)
}
