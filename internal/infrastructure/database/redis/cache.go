package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

const (
	latestKeyspace  = "assessment:latest"
	defaultCacheTTL = 15 * time.Minute
)

// AssessmentCache stores the latest assessment per report as a JSON value.
// It implements the application layer's LatestCache port.  Entries expire on
// the configured TTL; retraction and reassessment invalidate eagerly.
type AssessmentCache struct {
	client *Client
	ttl    time.Duration
	log    logging.Logger
}

// NewAssessmentCache builds the cache on an established client.  A zero TTL
// falls back to the client's configured default, then to 15 minutes.
func NewAssessmentCache(client *Client, ttl time.Duration, log logging.Logger) *AssessmentCache {
	if ttl <= 0 {
		ttl = client.defaultTTL
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AssessmentCache{client: client, ttl: ttl, log: log}
}

func (c *AssessmentCache) Get(ctx context.Context, reportID common.ID) (rtypes.AssessmentDTO, bool, error) {
	raw, err := c.client.rdb.Get(ctx, c.key(reportID)).Bytes()
	if err == goredis.Nil {
		return rtypes.AssessmentDTO{}, false, nil
	}
	if err != nil {
		return rtypes.AssessmentDTO{}, false,
			errors.Wrap(err, errors.ErrCodeCacheError, "failed to read cached assessment")
	}

	var dto rtypes.AssessmentDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		// A corrupt entry is unreadable forever; drop it and report a miss.
		c.log.Warn("dropping corrupt cached assessment",
			logging.String("report_id", string(reportID)), logging.Err(err))
		c.client.rdb.Del(ctx, c.key(reportID))
		return rtypes.AssessmentDTO{}, false, nil
	}
	return dto, true, nil
}

func (c *AssessmentCache) Set(ctx context.Context, dto rtypes.AssessmentDTO) error {
	raw, err := json.Marshal(dto)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode assessment for cache")
	}
	if err := c.client.rdb.Set(ctx, c.key(dto.ReportID), raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to cache assessment")
	}
	return nil
}

func (c *AssessmentCache) Invalidate(ctx context.Context, reportID common.ID) error {
	if err := c.client.rdb.Del(ctx, c.key(reportID)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to invalidate cached assessment")
	}
	return nil
}

func (c *AssessmentCache) key(reportID common.ID) string {
	return c.client.key(latestKeyspace, string(reportID))
}
