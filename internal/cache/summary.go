// Package cache keeps computed financial summaries in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/redis"
)

const DefaultSummaryTTL = 5 * time.Minute

type SummaryCache struct {
	adapter redis.RedisAdapter
	ttl     time.Duration
}

func NewSummaryCache(adapter redis.RedisAdapter, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &SummaryCache{adapter: adapter, ttl: ttl}
}

func summaryKey(customerID int64) string {
	return "summary:customer:" + strconv.FormatInt(customerID, 10)
}

// Get returns the cached summary, or nil without error on a miss.
func (c *SummaryCache) Get(ctx context.Context, customerID int64) (*model.FinancialSummary, error) {
	b, err := c.adapter.Get(ctx, summaryKey(customerID))
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return nil, nil
		}
		return nil, err
	}
	var s model.FinancialSummary
	if err := json.Unmarshal(b, &s); err != nil {
		// unreadable entries are dropped and recomputed
		_ = c.adapter.Del(ctx, summaryKey(customerID))
		return nil, nil
	}
	return &s, nil
}

func (c *SummaryCache) Set(ctx context.Context, s *model.FinancialSummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.adapter.Set(ctx, summaryKey(s.CustomerID), b, c.ttl)
}

func (c *SummaryCache) Invalidate(ctx context.Context, customerID int64) error {
	return c.adapter.Del(ctx, summaryKey(customerID))
}
