package services

import (
	"context"
	"time"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	db      Pinger
	redis   Pinger
	timeout time.Duration
}

func NewHealthService(db, redis Pinger) *HealthService {
	return &HealthService{db: db, redis: redis, timeout: 2 * time.Second}
}

// Check pings each dependency. The overall status is "ok" only when all are up.
func (s *HealthService) Check(ctx context.Context) *model.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	st := &model.HealthStatus{
		Status:   "ok",
		Database: probe(ctx, "database", s.db),
		Redis:    probe(ctx, "redis", s.redis),
	}
	if st.Database != "up" || st.Redis == "down" {
		st.Status = "degraded"
	}
	return st
}

func probe(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		logger.Warn("health probe failed", "dependency", name, "error", err)
		return "down"
	}
	return "up"
}
