package repository

import (
	"context"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/pg"
	"gorm.io/gorm/clause"
)

type ActivityLogRepository struct {
	*pg.DB
}

func NewActivityLogRepository(db *pg.DB) *ActivityLogRepository {
	return &ActivityLogRepository{
		db,
	}
}

// Append stores l once per event id. It reports false when the event was
// already logged.
func (r *ActivityLogRepository) Append(ctx context.Context, l *model.ActivityLog) (bool, error) {
	entity := &ActivityLogEntity{
		EventID:       l.EventID,
		EventType:     string(l.EventType),
		ActorID:       l.ActorID,
		CustomerID:    l.CustomerID,
		ProjectID:     l.ProjectID,
		TransactionID: l.TransactionID,
		SerialNumber:  l.SerialNumber,
		Details:       l.Details,
	}
	res := r.Write(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(entity)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ActivityLogRepository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*model.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entities []*ActivityLogEntity
	err := r.Read(ctx).
		Where("customer_id = ?", customerID).
		Order("id DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.ActivityLog, len(entities))
	for i, e := range entities {
		out[i] = toActivityLogModel(e)
	}
	return out, nil
}
