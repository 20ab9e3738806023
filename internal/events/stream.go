package events

import (
	"context"
	"strconv"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/internal/queue"
)

// StreamPublisher writes events to the Redis stream queue.
type StreamPublisher struct {
	q *queue.Queue
}

func NewStreamPublisher(q *queue.Queue) *StreamPublisher {
	return &StreamPublisher{q: q}
}

func (p *StreamPublisher) Publish(ctx context.Context, e model.LedgerEvent) error {
	_, err := p.q.PublishJSON(ctx, e, map[string]string{
		"event_id":    e.ID,
		"type":        string(e.Type),
		"customer_id": strconv.FormatInt(e.CustomerID, 10),
	})
	return err
}

// Close is a no-op, the queue is owned by the caller.
func (p *StreamPublisher) Close() error {
	return nil
}
