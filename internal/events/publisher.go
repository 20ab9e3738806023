// Package events fans ledger events out to the Redis stream consumed by the
// processor and, when configured, to Kafka.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/nimasrn/farm-ledger/pkg/prom"
)

type Publisher interface {
	Publish(ctx context.Context, e model.LedgerEvent) error
	Close() error
}

// New stamps an id and the current time on an event.
func New(t model.LedgerEventType, actorID, customerID, projectID int64) model.LedgerEvent {
	return model.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       t,
		ActorID:    actorID,
		CustomerID: customerID,
		ProjectID:  projectID,
		OccurredAt: time.Now().UTC(),
	}
}

type sink struct {
	name string
	pub  Publisher
}

// Multi publishes to every sink and joins their errors.
type Multi struct {
	sinks []sink
}

func NewMulti() *Multi {
	return &Multi{}
}

func (m *Multi) Add(name string, p Publisher) *Multi {
	if p != nil {
		m.sinks = append(m.sinks, sink{name: name, pub: p})
	}
	return m
}

func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Publish(ctx context.Context, e model.LedgerEvent) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.pub.Publish(ctx, e)
		prom.EventPublished(s.name, err == nil)
		if err != nil {
			logger.Warn("[events] publish failed", "sink", s.name, "event_id", e.ID, "type", e.Type, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.pub.Close())
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, model.LedgerEvent) error { return nil }
func (Nop) Close() error { return nil }
