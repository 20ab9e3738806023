package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/internal/queue"
	"github.com/nimasrn/farm-ledger/internal/services"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/nimasrn/farm-ledger/pkg/prom"
)

type ActivityLogRepository interface {
	Append(ctx context.Context, l *model.ActivityLog) (bool, error)
}

// LedgerChecker verifies and repairs serial contiguity of one scope.
type LedgerChecker interface {
	Verify(ctx context.Context, scope ledger.Scope) (ledger.Report, error)
	RepairScope(ctx context.Context, scope ledger.Scope, source string) (int, error)
}

type LedgerEventProcessor struct {
	activity    ActivityLogRepository
	checker     LedgerChecker
	idempotency *IdempotencyService
}

func NewLedgerEventProcessor(activity ActivityLogRepository, checker LedgerChecker, idempotency *IdempotencyService) *LedgerEventProcessor {
	return &LedgerEventProcessor{
		activity:    activity,
		checker:     checker,
		idempotency: idempotency,
	}
}

func (p *LedgerEventProcessor) GetType() string {
	return "ledger"
}

// Process writes the audit row for one event and, for transaction events,
// re-checks the scope and repairs it when serials drifted.
func (p *LedgerEventProcessor) Process(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	var event model.LedgerEvent
	if err := msg.Decode(&event); err != nil {
		logger.Error("[processor] undecodable event", "message_id", msg.ID, "error", err)
		return fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	if event.ID == "" {
		event.ID = msg.ID
	}

	pc, err := p.idempotency.AcquireProcessingLock(ctx, event.ID)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Debug("[processor] event already processed", "event_id", event.ID)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		logger.Error("[processor] giving up on event", "event_id", event.ID, "type", event.Type)
		prom.EventProcessed(string(event.Type), false, time.Since(start).Seconds())
		return nil
	case errors.Is(err, ErrLockAcquireFailed):
		return errors.New("event locked by another consumer")
	default:
		return err
	}
	defer func() {
		_ = p.idempotency.ReleaseLock(ctx, pc)
	}()

	if err := p.handle(ctx, event); err != nil {
		prom.EventProcessed(string(event.Type), false, time.Since(start).Seconds())
		if markErr := p.idempotency.MarkFailure(ctx, pc, err); markErr != nil {
			logger.Error("[processor] failed to mark failure", "event_id", event.ID, "error", markErr)
		}
		return err
	}

	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		logger.Error("[processor] failed to mark success", "event_id", event.ID, "error", err)
	}
	prom.EventProcessed(string(event.Type), true, time.Since(start).Seconds())
	return nil
}

func (p *LedgerEventProcessor) handle(ctx context.Context, event model.LedgerEvent) error {
	details, err := p.check(ctx, event)
	if err != nil {
		return err
	}

	inserted, err := p.activity.Append(ctx, &model.ActivityLog{
		EventID:       event.ID,
		EventType:     event.Type,
		ActorID:       event.ActorID,
		CustomerID:    event.CustomerID,
		ProjectID:     event.ProjectID,
		TransactionID: event.TransactionID,
		SerialNumber:  event.SerialNumber,
		Details:       details,
	})
	if err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}
	if !inserted {
		logger.Debug("[processor] activity already logged", "event_id", event.ID)
	}
	return nil
}

// check returns the audit details for the event. Only transaction events
// can leave a scope out of order; repair events are the processor's own
// output and deleted parents have no rows left.
func (p *LedgerEventProcessor) check(ctx context.Context, event model.LedgerEvent) (string, error) {
	switch event.Type {
	case model.EventTransactionCreated, model.EventTransactionUpdated, model.EventTransactionDeleted:
	case model.EventScopeRepaired:
		return fmt.Sprintf("renumbered=%d", event.Renumbered), nil
	default:
		return "", nil
	}
	if !event.HasScope() {
		return "", nil
	}

	scope := ledger.Scope{CustomerID: event.CustomerID, ProjectID: event.ProjectID}
	report, err := p.checker.Verify(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("verify scope %s: %w", scope, err)
	}
	if report.Contiguous() {
		return report.String(), nil
	}

	logger.Warn("[processor] scope out of order", "scope", scope.String(), "report", report.String(), "event_id", event.ID)
	n, err := p.checker.RepairScope(ctx, scope, services.RepairSourceProcessor)
	if err != nil {
		return "", fmt.Errorf("repair scope %s: %w", scope, err)
	}
	return fmt.Sprintf("%s; repaired=%d", report.String(), n), nil
}
