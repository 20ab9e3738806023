package services

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/farm-ledger/internal/events"
	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/nimasrn/farm-ledger/pkg/prom"
)

// Repair sources, used as the metric label.
const (
	RepairSourceProcessor = "processor"
	RepairSourceCLI       = "cli"
)

// TransactionService owns the serial numbering of every (customer, project)
// ledger. Each mutation of a scope holds the scope lock and runs in one
// database transaction that locks the project row first.
type TransactionService struct {
	transactions TransactionRepository
	customers    CustomerRepository
	projects     ProjectRepository
	locks        *ledger.ScopeLocks
	summaries    SummaryStore
	publisher    events.Publisher
	now          func() time.Time
}

func NewTransactionService(transactions TransactionRepository, customers CustomerRepository, projects ProjectRepository, locks *ledger.ScopeLocks, summaries SummaryStore, publisher events.Publisher) *TransactionService {
	if locks == nil {
		locks = ledger.NewScopeLocks()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TransactionService{
		transactions: transactions,
		customers:    customers,
		projects:     projects,
		locks:        locks,
		summaries:    summaries,
		publisher:    publisher,
		now:          time.Now,
	}
}

// RepairResult summarizes a repair run.
type RepairResult struct {
	Scopes     int `json:"scopes"`
	Repaired   int `json:"repaired"`
	Renumbered int `json:"renumbered"`
}

func (s *TransactionService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	return s.transactions.GetByID(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := customerExists(ctx, s.customers, f.CustomerID); err != nil {
		return nil, err
	}
	return s.transactions.List(ctx, f)
}

// NextSerial previews the serial the next create would get. It may be
// stale by the time a create runs.
func (s *TransactionService) NextSerial(ctx context.Context, customerID, projectID int64) (*model.NextSerial, error) {
	scope := ledger.Scope{CustomerID: customerID, ProjectID: projectID}
	if err := s.checkScope(ctx, scope); err != nil {
		return nil, err
	}
	max, err := s.transactions.MaxSerial(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &model.NextSerial{CustomerID: customerID, ProjectID: projectID, SerialNumber: ledger.NextSerial(max)}, nil
}

func (s *TransactionService) Create(ctx context.Context, actorID int64, req model.TransactionCreateRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	scope := ledger.Scope{CustomerID: req.CustomerID, ProjectID: req.ProjectID}
	if err := s.checkScope(ctx, scope); err != nil {
		return nil, err
	}

	txn := req.Transaction(s.now())
	var created *model.Transaction
	err := s.withScope(ctx, scope, false, func(ctx context.Context) error {
		max, err := s.transactions.MaxSerial(ctx, scope)
		if err != nil {
			return err
		}
		txn.SerialNumber = ledger.NextSerial(max)
		created, err = s.transactions.Create(ctx, txn)
		return err
	})
	if err != nil {
		return nil, err
	}

	prom.TransactionCreated(string(created.ExpenseType))
	s.afterCommit(ctx, model.EventTransactionCreated, actorID, created, 0)
	return created, nil
}

// Update changes the mutable fields. The scope and the serial stay put.
func (s *TransactionService) Update(ctx context.Context, actorID, id int64, req model.TransactionUpdateRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	txn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(txn); err != nil {
		return nil, err
	}
	updated, err := s.transactions.Update(ctx, txn)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, model.EventTransactionUpdated, actorID, updated, 0)
	return updated, nil
}

// Delete removes a transaction and renumbers the rest of its scope in the
// same database transaction.
func (s *TransactionService) Delete(ctx context.Context, actorID, id int64) error {
	txn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	scope := ledger.Scope{CustomerID: txn.CustomerID, ProjectID: txn.ProjectID}

	var renumbered int
	err = s.withScope(ctx, scope, true, func(ctx context.Context) error {
		if err := s.transactions.Delete(ctx, id); err != nil {
			return err
		}
		n, err := s.renumber(ctx, scope)
		renumbered = n
		return err
	})
	if err != nil {
		return err
	}

	prom.TransactionDeleted(renumbered)
	logger.Debug("transaction deleted", "transaction_id", id, "scope", scope.String(), "renumbered", renumbered)
	s.afterCommit(ctx, model.EventTransactionDeleted, actorID, txn, renumbered)
	return nil
}

// Verify reports the contiguity of a scope as stored.
func (s *TransactionService) Verify(ctx context.Context, scope ledger.Scope) (ledger.Report, error) {
	entries, err := s.transactions.Entries(ctx, scope)
	if err != nil {
		return ledger.Report{}, err
	}
	return ledger.VerifyEntries(entries), nil
}

// RepairScope renumbers a scope to 1..N if it is not contiguous and
// returns how many rows moved.
func (s *TransactionService) RepairScope(ctx context.Context, scope ledger.Scope, source string) (int, error) {
	var changed int
	err := s.withScope(ctx, scope, true, func(ctx context.Context) error {
		n, err := s.renumber(ctx, scope)
		changed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		prom.SerialRepair(source)
		logger.Warn("ledger scope repaired", "scope", scope.String(), "renumbered", changed, "source", source)
		invalidateSummary(ctx, s.summaries, scope.CustomerID)
		e := events.New(model.EventScopeRepaired, 0, scope.CustomerID, scope.ProjectID)
		e.Renumbered = changed
		_ = s.publisher.Publish(ctx, e)
	}
	return changed, nil
}

// RepairAll repairs every scope that has transactions.
func (s *TransactionService) RepairAll(ctx context.Context, source string) (*RepairResult, error) {
	scopes, err := s.transactions.Scopes(ctx)
	if err != nil {
		return nil, err
	}
	res := &RepairResult{Scopes: len(scopes)}
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := s.RepairScope(ctx, scope, source)
		if err != nil {
			return res, err
		}
		if n > 0 {
			res.Repaired++
			res.Renumbered += n
		}
	}
	return res, nil
}

// checkScope fails with not-found unless the customer exists and owns the project.
func (s *TransactionService) checkScope(ctx context.Context, scope ledger.Scope) error {
	if err := customerExists(ctx, s.customers, scope.CustomerID); err != nil {
		return err
	}
	p, err := s.projects.GetByID(ctx, scope.ProjectID)
	if err != nil {
		return err
	}
	if p.CustomerID != scope.CustomerID {
		return model.ErrProjectNotOwned
	}
	return nil
}

// withScope runs fn under the in-process scope lock, inside a database
// transaction that holds the project row lock. With orphanOK a scope whose
// project is gone still runs, without the row lock.
func (s *TransactionService) withScope(ctx context.Context, scope ledger.Scope, orphanOK bool, fn func(ctx context.Context) error) error {
	unlock, waited := s.locks.Lock(scope)
	defer unlock()
	prom.ScopeLockWait(waited.Seconds())

	return s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.projects.LockByID(ctx, scope.ProjectID)
		switch {
		case err == nil:
			if !orphanOK && p.CustomerID != scope.CustomerID {
				return model.ErrProjectNotOwned
			}
		case orphanOK && errors.Is(err, model.ErrNotFound):
			logger.Warn("scope without project", "scope", scope.String())
		default:
			return err
		}
		return fn(ctx)
	})
}

func (s *TransactionService) renumber(ctx context.Context, scope ledger.Scope) (int, error) {
	entries, err := s.transactions.Entries(ctx, scope)
	if err != nil {
		return 0, err
	}
	changes := ledger.Renumber(entries)
	if len(changes) == 0 {
		return 0, nil
	}
	if err := s.transactions.ApplySerials(ctx, changes); err != nil {
		return 0, err
	}
	return len(changes), nil
}

func (s *TransactionService) afterCommit(ctx context.Context, t model.LedgerEventType, actorID int64, txn *model.Transaction, renumbered int) {
	invalidateSummary(ctx, s.summaries, txn.CustomerID)

	e := events.New(t, actorID, txn.CustomerID, txn.ProjectID)
	e.TransactionID = txn.ID
	e.SerialNumber = txn.SerialNumber
	e.Renumbered = renumbered
	_ = s.publisher.Publish(ctx, e)
}
