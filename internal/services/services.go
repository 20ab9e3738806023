package services

import (
	"context"
	"time"

	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

type CustomerRepository interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, error)
	ExistsByNationalIDHash(ctx context.Context, hash string, excludeID int64) (bool, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*model.Customer, error)
	SetNationalID(ctx context.Context, id int64, ciphertext, hash string) error
	ToggleActive(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context, customerID int64) ([]*model.ProjectSummary, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) (*model.Project, error)
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	LockByID(ctx context.Context, id int64) (*model.Project, error)
	CountByCustomer(ctx context.Context, customerID int64) (int64, error)
	List(ctx context.Context, f model.ProjectFilter) ([]*model.Project, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*model.Project, error)
	Delete(ctx context.Context, id int64) error
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error)
	Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	Delete(ctx context.Context, id int64) error
	MaxSerial(ctx context.Context, s ledger.Scope) (int, error)
	Entries(ctx context.Context, s ledger.Scope) ([]ledger.Entry, error)
	ApplySerials(ctx context.Context, changes []ledger.Change) error
	Scopes(ctx context.Context) ([]ledger.Scope, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SummaryStore caches financial summaries. A nil store disables caching.
type SummaryStore interface {
	Get(ctx context.Context, customerID int64) (*model.FinancialSummary, error)
	Set(ctx context.Context, s *model.FinancialSummary) error
	Invalidate(ctx context.Context, customerID int64) error
}

// Scanner reads a QR payload through the remote scan service.
type Scanner interface {
	Scan(ctx context.Context, payload string) (*model.CustomerDraft, error)
}

func customerExists(ctx context.Context, repo interface {
	Exists(ctx context.Context, id int64) (bool, error)
}, id int64) error {
	ok, err := repo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrCustomerNotFound
	}
	return nil
}
