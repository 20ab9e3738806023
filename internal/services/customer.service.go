package services

import (
	"context"
	"errors"

	"github.com/nimasrn/farm-ledger/internal/docscan"
	"github.com/nimasrn/farm-ledger/internal/events"
	gateway "github.com/nimasrn/farm-ledger/internal/gateways"
	"github.com/nimasrn/farm-ledger/internal/idcrypt"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/shopspring/decimal"
)

type CustomerService struct {
	customers CustomerRepository
	cipher    *idcrypt.Cipher
	summaries SummaryStore
	scanner   Scanner
	publisher events.Publisher
}

// NewCustomerService wires the customer operations. summaries and scanner
// may be nil.
func NewCustomerService(customers CustomerRepository, cipher *idcrypt.Cipher, summaries SummaryStore, scanner Scanner, publisher events.Publisher) *CustomerService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &CustomerService{
		customers: customers,
		cipher:    cipher,
		summaries: summaries,
		scanner:   scanner,
		publisher: publisher,
	}
}

func (s *CustomerService) Create(ctx context.Context, req model.CustomerCreateRequest) (*model.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sealed, err := s.seal(ctx, req.NationalID, 0)
	if err != nil {
		return nil, err
	}

	c, err := s.customers.Create(ctx, &model.Customer{
		Name:                req.Name,
		FatherName:          req.FatherName,
		Phone:               req.Phone,
		Village:             req.Village,
		Address:             req.Address,
		Notes:               req.Notes,
		NationalIDEncrypted: sealed.Ciphertext,
		NationalIDHash:      sealed.Hash,
		IsActive:            true,
	})
	if err != nil {
		return nil, err
	}
	return s.decorate(c), nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*model.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(c), nil
}

func (s *CustomerService) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	list, err := s.customers.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		s.decorate(c)
	}
	return list, nil
}

// Update applies a partial update. A nationalId of "" clears the stored id.
func (s *CustomerService) Update(ctx context.Context, id int64, req model.CustomerUpdateRequest) (*model.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *model.Customer
	err := s.customers.WithinTransaction(ctx, func(ctx context.Context) error {
		if req.NationalID != nil {
			sealed, err := s.seal(ctx, *req.NationalID, id)
			if err != nil {
				return err
			}
			if err := s.customers.SetNationalID(ctx, id, sealed.Ciphertext, sealed.Hash); err != nil {
				return err
			}
		}
		c, err := s.customers.Update(ctx, id, req.Updates())
		if err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.decorate(updated), nil
}

func (s *CustomerService) ToggleStatus(ctx context.Context, id int64) (*model.Customer, error) {
	active, err := s.customers.ToggleActive(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info("customer status toggled", "customer_id", id, "active", active)
	return s.Get(ctx, id)
}

// Delete removes the customer together with its projects and transactions.
func (s *CustomerService) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.customers.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	_ = s.publisher.Publish(ctx, events.New(model.EventCustomerDeleted, actorID, id, 0))
	return nil
}

// FinancialSummary totals the customer's ledger, served from cache when present.
func (s *CustomerService) FinancialSummary(ctx context.Context, id int64) (*model.FinancialSummary, error) {
	if err := customerExists(ctx, s.customers, id); err != nil {
		return nil, err
	}

	if s.summaries != nil {
		cached, err := s.summaries.Get(ctx, id)
		if err != nil {
			logger.Warn("summary cache read failed", "customer_id", id, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	projects, err := s.customers.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := &model.FinancialSummary{
		CustomerID:  id,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		Projects:    projects,
	}
	for _, p := range projects {
		summary.TotalDebit = summary.TotalDebit.Add(p.TotalDebit)
		summary.TotalCredit = summary.TotalCredit.Add(p.TotalCredit)
		summary.TransactionCount += p.TransactionCount
	}
	summary.Balance = summary.TotalCredit.Sub(summary.TotalDebit)

	if s.summaries != nil {
		if err := s.summaries.Set(ctx, summary); err != nil {
			logger.Warn("summary cache write failed", "customer_id", id, "error", err)
		}
	}
	return summary, nil
}

func (s *CustomerService) RevealNationalID(ctx context.Context, id int64) (*model.NationalIDReveal, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	opened, err := s.cipher.Open(c.NationalIDEncrypted)
	if err != nil {
		return nil, err
	}
	return &model.NationalIDReveal{
		CustomerID: id,
		NationalID: opened.Reveal(),
		Masked:     opened.Masked,
		Valid:      opened.Valid,
	}, nil
}

// Scan turns a QR payload into a customer draft. The scanner service is
// asked first, local parsing is the fallback when it cannot be reached.
// A payload the scanner rejected is final. Nothing is stored.
func (s *CustomerService) Scan(ctx context.Context, req model.ScanRequest) (*model.CustomerDraft, error) {
	if err := model.Validate(&req); err != nil {
		return nil, err
	}
	if s.scanner != nil {
		draft, err := s.scanner.Scan(ctx, req.Payload)
		if err == nil {
			return draft, nil
		}
		if errors.Is(err, gateway.ErrRejected) {
			return nil, model.ValidationError("unreadable QR payload")
		}
		logger.Warn("scanner unavailable, parsing locally", "error", err)
	}
	return docscan.Parse(req.Payload)
}

// seal encrypts raw and rejects an id already held by another customer.
func (s *CustomerService) seal(ctx context.Context, raw string, excludeID int64) (idcrypt.Sealed, error) {
	sealed, err := s.cipher.Seal(raw)
	if err != nil {
		return idcrypt.Sealed{}, err
	}
	if sealed.Hash == "" {
		return sealed, nil
	}
	taken, err := s.customers.ExistsByNationalIDHash(ctx, sealed.Hash, excludeID)
	if err != nil {
		return idcrypt.Sealed{}, err
	}
	if taken {
		return idcrypt.Sealed{}, model.ErrDuplicateNationalID
	}
	return sealed, nil
}

// decorate fills the display fields from the ciphertext.
func (s *CustomerService) decorate(c *model.Customer) *model.Customer {
	if c.NationalIDEncrypted == "" {
		return c
	}
	opened, err := s.cipher.Open(c.NationalIDEncrypted)
	if err != nil {
		logger.Error("national id decrypt failed", "customer_id", c.ID, "error", err)
		c.NationalIDMasked = idcrypt.InvalidDisplay
		c.NationalIDValid = false
		return c
	}
	c.NationalIDMasked = opened.Masked
	c.NationalIDValid = opened.Valid
	return c
}

func (s *CustomerService) invalidate(ctx context.Context, customerID int64) {
	invalidateSummary(ctx, s.summaries, customerID)
}

func invalidateSummary(ctx context.Context, store SummaryStore, customerID int64) {
	if store == nil {
		return
	}
	if err := store.Invalidate(ctx, customerID); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("summary cache invalidation failed", "customer_id", customerID, "error", err)
	}
}
