package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/farm-ledger/internal/auth"
	"github.com/nimasrn/farm-ledger/internal/cache"
	"github.com/nimasrn/farm-ledger/internal/idcrypt"
	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/internal/repository"
	"github.com/nimasrn/farm-ledger/internal/repository/repotest"
	"github.com/nimasrn/farm-ledger/pkg/pg"
	"github.com/nimasrn/farm-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e model.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []model.LedgerEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.LedgerEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	db           *pg.DB
	mr           *miniredis.Miniredis
	summaries    *cache.SummaryCache
	publisher    *recordingPublisher
	users        *repository.UserRepository
	customerRepo *repository.CustomerRepository
	projectRepo  *repository.ProjectRepository
	txnRepo      *repository.TransactionRepository

	customers    *CustomerService
	projects     *ProjectService
	transactions *TransactionService
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db := repotest.NewDB(t, repository.AllEntities()...)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	adapter, err := redis.NewRedisAdapter(t.Name()+mr.Addr(), "test:", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)

	cipher, err := idcrypt.New("unit-test-national-id-key")
	require.NoError(t, err)

	env := &testEnv{
		db:           db,
		mr:           mr,
		summaries:    cache.NewSummaryCache(adapter, time.Minute),
		publisher:    &recordingPublisher{},
		users:        repository.NewUserRepository(db),
		customerRepo: repository.NewCustomerRepository(db),
		projectRepo:  repository.NewProjectRepository(db),
		txnRepo:      repository.NewTransactionRepository(db),
	}
	env.customers = NewCustomerService(env.customerRepo, cipher, env.summaries, nil, env.publisher)
	env.projects = NewProjectService(env.projectRepo, env.customerRepo, env.summaries, env.publisher, "")
	env.transactions = NewTransactionService(env.txnRepo, env.customerRepo, env.projectRepo, ledger.NewScopeLocks(), env.summaries, env.publisher)
	return env
}

func (e *testEnv) customer(t *testing.T, name string) *model.Customer {
	t.Helper()
	c, err := e.customers.Create(context.Background(), model.CustomerCreateRequest{Name: name})
	require.NoError(t, err)
	return c
}

func (e *testEnv) project(t *testing.T, customerID int64, name string) *model.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), model.ProjectCreateRequest{CustomerID: customerID, Name: name})
	require.NoError(t, err)
	return p
}

func (e *testEnv) expense(t *testing.T, customerID, projectID int64, remark string, debit int64) *model.Transaction {
	t.Helper()
	txn, err := e.transactions.Create(context.Background(), 1, model.TransactionCreateRequest{
		CustomerID:  customerID,
		ProjectID:   projectID,
		ExpenseType: model.ExpenseLabour,
		Debit:       decimal.NewFromInt(debit),
		Remark:      remark,
	})
	require.NoError(t, err)
	return txn
}

func (e *testEnv) serials(t *testing.T, customerID, projectID int64) map[string]int {
	t.Helper()
	list, err := e.transactions.List(context.Background(), model.TransactionFilter{CustomerID: customerID, ProjectID: &projectID})
	require.NoError(t, err)
	out := map[string]int{}
	for _, txn := range list {
		out[txn.Remark] = txn.SerialNumber
	}
	return out
}

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService("unit-test-jwt-secret", time.Hour)
	require.NoError(t, err)
	return tokens
}
