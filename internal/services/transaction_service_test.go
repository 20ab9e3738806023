package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionService_CreateDeleteCreate(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")

	a := env.expense(t, c.ID, p.ID, "A", 10)
	b := env.expense(t, c.ID, p.ID, "B", 20)
	cc := env.expense(t, c.ID, p.ID, "C", 30)
	assert.Equal(t, []int{1, 2, 3}, []int{a.SerialNumber, b.SerialNumber, cc.SerialNumber})

	require.NoError(t, env.transactions.Delete(ctx, 1, b.ID))
	assert.Equal(t, map[string]int{"A": 1, "C": 2}, env.serials(t, c.ID, p.ID))

	d := env.expense(t, c.ID, p.ID, "D", 40)
	assert.Equal(t, 3, d.SerialNumber)

	assert.Equal(t, []model.LedgerEventType{
		model.EventTransactionCreated,
		model.EventTransactionCreated,
		model.EventTransactionCreated,
		model.EventTransactionDeleted,
		model.EventTransactionCreated,
	}, env.publisher.types())
}

func TestTransactionService_DeleteHighestRewritesNothing(t *testing.T) {
	env := setup(t)
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")

	env.expense(t, c.ID, p.ID, "A", 10)
	env.expense(t, c.ID, p.ID, "B", 20)
	last := env.expense(t, c.ID, p.ID, "C", 30)

	require.NoError(t, env.transactions.Delete(context.Background(), 1, last.ID))
	assert.Equal(t, map[string]int{"A": 1, "B": 2}, env.serials(t, c.ID, p.ID))

	env.publisher.mu.Lock()
	deleted := env.publisher.events[len(env.publisher.events)-1]
	env.publisher.mu.Unlock()
	assert.Equal(t, 0, deleted.Renumbered)
	assert.Equal(t, 3, deleted.SerialNumber)
}

func TestTransactionService_ScopesAreIndependent(t *testing.T) {
	env := setup(t)
	c := env.customer(t, "Ravi")
	north := env.project(t, c.ID, "North")
	south := env.project(t, c.ID, "South")

	env.expense(t, c.ID, north.ID, "n1", 1)
	s1 := env.expense(t, c.ID, south.ID, "s1", 1)
	env.expense(t, c.ID, north.ID, "n2", 1)

	assert.Equal(t, 1, s1.SerialNumber)
	assert.Equal(t, map[string]int{"n1": 1, "n2": 2}, env.serials(t, c.ID, north.ID))
}

func TestTransactionService_ConcurrentCreates(t *testing.T) {
	env := setup(t)
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.transactions.Create(context.Background(), 1, model.TransactionCreateRequest{
				CustomerID:  c.ID,
				ProjectID:   p.ID,
				ExpenseType: model.ExpenseSeeds,
				Debit:       decimal.NewFromInt(int64(i + 1)),
				Remark:      fmt.Sprintf("t%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var got []int
	for _, s := range env.serials(t, c.ID, p.ID) {
		got = append(got, s)
	}
	sort.Ints(got)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got)
}

func TestTransactionService_CreateRejectsMissingParents(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	c := env.customer(t, "Ravi")
	other := env.customer(t, "Sita")
	p := env.project(t, c.ID, "North")

	tests := []struct {
		name       string
		customerID int64
		projectID  int64
		want       error
	}{
		{"missing customer", 999, p.ID, model.ErrCustomerNotFound},
		{"missing project", c.ID, 999, model.ErrProjectNotFound},
		{"project of another customer", other.ID, p.ID, model.ErrProjectNotOwned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.transactions.Create(ctx, 1, model.TransactionCreateRequest{
				CustomerID:  tt.customerID,
				ProjectID:   tt.projectID,
				ExpenseType: model.ExpenseLabour,
				Debit:       decimal.NewFromInt(5),
			})
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, model.ErrNotFound)
		})
	}

	scopes, err := env.txnRepo.Scopes(ctx)
	require.NoError(t, err)
	assert.Empty(t, scopes)
	assert.Empty(t, env.publisher.types())
}

func TestTransactionService_CreateValidation(t *testing.T) {
	env := setup(t)
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")
	serial := 7

	for name, req := range map[string]model.TransactionCreateRequest{
		"both sides":      {CustomerID: c.ID, ProjectID: p.ID, ExpenseType: model.ExpenseLabour, Debit: decimal.NewFromInt(1), Credit: decimal.NewFromInt(1)},
		"credit on debit": {CustomerID: c.ID, ProjectID: p.ID, ExpenseType: model.ExpenseLabour, Credit: decimal.NewFromInt(1)},
		"unknown type":    {CustomerID: c.ID, ProjectID: p.ID, ExpenseType: "bribe", Debit: decimal.NewFromInt(1)},
		"manual serial":   {CustomerID: c.ID, ProjectID: p.ID, ExpenseType: model.ExpenseLabour, Debit: decimal.NewFromInt(1), SerialNumber: &serial},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.transactions.Create(context.Background(), 1, req)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestTransactionService_NextSerial(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")

	next, err := env.transactions.NextSerial(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.SerialNumber)

	env.expense(t, c.ID, p.ID, "A", 1)
	env.expense(t, c.ID, p.ID, "B", 1)
	next, err = env.transactions.NextSerial(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, next.SerialNumber)

	// preview has no side effect
	next, err = env.transactions.NextSerial(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, next.SerialNumber)

	_, err = env.transactions.NextSerial(ctx, c.ID, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTransactionService_Update(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")
	txn := env.expense(t, c.ID, p.ID, "A", 10)

	remark := "fixed"
	amount := decimal.RequireFromString("12.345")
	updated, err := env.transactions.Update(ctx, 1, txn.ID, model.TransactionUpdateRequest{Remark: &remark, Debit: &amount})
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Remark)
	assert.True(t, updated.Debit.Equal(decimal.RequireFromString("12.35")))
	assert.Equal(t, 1, updated.SerialNumber)

	credit := model.ExpenseInvestment
	_, err = env.transactions.Update(ctx, 1, txn.ID, model.TransactionUpdateRequest{ExpenseType: &credit})
	assert.ErrorIs(t, err, model.ErrValidation)

	other := p.ID + 1
	_, err = env.transactions.Update(ctx, 1, txn.ID, model.TransactionUpdateRequest{ProjectID: &other})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = env.transactions.Update(ctx, 1, 999, model.TransactionUpdateRequest{Remark: &remark})
	assert.ErrorIs(t, err, model.ErrTransactionNotFound)
}

func TestTransactionService_Repair(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")

	a := env.expense(t, c.ID, p.ID, "A", 1)
	b := env.expense(t, c.ID, p.ID, "B", 1)
	cc := env.expense(t, c.ID, p.ID, "C", 1)

	// simulate a gap and a duplicate left behind by an old writer
	require.NoError(t, env.txnRepo.ApplySerials(ctx, []ledger.Change{
		{ID: a.ID, From: 1, To: 2},
		{ID: b.ID, From: 2, To: 2},
		{ID: cc.ID, From: 3, To: 5},
	}))
	scope := ledger.Scope{CustomerID: c.ID, ProjectID: p.ID}
	report, err := env.transactions.Verify(ctx, scope)
	require.NoError(t, err)
	assert.False(t, report.Contiguous())

	res, err := env.transactions.RepairAll(ctx, RepairSourceCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scopes)
	assert.Equal(t, 1, res.Repaired)
	assert.Equal(t, 2, res.Renumbered)

	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, env.serials(t, c.ID, p.ID))
	report, err = env.transactions.Verify(ctx, scope)
	require.NoError(t, err)
	assert.True(t, report.Contiguous())

	n, err := env.transactions.RepairScope(ctx, scope, RepairSourceCLI)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, env.publisher.types(), model.EventScopeRepaired)
}

func TestTransactionService_InvalidatesSummary(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	c := env.customer(t, "Ravi")
	p := env.project(t, c.ID, "North")
	env.expense(t, c.ID, p.ID, "A", 10)

	_, err := env.customers.FinancialSummary(ctx, c.ID)
	require.NoError(t, err)
	key := fmt.Sprintf("test:summary:customer:%d", c.ID)
	require.True(t, env.mr.Exists(key))

	env.expense(t, c.ID, p.ID, "B", 5)
	assert.False(t, env.mr.Exists(key))

	summary, err := env.customers.FinancialSummary(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, summary.TotalDebit.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, int64(2), summary.TransactionCount)
}
