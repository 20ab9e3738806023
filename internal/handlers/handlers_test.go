package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nimasrn/farm-ledger/internal/model"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) Create(ctx context.Context, actorID int64, req model.TransactionCreateRequest) (*model.Transaction, error) {
	args := m.Called(ctx, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Update(ctx context.Context, actorID, id int64, req model.TransactionUpdateRequest) (*model.Transaction, error) {
	args := m.Called(ctx, actorID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Delete(ctx context.Context, actorID, id int64) error {
	return m.Called(ctx, actorID, id).Error(0)
}

func (m *MockTransactionService) NextSerial(ctx context.Context, customerID, projectID int64) (*model.NextSerial, error) {
	args := m.Called(ctx, customerID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NextSerial), args.Error(1)
}

type stubHealth struct{ st *model.HealthStatus }

func (s stubHealth) Check(context.Context) *model.HealthStatus { return s.st }

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Error   string          `json:"error"`
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func decode(t *testing.T, ctx *xhttp.RequestCtx) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &r))
	return r
}

var member = &model.User{ID: 7, Username: "clerk", Role: model.RoleMember, IsActive: true}

func TestGuard(t *testing.T) {
	ok := func(ctx *xhttp.RequestCtx) {
		assert.Equal(t, int64(7), actorID(ctx))
		writeMessage(ctx, xhttp.StatusOK, "")
	}

	t.Run("missing token", func(t *testing.T) {
		guard := NewGuard(new(MockAuthenticator))
		ctx := setupTestContext("GET", "/api/customers", nil)
		guard.Member(ok)(ctx)
		assert.Equal(t, 401, ctx.Response.StatusCode())
	})

	t.Run("invalid token", func(t *testing.T) {
		a := new(MockAuthenticator)
		a.On("Authenticate", mock.Anything, "bad").Return(nil, model.ErrInvalidToken)
		ctx := setupTestContext("GET", "/api/customers", nil)
		ctx.Request.Header.Set("Authorization", "Bearer bad")
		NewGuard(a).Member(ok)(ctx)
		assert.Equal(t, 401, ctx.Response.StatusCode())
		assert.False(t, decode(t, ctx).Success)
	})

	t.Run("inactive user", func(t *testing.T) {
		a := new(MockAuthenticator)
		a.On("Authenticate", mock.Anything, "tok").Return(nil, model.ErrInactiveUser)
		ctx := setupTestContext("GET", "/api/customers", nil)
		ctx.Request.Header.Set("Authorization", "Bearer tok")
		NewGuard(a).Member(ok)(ctx)
		assert.Equal(t, 401, ctx.Response.StatusCode())
	})

	t.Run("member on admin route", func(t *testing.T) {
		a := new(MockAuthenticator)
		a.On("Authenticate", mock.Anything, "tok").Return(member, nil)
		ctx := setupTestContext("DELETE", "/api/customers/1", nil)
		ctx.Request.Header.Set("Authorization", "Bearer tok")
		NewGuard(a).Admin(ok)(ctx)
		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("member on member route", func(t *testing.T) {
		a := new(MockAuthenticator)
		a.On("Authenticate", mock.Anything, "tok").Return(member, nil)
		ctx := setupTestContext("GET", "/api/customers", nil)
		ctx.Request.Header.Set("Authorization", "bearer tok")
		NewGuard(a).Member(ok)(ctx)
		assert.Equal(t, 200, ctx.Response.StatusCode())
		a.AssertExpectations(t)
	})
}

func TestTransactionHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockTransactionService)
		h := NewTransactionHandler(svc)

		svc.On("Create", mock.Anything, int64(7), mock.MatchedBy(func(r model.TransactionCreateRequest) bool {
			return r.CustomerID == 1 && r.ProjectID == 2 && r.Debit.Equal(decimal.RequireFromString("150.5"))
		})).Return(&model.Transaction{ID: 9, CustomerID: 1, ProjectID: 2, SerialNumber: 3}, nil)

		ctx := setupTestContext("POST", "/api/transactions", []byte(`{"customerId":1,"projectId":2,"expenseType":"labour","debit":"150.50"}`))
		ctx.SetUserValue(userKey, member)
		h.Create(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		r := decode(t, ctx)
		assert.True(t, r.Success)
		var txn model.Transaction
		require.NoError(t, json.Unmarshal(r.Data, &txn))
		assert.Equal(t, 3, txn.SerialNumber)
		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		h := NewTransactionHandler(new(MockTransactionService))
		ctx := setupTestContext("POST", "/api/transactions", []byte("nope"))
		h.Create(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Contains(t, decode(t, ctx).Error, "invalid JSON")
	})

	for name, tc := range map[string]struct {
		err    error
		status int
	}{
		"missing project": {model.ErrProjectNotFound, 404},
		"bad amounts":     {model.ValidationError("debit must be 0 for investment"), 400},
		"database down":   {errors.New("dial tcp: refused"), 500},
	} {
		t.Run(name, func(t *testing.T) {
			svc := new(MockTransactionService)
			svc.On("Create", mock.Anything, int64(0), mock.Anything).Return(nil, tc.err)
			ctx := setupTestContext("POST", "/api/transactions", []byte(`{"customerId":1,"projectId":2}`))
			NewTransactionHandler(svc).Create(ctx)
			assert.Equal(t, tc.status, ctx.Response.StatusCode())
			assert.Equal(t, tc.err.Error(), decode(t, ctx).Error)
		})
	}
}

func TestWriteError_HidesInternalErrors(t *testing.T) {
	HideInternalErrors(true)
	defer HideInternalErrors(false)

	ctx := setupTestContext("GET", "/api/transactions/1", nil)
	writeError(ctx, errors.New("pq: password authentication failed"))
	assert.Equal(t, 500, ctx.Response.StatusCode())
	assert.Equal(t, "internal server error", decode(t, ctx).Error)

	ctx = setupTestContext("GET", "/api/transactions/1", nil)
	writeError(ctx, model.ErrTransactionNotFound)
	assert.Equal(t, 404, ctx.Response.StatusCode())
	assert.Equal(t, "transaction not found", decode(t, ctx).Error)
}

func TestTransactionHandler_ListByCustomer(t *testing.T) {
	t.Run("filters", func(t *testing.T) {
		svc := new(MockTransactionService)
		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.TransactionFilter) bool {
			return f.CustomerID == 4 && f.ProjectID != nil && *f.ProjectID == 2 &&
				f.ExpenseType == model.ExpenseSeeds && f.Search == "urea" &&
				f.From != nil && f.From.String() == "2024-01-01" && f.To == nil
		})).Return([]*model.Transaction{{ID: 1}, {ID: 2}}, nil)

		ctx := setupTestContext("GET", "/api/transactions/customer/4?projectId=2&expenseType=seeds&search=urea&from=2024-01-01", nil)
		ctx.SetUserValue("customerId", "4")
		NewTransactionHandler(svc).ListByCustomer(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		r := decode(t, ctx)
		require.NotNil(t, r.Count)
		assert.Equal(t, 2, *r.Count)
		svc.AssertExpectations(t)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		svc := new(MockTransactionService)
		svc.On("List", mock.Anything, mock.Anything).Return(nil, nil)
		ctx := setupTestContext("GET", "/api/transactions/customer/4", nil)
		ctx.SetUserValue("customerId", "4")
		NewTransactionHandler(svc).ListByCustomer(ctx)
		assert.JSONEq(t, `{"success":true,"data":[],"count":0}`, string(ctx.Response.Body()))
	})

	for name, uri := range map[string]string{
		"bad date":    "/api/transactions/customer/4?from=yesterday",
		"bad project": "/api/transactions/customer/4?projectId=abc",
	} {
		t.Run(name, func(t *testing.T) {
			ctx := setupTestContext("GET", uri, nil)
			ctx.SetUserValue("customerId", "4")
			NewTransactionHandler(new(MockTransactionService)).ListByCustomer(ctx)
			assert.Equal(t, 400, ctx.Response.StatusCode())
		})
	}
}

func TestTransactionHandler_NextSerialAndDelete(t *testing.T) {
	svc := new(MockTransactionService)
	h := NewTransactionHandler(svc)
	svc.On("NextSerial", mock.Anything, int64(1), int64(2)).Return(&model.NextSerial{CustomerID: 1, ProjectID: 2, SerialNumber: 5}, nil)
	svc.On("Delete", mock.Anything, int64(7), int64(9)).Return(nil)

	ctx := setupTestContext("GET", "/api/transactions/next-serial/1/2", nil)
	ctx.SetUserValue("customerId", "1")
	ctx.SetUserValue("projectId", "2")
	h.NextSerial(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":true,"data":{"customerId":1,"projectId":2,"serialNumber":5}}`, string(ctx.Response.Body()))

	ctx = setupTestContext("DELETE", "/api/transactions/9", nil)
	ctx.SetUserValue("id", "9")
	ctx.SetUserValue(userKey, member)
	h.Delete(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.True(t, decode(t, ctx).Success)

	ctx = setupTestContext("GET", "/api/transactions/x", nil)
	ctx.SetUserValue("id", "x")
	h.Get(ctx)
	assert.Equal(t, 400, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	ctx := setupTestContext("GET", "/api/health", nil)
	NewHealthHandler(stubHealth{&model.HealthStatus{Status: "ok", Database: "up", Redis: "up"}}).GetHealth(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())

	ctx = setupTestContext("GET", "/api/health", nil)
	NewHealthHandler(stubHealth{&model.HealthStatus{Status: "degraded", Database: "down", Redis: "up"}}).GetHealth(ctx)
	assert.Equal(t, 503, ctx.Response.StatusCode())
	assert.False(t, decode(t, ctx).Success)
}

func TestRoutes(t *testing.T) {
	a := new(MockAuthenticator)
	a.On("Authenticate", mock.Anything, "tok").Return(member, nil)
	guard := NewGuard(a)

	txns := new(MockTransactionService)
	txns.On("NextSerial", mock.Anything, int64(1), int64(2)).Return(&model.NextSerial{SerialNumber: 1}, nil)
	txns.On("Get", mock.Anything, int64(3)).Return(&model.Transaction{ID: 3}, nil)

	r := xhttp.CreateDefaultRouter()
	api := r.Group("/api")
	RegisterHealthRoutes(api, NewHealthHandler(stubHealth{&model.HealthStatus{Status: "ok"}}))
	RegisterAuthRoutes(api, NewAuthHandler(nil), guard)
	RegisterCustomerRoutes(api, NewCustomerHandler(new(MockCustomerService)), guard)
	RegisterProjectRoutes(api, NewProjectHandler(nil), guard)
	RegisterTransactionRoutes(api, NewTransactionHandler(txns), guard)

	for uri, want := range map[string]int{
		"/api/transactions/next-serial/1/2": 200,
		"/api/transactions/3":               200,
		"/api/health":                       200,
		"/api/nowhere":                      404,
	} {
		ctx := setupTestContext("GET", uri, nil)
		ctx.Request.Header.Set("Authorization", "Bearer tok")
		r.Handler(ctx)
		assert.Equal(t, want, ctx.Response.StatusCode(), uri)
	}

	ctx := setupTestContext("DELETE", "/api/customers/1", nil)
	ctx.Request.Header.Set("Authorization", "Bearer tok")
	r.Handler(ctx)
	assert.Equal(t, 403, ctx.Response.StatusCode())
	txns.AssertExpectations(t)
}
