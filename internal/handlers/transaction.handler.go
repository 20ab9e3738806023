package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/farm-ledger/internal/model"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
)

type TransactionService interface {
	Create(ctx context.Context, actorID int64, req model.TransactionCreateRequest) (*model.Transaction, error)
	Get(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error)
	Update(ctx context.Context, actorID, id int64, req model.TransactionUpdateRequest) (*model.Transaction, error)
	Delete(ctx context.Context, actorID, id int64) error
	NextSerial(ctx context.Context, customerID, projectID int64) (*model.NextSerial, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

func RegisterTransactionRoutes(g *router.Group, h *TransactionHandler, guard *Guard) {
	g.GET("/transactions/customer/{customerId}", guard.Member(h.ListByCustomer))
	g.GET("/transactions/next-serial/{customerId}/{projectId}", guard.Member(h.NextSerial))
	g.POST("/transactions", guard.Member(h.Create))
	g.GET("/transactions/{id}", guard.Member(h.Get))
	g.PUT("/transactions/{id}", guard.Member(h.Update))
	g.DELETE("/transactions/{id}", guard.Member(h.Delete))
}

func (h *TransactionHandler) ListByCustomer(ctx *xhttp.RequestCtx) {
	f, err := transactionFilter(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	items, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeList(ctx, items)
}

func transactionFilter(ctx *xhttp.RequestCtx) (model.TransactionFilter, error) {
	var f model.TransactionFilter
	customerID, err := pathID(ctx, "customerId")
	if err != nil {
		return f, err
	}
	f.CustomerID = customerID

	if query(ctx, "projectId") != "" {
		projectID, err := ctx.QueryArgs().GetUint("projectId")
		if err != nil || projectID == 0 {
			return f, model.ValidationError("projectId must be a positive integer")
		}
		id := int64(projectID)
		f.ProjectID = &id
	}
	f.ExpenseType = model.ExpenseType(query(ctx, "expenseType"))
	f.Search = query(ctx, "search")
	if f.From, err = queryDate(ctx, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(ctx, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *TransactionHandler) NextSerial(ctx *xhttp.RequestCtx) {
	customerID, err := pathID(ctx, "customerId")
	if err != nil {
		writeError(ctx, err)
		return
	}
	projectID, err := pathID(ctx, "projectId")
	if err != nil {
		writeError(ctx, err)
		return
	}
	next, err := h.svc.NextSerial(ctx, customerID, projectID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, next)
}

func (h *TransactionHandler) Create(ctx *xhttp.RequestCtx) {
	var req model.TransactionCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	txn, err := h.svc.Create(ctx, actorID(ctx), req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusCreated, txn)
}

func (h *TransactionHandler) Get(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	txn, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) Update(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.TransactionUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	txn, err := h.svc.Update(ctx, actorID(ctx), id, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) Delete(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	if err := h.svc.Delete(ctx, actorID(ctx), id); err != nil {
		writeError(ctx, err)
		return
	}
	writeMessage(ctx, xhttp.StatusOK, "")
}
