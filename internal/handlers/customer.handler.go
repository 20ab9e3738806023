package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/farm-ledger/internal/model"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
)

type CustomerService interface {
	Create(ctx context.Context, req model.CustomerCreateRequest) (*model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, error)
	Update(ctx context.Context, id int64, req model.CustomerUpdateRequest) (*model.Customer, error)
	ToggleStatus(ctx context.Context, id int64) (*model.Customer, error)
	Delete(ctx context.Context, actorID, id int64) error
	FinancialSummary(ctx context.Context, id int64) (*model.FinancialSummary, error)
	RevealNationalID(ctx context.Context, id int64) (*model.NationalIDReveal, error)
	Scan(ctx context.Context, req model.ScanRequest) (*model.CustomerDraft, error)
}

type CustomerHandler struct {
	svc CustomerService
}

func NewCustomerHandler(svc CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

func RegisterCustomerRoutes(g *router.Group, h *CustomerHandler, guard *Guard) {
	g.GET("/customers", guard.Member(h.List))
	g.POST("/customers", guard.Member(h.Create))
	g.POST("/customers/scan", guard.Member(h.Scan))
	g.GET("/customers/{id}", guard.Member(h.Get))
	g.PUT("/customers/{id}", guard.Member(h.Update))
	g.DELETE("/customers/{id}", guard.Admin(h.Delete))
	g.PATCH("/customers/{id}/toggle-status", guard.Member(h.ToggleStatus))
	g.GET("/customers/{id}/financial-summary", guard.Member(h.FinancialSummary))
	g.GET("/customers/{id}/national-id", guard.Admin(h.RevealNationalID))
}

func (h *CustomerHandler) List(ctx *xhttp.RequestCtx) {
	f := model.CustomerFilter{
		Search: query(ctx, "search"),
		Status: model.CustomerStatus(query(ctx, "status")),
	}
	items, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeList(ctx, items)
}

func (h *CustomerHandler) Create(ctx *xhttp.RequestCtx) {
	var req model.CustomerCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	c, err := h.svc.Create(ctx, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusCreated, c)
}

func (h *CustomerHandler) Get(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	c, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, c)
}

func (h *CustomerHandler) Update(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.CustomerUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	c, err := h.svc.Update(ctx, id, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, c)
}

func (h *CustomerHandler) Delete(ctx *xhttp.RequestCtx) {
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

func (h *CustomerHandler) ToggleStatus(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	c, err := h.svc.ToggleStatus(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, c)
}

func (h *CustomerHandler) FinancialSummary(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	s, err := h.svc.FinancialSummary(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, s)
}

func (h *CustomerHandler) RevealNationalID(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	r, err := h.svc.RevealNationalID(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Response.Header.Set("Cache-Control", "no-store")
	writeData(ctx, xhttp.StatusOK, r)
}

func (h *CustomerHandler) Scan(ctx *xhttp.RequestCtx) {
	var req model.ScanRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	d, err := h.svc.Scan(ctx, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, d)
}
