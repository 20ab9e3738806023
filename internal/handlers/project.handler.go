package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/farm-ledger/internal/model"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
)

type ProjectService interface {
	Create(ctx context.Context, req model.ProjectCreateRequest) (*model.Project, error)
	Get(ctx context.Context, id int64) (*model.Project, error)
	ListByCustomer(ctx context.Context, f model.ProjectFilter) ([]*model.Project, error)
	Update(ctx context.Context, id int64, req model.ProjectUpdateRequest) (*model.Project, error)
	Delete(ctx context.Context, actorID, id int64) error
}

type ProjectHandler struct {
	svc ProjectService
}

func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

func RegisterProjectRoutes(g *router.Group, h *ProjectHandler, guard *Guard) {
	g.GET("/projects/customer/{customerId}", guard.Member(h.ListByCustomer))
	g.POST("/projects", guard.Member(h.Create))
	g.GET("/projects/{id}", guard.Member(h.Get))
	g.PUT("/projects/{id}", guard.Member(h.Update))
	g.DELETE("/projects/{id}", guard.Admin(h.Delete))
}

func (h *ProjectHandler) ListByCustomer(ctx *xhttp.RequestCtx) {
	customerID, err := pathID(ctx, "customerId")
	if err != nil {
		writeError(ctx, err)
		return
	}
	items, err := h.svc.ListByCustomer(ctx, model.ProjectFilter{
		CustomerID: customerID,
		Search:     query(ctx, "search"),
		Status:     model.ProjectStatus(query(ctx, "status")),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeList(ctx, items)
}

func (h *ProjectHandler) Create(ctx *xhttp.RequestCtx) {
	var req model.ProjectCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	p, err := h.svc.Create(ctx, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusCreated, p)
}

func (h *ProjectHandler) Get(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	p, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, p)
}

func (h *ProjectHandler) Update(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.ProjectUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	p, err := h.svc.Update(ctx, id, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, p)
}

func (h *ProjectHandler) Delete(ctx *xhttp.RequestCtx) {
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
