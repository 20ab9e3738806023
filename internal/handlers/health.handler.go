package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/farm-ledger/internal/model"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
)

type HealthService interface {
	Check(ctx context.Context) *model.HealthStatus
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(g *router.Group, h *HealthHandler) {
	g.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{
		svc: svc,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	st := h.svc.Check(ctx)
	status := xhttp.StatusOK
	if st.Status != "ok" {
		status = xhttp.StatusServiceUnavailable
	}
	writeJSON(ctx, status, envelope{Success: status == xhttp.StatusOK, Data: st})
}
