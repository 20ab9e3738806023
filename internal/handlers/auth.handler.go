package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/farm-ledger/internal/model"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
)

type AuthService interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
	Profile(ctx context.Context, userID int64) (*model.User, error)
	ChangePassword(ctx context.Context, userID int64, req model.ChangePasswordRequest) error
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func RegisterAuthRoutes(g *router.Group, h *AuthHandler, guard *Guard) {
	g.POST("/auth/login", h.Login)
	g.GET("/auth/profile", guard.Member(h.Profile))
	g.POST("/auth/change-password", guard.Member(h.ChangePassword))
}

func (h *AuthHandler) Login(ctx *xhttp.RequestCtx) {
	var req model.LoginRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	resp, err := h.svc.Login(ctx, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, resp)
}

func (h *AuthHandler) Profile(ctx *xhttp.RequestCtx) {
	u, err := h.svc.Profile(ctx, actorID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeData(ctx, xhttp.StatusOK, u)
}

func (h *AuthHandler) ChangePassword(ctx *xhttp.RequestCtx) {
	var req model.ChangePasswordRequest
	if err := readJSON(ctx, &req); err != nil {
		writeBadJSON(ctx, err)
		return
	}
	if err := h.svc.ChangePassword(ctx, actorID(ctx), req); err != nil {
		writeError(ctx, err)
		return
	}
	writeMessage(ctx, xhttp.StatusOK, "")
}
