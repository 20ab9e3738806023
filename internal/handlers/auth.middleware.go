package handlers

import (
	"context"
	"strings"

	"github.com/nimasrn/farm-ledger/internal/model"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
)

const userKey = "auth.user"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Guard protects routes with a bearer token and a role allow-list.
type Guard struct {
	auth Authenticator
}

func NewGuard(auth Authenticator) *Guard {
	return &Guard{auth: auth}
}

// Require admits active users whose role is one of roles.
func (g *Guard) Require(roles ...model.Role) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			token, ok := bearer(ctx)
			if !ok {
				writeMessage(ctx, xhttp.StatusUnauthorized, "missing bearer token")
				return
			}
			u, err := g.auth.Authenticate(ctx, token)
			if err != nil {
				writeError(ctx, err)
				return
			}
			if !allowed(u.Role, roles) {
				writeError(ctx, model.ErrInsufficientRole)
				return
			}
			ctx.SetUserValue(userKey, u)
			next(ctx)
		}
	}
}

// Member admits every role.
func (g *Guard) Member(next xhttp.RequestHandler) xhttp.RequestHandler {
	return g.Require(model.RoleAdmin, model.RoleMember)(next)
}

func (g *Guard) Admin(next xhttp.RequestHandler) xhttp.RequestHandler {
	return g.Require(model.RoleAdmin)(next)
}

// CurrentUser is the user put on the request by the guard, nil on public routes.
func CurrentUser(ctx *xhttp.RequestCtx) *model.User {
	u, _ := ctx.UserValue(userKey).(*model.User)
	return u
}

func actorID(ctx *xhttp.RequestCtx) int64 {
	if u := CurrentUser(ctx); u != nil {
		return u.ID
	}
	return 0
}

func bearer(ctx *xhttp.RequestCtx) (string, bool) {
	h := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func allowed(role model.Role, roles []model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
