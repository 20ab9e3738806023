package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

var hideInternalErrors atomic.Bool

// HideInternalErrors replaces the message of 500 responses with a generic
// one. It is switched on in production.
func HideInternalErrors(hide bool) {
	hideInternalErrors.Store(hide)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("response encoding failed", "error", err, "path", string(ctx.Path()))
		status = xhttp.StatusInternalServerError
		b = []byte(`{"success":false,"error":"internal server error"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeData(ctx *xhttp.RequestCtx, status int, data any) {
	writeJSON(ctx, status, envelope{Success: true, Data: data})
}

func writeList[T any](ctx *xhttp.RequestCtx, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	writeJSON(ctx, xhttp.StatusOK, envelope{Success: true, Data: items, Count: &n})
}

func writeMessage(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, envelope{Success: status < 400, Error: msg})
}

func writeBadJSON(ctx *xhttp.RequestCtx, err error) {
	writeMessage(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
}

// writeError maps service errors onto status codes.
func writeError(ctx *xhttp.RequestCtx, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == xhttp.StatusInternalServerError {
		logger.Error("request failed", "error", err, "method", string(ctx.Method()), "path", string(ctx.Path()), "request_id", xhttp.RequestID(ctx))
		if hideInternalErrors.Load() {
			msg = "internal server error"
		}
	}
	writeMessage(ctx, status, msg)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrDuplicate):
		return xhttp.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized):
		return xhttp.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return xhttp.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return xhttp.StatusNotFound
	}
	return xhttp.StatusInternalServerError
}

// pathID reads a positive integer route parameter.
func pathID(ctx *xhttp.RequestCtx, name string) (int64, error) {
	raw := fmt.Sprint(ctx.UserValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ValidationError("%s must be a positive integer", name)
	}
	return id, nil
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

func queryDate(ctx *xhttp.RequestCtx, key string) (*model.Date, error) {
	v := query(ctx, key)
	if v == "" {
		return nil, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return nil, model.ValidationError("%s must be a date (YYYY-MM-DD)", key)
	}
	return &d, nil
}
