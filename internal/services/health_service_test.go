package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthService_Check(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	st := NewHealthService(up, up).Check(context.Background())
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "up", st.Database)

	st = NewHealthService(down, up).Check(context.Background())
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, "down", st.Database)

	st = NewHealthService(up, nil).Check(context.Background())
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "disabled", st.Redis)
}
