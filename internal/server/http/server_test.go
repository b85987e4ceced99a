package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
)

func TestHealth(t *testing.T) {
	var cfg config.Config
	cfg.Observability.ServiceName = "subext"

	e := NewEcho(cfg, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"subext"}`, rec.Body.String())
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	e := NewEcho(config.Config{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
