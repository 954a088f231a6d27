package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDB struct {
	err error
}

func (s *stubDB) HealthCheck(ctx context.Context) error { return s.err }

func performHealthCheck(t *testing.T, db DatabaseHealthChecker) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHealthHandler(db, nil, nil)
	r := gin.New()
	r.GET("/health", h.HealthCheck)
	r.GET("/live", h.LivenessCheck)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck_Healthy(t *testing.T) {
	w := performHealthCheck(t, &stubDB{})

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["database"])
	assert.Equal(t, "not configured", resp.Services["redis"])
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	w := performHealthCheck(t, &stubDB{err: errors.New("connection refused")})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Services["database"], "unhealthy")
}

func TestHealthCheck_NotConfigured(t *testing.T) {
	w := performHealthCheck(t, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLivenessCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHealthHandler(&stubDB{}, nil, nil)
	r := gin.New()
	r.GET("/live", h.LivenessCheck)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}
