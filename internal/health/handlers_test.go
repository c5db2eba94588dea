package health

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

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthCheck(t *testing.T) {
	w := serve(t, NewHandler(fakePinger{}), "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyReflectsStore(t *testing.T) {
	w := serve(t, NewHandler(fakePinger{}), "/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, NewHandler(fakePinger{err: errors.New("down")}), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(t, NewHandler(nil), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
