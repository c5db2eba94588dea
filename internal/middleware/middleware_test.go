package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGeneralRateLimitBlocksBurst(t *testing.T) {
	router := gin.New()
	router.Use(GeneralRateLimit(NewIPRateLimiter(rate.Every(time.Hour), 2)))
	router.GET("/api/v1/projects", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiterCleanup(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(time.Second), 1)
	limiter.GetLimiter("10.0.0.1")
	limiter.GetLimiter("10.0.0.2")
	assert.Equal(t, 2, limiter.Size())

	assert.Equal(t, 0, limiter.Cleanup(time.Hour))
	assert.Equal(t, 2, limiter.Cleanup(-time.Second))
	assert.Equal(t, 0, limiter.Size())
}

func TestRequestSizeLimit(t *testing.T) {
	router := gin.New()
	router.Use(RequestSizeLimit(8))
	router.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("much too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders(false))
	router.GET("/api/v1/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestSecureCORSConfig(t *testing.T) {
	cfg := SecureCORSConfig("https://app.example.com, ftp://bad, *", false)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowOrigins)
	assert.False(t, cfg.AllowAllOrigins)
	assert.NoError(t, cfg.Validate())

	dev := SecureCORSConfig("", true)
	assert.Contains(t, dev.AllowOrigins, "http://localhost:19006")

	none := SecureCORSConfig("", false)
	assert.NotNil(t, none.AllowOriginFunc)
	assert.False(t, none.AllowOriginFunc("https://anything.example"))
}

func TestWebSocketOriginCheck(t *testing.T) {
	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws/projects/p1/dashboard", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	check := WebSocketOriginCheck("https://app.example.com", false)
	assert.True(t, check(request("https://app.example.com")))
	assert.True(t, check(request("")))
	assert.False(t, check(request("https://evil.example.net")))
	assert.False(t, check(request("http://localhost:19006")))

	none := WebSocketOriginCheck("", false)
	assert.False(t, none(request("https://app.example.com")))

	dev := WebSocketOriginCheck("", true)
	assert.True(t, dev(request("https://evil.example.net")))
}
