package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polaris-foundation/polaris-locations-api/config"
	"github.com/polaris-foundation/polaris-locations-api/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{JWTSecret: "middleware-test-secret-0123", Issuer: "polaris-test"})
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── auth ──

func TestJWTAuth(t *testing.T) {
	mgr := newJWT()
	r := gin.New()
	r.GET("/p", JWTAuth(mgr), func(c *gin.Context) {
		c.String(http.StatusOK, "%s %v", c.GetString(ContextUserID), HasScope(c, "read:location_all"))
	})

	token, err := mgr.GenerateToken("user-1", []string{"read:location_all"}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := map[string]string{}
			if tt.header != "" {
				h["Authorization"] = tt.header
			}
			w := perform(r, http.MethodGet, "/p", h)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "user-1 true", w.Body.String())
			}
		})
	}
}

func TestRequireScopes(t *testing.T) {
	mgr := newJWT()
	r := gin.New()
	r.GET("/w", JWTAuth(mgr), RequireScopes("write:location", "write:gdm_location"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	writer, _ := mgr.GenerateToken("u", []string{"write:gdm_location"}, time.Minute)
	reader, _ := mgr.GenerateToken("u", []string{"read:location_all"}, time.Minute)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/w", map[string]string{"Authorization": "Bearer " + writer}).Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/w", map[string]string{"Authorization": "Bearer " + reader}).Code)

	bare := gin.New()
	bare.GET("/w", RequireScopes("write:location"), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, perform(bare, http.MethodGet, "/w", nil).Code)
}

// ── rate limit ──

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int{}}
	r := gin.New()
	r.POST("/x", RateLimit(limiter, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/x", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/x", nil).Code)

	limiter.err = errors.New("redis down")
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/x", nil).Code, "limiter errors let requests through")

	open := gin.New()
	open.POST("/x", RateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, perform(open, http.MethodPost, "/x", nil).Code)
	}
}

// ── plumbing ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := perform(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc", w.Body.String())

	w = perform(r, http.MethodGet, "/", map[string]string{"X-Request-ID": strings.Repeat("x", 100)})
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://app.local/"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/", map[string]string{"Origin": "http://app.local"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Location-Ids")

	w = perform(r, http.MethodGet, "/", map[string]string{"Origin": "http://evil.local"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			if IsBodyTooLarge(err) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"display_name":"a long body"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/dhos/v1/location/:location_id", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/dhos/v1/location/a", nil)
	perform(r, http.MethodGet, "/dhos/v1/location/b", nil)
	perform(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/dhos/v1/location/:location_id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}
