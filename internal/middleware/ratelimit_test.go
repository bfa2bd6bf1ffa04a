package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func throttledRouter(t *testing.T, perMinute int, trusted []string) *gin.Engine {
	t.Helper()
	router := gin.New()
	require.NoError(t, router.SetTrustedProxies(trusted))
	router.Use(ClientRateLimit(perMinute))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func callFrom(router *gin.Engine, remote, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remote
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestClientRateLimit_PerIP(t *testing.T) {
	router := gin.New()
	router.Use(ClientRateLimit(3)) // burst of 1
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:4000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:4001"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:4000"))
}

func TestClientRateLimit_RotatingForwardedForIsIgnored(t *testing.T) {
	router := throttledRouter(t, 3, nil)

	limited := 0
	for i := 0; i < 50; i++ {
		w := callFrom(router, "203.0.113.7:5000", fmt.Sprintf("10.0.0.%d", i))
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 49, limited)
}

func TestClientRateLimit_TrustedProxyForwardsClientIP(t *testing.T) {
	router := throttledRouter(t, 3, []string{"10.1.0.0/16"})

	assert.Equal(t, http.StatusOK, callFrom(router, "10.1.0.5:5000", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, callFrom(router, "10.1.0.5:5001", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, callFrom(router, "10.1.0.6:5000", "198.51.100.1").Code)
}

func TestClientRateLimit_PlainTextRejection(t *testing.T) {
	router := throttledRouter(t, 3, nil)
	callFrom(router, "10.0.0.1:4000", "")

	w := callFrom(router, "10.0.0.1:4000", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "Demasiadas solicitudes, intenta de nuevo en 1 minuto", w.Body.String())
	assert.Equal(t, "20", w.Header().Get("Retry-After"))
}

func TestThrottleMessage(t *testing.T) {
	assert.Equal(t, "Demasiadas solicitudes, intenta de nuevo en 1 minuto", throttleMessage(200*time.Millisecond))
	assert.Equal(t, "Demasiadas solicitudes, intenta de nuevo en 1 minuto", throttleMessage(time.Minute))
	assert.Equal(t, "Demasiadas solicitudes, intenta de nuevo en 2 minutos", throttleMessage(61*time.Second))
}

func TestClientRateLimit_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(ClientRateLimit(0))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	l := newClientLimiter(60)
	now := time.Now()
	l.allow("10.0.0.1", now.Add(-time.Hour))
	l.allow("10.0.0.2", now)

	l.evict(now.Add(-clientIdleTTL))
	assert.NotContains(t, l.limiters, "10.0.0.1")
	assert.Contains(t, l.limiters, "10.0.0.2")
}
