package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(1, 2)
	defer limiter.Stop()

	router := gin.New()
	router.GET("/", limiter.IPRateLimiterMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	get := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		return recorder.Code
	}

	// Burst of two, then throttled.
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1:1234"))

	// Buckets are per address.
	assert.Equal(t, http.StatusOK, get("10.0.0.2:1234"))
}

func TestStopTerminatesCleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.Stop()

	// The cleanup goroutine selects on done; a stopped ticker alone
	// would leave it blocked forever.
	select {
	case <-limiter.done:
	default:
		t.Fatal("done channel is not closed after Stop")
	}
}
