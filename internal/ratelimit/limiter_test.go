package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brightforge/relay/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.Config {
	return &config.Config{
		RateLimitAPIGlobal:   "1000-M",
		RateLimitAPICommand:  "2-M",
		RateLimitWsConnectIP: "2-M",
	}
}

func TestLimiter_Command_AllowsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, err := New(newTestConfig(), nil)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/cmd", l.Command(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/cmd", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLimiter_Command_RejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, err := New(newTestConfig(), nil)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/cmd", l.Command(), func(c *gin.Context) { c.Status(http.StatusOK) })

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/cmd", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		lastCode = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestLimiter_CheckWebSocketConnect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, err := New(newTestConfig(), nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws", nil)

	assert.True(t, l.CheckWebSocketConnect(c))
}
