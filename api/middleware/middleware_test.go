package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"order-service/api/response"
	"order-service/config"
	"order-service/pkg/logger"
	"order-service/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	var fromCtx string
	engine.GET("/", func(c *gin.Context) {
		fromCtx = logger.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(engine, http.MethodGet, "/", nil)
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, fromCtx)

	w = serve(engine, http.MethodGet, "/", http.Header{RequestIDHeader: {"req-42"}})
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", fromCtx)
}

func TestLoggingMiddleware_CarriesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	engine := gin.New()
	engine.Use(RequestIDMiddleware(), LoggingMiddleware())
	engine.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve(engine, http.MethodGet, "/missing?x=1", http.Header{RequestIDHeader: {"req-1"}})

	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/missing?x=1", fields["path"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	engine := gin.New()
	engine.Use(RequestIDMiddleware(), RecoveryMiddleware())
	engine.GET("/", func(*gin.Context) { panic("boom") })

	w := serve(engine, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestCORSMiddleware(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "PUT"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       600,
	}
	engine := gin.New()
	engine.Use(CORSMiddleware(cfg))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodOptions, "/", http.Header{"Origin": {"http://localhost:3000"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, PUT", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	w = serve(engine, http.MethodGet, "/", http.Header{"Origin": {"http://evil.example"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestIDMiddleware(), RateLimitMiddleware(&config.RateLimitConfig{Enabled: true, Rate: 0.001, Burst: 2}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/", nil).Code)
	w := serve(engine, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	engine := gin.New()
	engine.Use(RateLimitMiddleware(&config.RateLimitConfig{Enabled: false, Rate: 0.001, Burst: 1}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/", nil).Code)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	engine := gin.New()
	engine.Use(MetricsMiddleware(m))
	engine.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(engine, http.MethodGet, "/orders/1", nil)
	serve(engine, http.MethodGet, "/orders/2", nil)
	serve(engine, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "Not Found")))
}

func TestHandleAppErrorEnvelope(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.GET("/", func(c *gin.Context) { response.HandleBindError(c, assert.AnError, "invalid request parameters") })

	w := serve(engine, http.MethodGet, "/", http.Header{RequestIDHeader: {"req-9"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `"request_id":"req-9"`), body)
	assert.Contains(t, body, `"success":false`)
}
