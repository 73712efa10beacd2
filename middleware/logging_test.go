package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingReporter struct {
	mu      sync.Mutex
	reports []services.ErrorReport
}

func (r *recordingReporter) Report(report services.ErrorReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(RequestID(), Logger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/broken"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/broken", entries[2].ContextMap()["path"])
	assert.NotEmpty(t, entries[2].ContextMap()["request_id"])
}

func TestReportErrors_OnlyServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reporter := &recordingReporter{}

	router := gin.New()
	router.Use(RequestID(), ReportErrors(reporter))
	router.GET("/db", func(c *gin.Context) {
		_ = c.Error(errors.New("connection refused"))
		c.Status(http.StatusInternalServerError)
	})
	router.GET("/bad", func(c *gin.Context) {
		_ = c.Error(errors.New("bad input"))
		c.Status(http.StatusBadRequest)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Empty(t, reporter.reports)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/db", nil))
	require.Len(t, reporter.reports, 1)
	assert.Contains(t, reporter.reports[0].Message, "connection refused")
	assert.Equal(t, "/db", reporter.reports[0].Path)
}

func TestRecovery_ReportsPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reporter := &recordingReporter{}

	router := gin.New()
	router.Use(RequestID(), Recovery(reporter))
	router.GET("/panic", func(c *gin.Context) { panic("nil map write") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	require.Len(t, reporter.reports, 1)
	assert.Equal(t, "nil map write", reporter.reports[0].Message)
	assert.Equal(t, "/panic", reporter.reports[0].Path)
	assert.NotEmpty(t, reporter.reports[0].Stack)
	assert.NotEmpty(t, reporter.reports[0].RequestID)
}
