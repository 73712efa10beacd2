package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testApp struct {
	router   *gin.Engine
	db       *gorm.DB
	files    *services.MockFileStorage
	notifier *services.RecordingNotifier
	reporter *recordingReporter
}

type recordingReporter struct {
	reports []services.ErrorReport
}

func (r *recordingReporter) Report(report services.ErrorReport) {
	r.reports = append(r.reports, report)
}

func testConfig() *config.Config {
	return &config.Config{
		GoEnv:              "test",
		JWTSecret:          "test-secret",
		JWTIssuer:          "lab-orders-api",
		JWTAudience:        "lab-orders",
		TokenTTL:           time.Hour,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "app.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	app := &testApp{
		db:       db,
		files:    services.NewMockFileStorage(),
		notifier: services.NewRecordingNotifier(),
		reporter: &recordingReporter{},
	}
	app.router, err = setupRouter(dependencies{
		cfg:         testConfig(),
		db:          db,
		files:       app.files,
		notifier:    app.notifier,
		revocations: services.NewMemoryRevocationStore(),
		reporter:    app.reporter,
		logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return app
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status code 200")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "Response should be valid JSON")
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Lab Orders API is running", response["message"])
}

func TestRoutesRequireAuthentication(t *testing.T) {
	app := newTestApp(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodPost, "/api/v1/client/orders"},
		{http.MethodGet, "/api/v1/client/orders"},
		{http.MethodGet, "/api/v1/client/orders/1/pdf"},
		{http.MethodGet, "/api/v1/operator/orders"},
		{http.MethodGet, "/api/v1/operator/orders/new/count"},
		{http.MethodPatch, "/api/v1/operator/orders/update/1/forward"},
		{http.MethodPost, "/api/v1/operator/orders/1/field-work"},
		{http.MethodDelete, "/api/v1/operator/orders/1"},
		{http.MethodGet, "/api/v1/operator/clients"},
		{http.MethodDelete, "/api/v1/operator/clients/1"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req, _ := http.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()
			app.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodOptions, "/api/v1/client/orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
