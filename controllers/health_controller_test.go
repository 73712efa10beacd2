package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	NewHealthController(nil).Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 2, "Response should have exactly 2 fields")
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Lab Orders API is running", response["message"])
}

func TestDatabaseStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)

	router := gin.New()
	router.GET("/api/v1/database/status", NewHealthController(db).DatabaseStatus)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/database/status", nil)
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Success bool     `json:"success"`
		Tables  []string `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Subset(t, response.Tables, []string{"clients", "operators", "orders"})

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w = serve(router, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
