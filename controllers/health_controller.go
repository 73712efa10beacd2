package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthController reports on the API process and its database.
type HealthController struct {
	db *gorm.DB
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db}
}

// Health handles GET /api/v1/health
func (hc *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Lab Orders API is running",
	})
}

// DatabaseStatus checks database connectivity and returns table information
func (hc *HealthController) DatabaseStatus(c *gin.Context) {
	sqlDB, err := hc.db.DB()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to get database instance", nil)
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_CONNECTION_ERROR", "Database connection failed", nil)
		return
	}

	tables, err := hc.db.WithContext(c.Request.Context()).Migrator().GetTables()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_QUERY_ERROR", "Failed to query tables", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
