package controllers

import (
	"net/http"
	"time"

	"github.com/cmsp-lab/lab-orders-api/middleware"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
)

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=20"`
	Password string `json:"password" binding:"required,max=100"`
}

// AuthController handles session endpoints.
type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

// Login handles POST /api/v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	session, err := ac.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Login successful", session)
}

// Logout handles POST /api/v1/auth/logout - revokes the presented token
func (ac *AuthController) Logout(c *gin.Context) {
	claims, err := middleware.GetClaims(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not retrieve token claims", nil)
		return
	}

	expiresAt := time.Unix(claims.RegisteredClaims.Expiry, 0)
	if err := ac.auth.Logout(c.Request.Context(), claims.RegisteredClaims.ID, expiresAt); err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Logged out", nil)
}
