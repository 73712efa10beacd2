package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/cmsp-lab/lab-orders-api/middleware"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/cmsp-lab/lab-orders-api/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()

	f := newFixture(t)
	cfg := &config.Config{
		GoEnv:       "test",
		JWTSecret:   "test-secret",
		JWTIssuer:   "lab-orders-api",
		JWTAudience: "lab-orders",
		TokenTTL:    time.Hour,
	}
	auth := services.NewAuthService(f.db, cfg, services.NewMemoryRevocationStore())
	authenticate, err := middleware.EnsureValidToken(middleware.TokenSettings{
		Secret:   auth.Secret(),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}, auth, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = f.clients.Create(bg, services.ClientFields{
		BusinessName: "Studio Bianchi",
		FirstName:    "Luca",
		LastName:     "Bianchi",
		Email:        "luca@bianchi.example",
		Username:     "bianchi",
		Password:     "s3cret!",
	})
	require.NoError(t, err)

	controller := NewAuthController(auth)
	router := gin.New()
	router.POST("/api/v1/auth/login", controller.Login)
	router.POST("/api/v1/auth/logout", authenticate, controller.Logout)
	return router, f
}

func TestLogin(t *testing.T) {
	router, _ := setupAuthRouter(t)

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Successfully log in",
			body:           map[string]string{"username": "bianchi", "password": "s3cret!"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Fail with wrong password",
			body:           map[string]string{"username": "bianchi", "password": "nope"},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "UNAUTHORIZED",
		},
		{
			name:           "Fail with unknown user",
			body:           map[string]string{"username": "ghost", "password": "s3cret!"},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "UNAUTHORIZED",
		},
		{
			name:           "Fail with missing password",
			body:           map[string]string{"username": "bianchi"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.BearerRequest(t, http.MethodPost, "/api/v1/auth/login", "", jsonBody(t, tt.body), "application/json")
			w := serve(router, req)

			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			env := testutil.DecodeEnvelope(t, w.Body.Bytes(), nil)
			assert.Equal(t, tt.expectedError, env.ErrorCode())
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var session services.Session
			testutil.DecodeEnvelope(t, w.Body.Bytes(), &session)
			assert.NotEmpty(t, session.Token)
			assert.Equal(t, services.RoleClient, session.Role)
			assert.Equal(t, "Studio Bianchi", session.Name)
		})
	}
}

func TestLogout(t *testing.T) {
	router, _ := setupAuthRouter(t)

	req := testutil.BearerRequest(t, http.MethodPost, "/api/v1/auth/login", "",
		jsonBody(t, map[string]string{"username": "bianchi", "password": "s3cret!"}), "application/json")
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	var session services.Session
	testutil.DecodeEnvelope(t, w.Body.Bytes(), &session)

	w = serve(router, testutil.BearerRequest(t, http.MethodPost, "/api/v1/auth/logout", session.Token, nil, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(router, testutil.BearerRequest(t, http.MethodPost, "/api/v1/auth/logout", session.Token, nil, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REVOKED", testutil.DecodeEnvelope(t, w.Body.Bytes(), nil).ErrorCode())

	w = serve(router, testutil.BearerRequest(t, http.MethodPost, "/api/v1/auth/logout", "", nil, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
