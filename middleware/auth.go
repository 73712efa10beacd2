package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	principalKey = "principal"
	claimsKey    = "validated_claims"
)

// CustomClaims contains the non-registered claims of an access token.
type CustomClaims struct {
	Role string `json:"role"`
}

// Validate rejects tokens whose role claim is not a known account kind.
func (c CustomClaims) Validate(ctx context.Context) error {
	switch services.Role(c.Role) {
	case services.RoleClient, services.RoleOperator:
		return nil
	}
	return fmt.Errorf("unknown role %q", c.Role)
}

// RevocationChecker reports whether a token id has been logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenSettings describes how access tokens are signed.
type TokenSettings struct {
	Secret   []byte
	Issuer   string
	Audience string
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// EnsureValidToken checks the bearer token, rejects logged-out tokens and
// stores the principal in the gin context.
func EnsureValidToken(settings TokenSettings, revocations RevocationChecker, logger *zap.Logger) (gin.HandlerFunc, error) {
	jwtValidator, err := validator.New(
		func(ctx context.Context) (interface{}, error) {
			return settings.Secret, nil
		},
		validator.HS256,
		settings.Issuer,
		[]string{settings.Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Debug("rejected token", zap.Error(err))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			logger.Warn("failed to write error response", zap.Error(writeErr))
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			principal, err := services.ParseSubject(claims.RegisteredClaims.Subject)
			if err != nil || string(principal.Role) != claims.CustomClaims.(*CustomClaims).Role {
				abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Failed to validate JWT.")
				return
			}

			revoked, err := revocations.IsRevoked(r.Context(), claims.RegisteredClaims.ID)
			if err != nil {
				logger.Error("failed to check token revocation", zap.Error(err))
				abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not verify the session")
				return
			}
			if revoked {
				abortWithError(c, http.StatusUnauthorized, "TOKEN_REVOKED", "The session has ended, please log in again")
				return
			}

			c.Request = r
			c.Set(principalKey, principal)
			c.Set(claimsKey, claims)
			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}, nil
}

// GetPrincipal extracts the authenticated account from the Gin context
func GetPrincipal(c *gin.Context) (services.Principal, error) {
	value, exists := c.Get(principalKey)
	if !exists {
		return services.Principal{}, &AuthError{Code: "MISSING_PRINCIPAL", Message: "Principal not found in context"}
	}

	principal, ok := value.(services.Principal)
	if !ok {
		return services.Principal{}, &AuthError{Code: "INVALID_PRINCIPAL", Message: "Principal is not in the expected format"}
	}

	return principal, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// SetPrincipal stores an already authenticated principal, for routes mounted behind another authenticator.
func SetPrincipal(c *gin.Context, p services.Principal) {
	c.Set(principalKey, p)
}

// RequireRole is a middleware that only lets the given account kind through
func RequireRole(role services.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := GetPrincipal(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not retrieve the authenticated account")
			return
		}

		if principal.Role != role {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions to access this resource")
			return
		}

		c.Next()
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
