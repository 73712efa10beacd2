package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Role distinguishes the two kinds of account.
type Role string

const (
	RoleClient   Role = "client"
	RoleOperator Role = "operator"
)

const MsgInvalidCredentials = "the provided credentials are not correct"

// Principal identifies an authenticated account.
type Principal struct {
	Role Role
	ID   uint
}

// Subject encodes the principal as a token subject, e.g. "operator:3".
func (p Principal) Subject() string {
	return fmt.Sprintf("%s:%d", p.Role, p.ID)
}

// ParseSubject is the inverse of Principal.Subject.
func ParseSubject(sub string) (Principal, error) {
	role, id, ok := strings.Cut(sub, ":")
	if !ok {
		return Principal{}, fmt.Errorf("malformed subject %q", sub)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return Principal{}, fmt.Errorf("malformed subject %q", sub)
	}
	switch Role(role) {
	case RoleClient, RoleOperator:
		return Principal{Role: Role(role), ID: uint(n)}, nil
	}
	return Principal{}, fmt.Errorf("unknown role in subject %q", sub)
}

// TokenClaims are the claims of an issued access token.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
}

// AuthService checks credentials and issues signed tokens.
type AuthService struct {
	db          *gorm.DB
	secret      []byte
	issuer      string
	audience    string
	ttl         time.Duration
	revocations RevocationStore
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, revocations RevocationStore) *AuthService {
	return &AuthService{
		db:          db,
		secret:      []byte(cfg.JWTSecret),
		issuer:      cfg.JWTIssuer,
		audience:    cfg.JWTAudience,
		ttl:         cfg.TokenTTL,
		revocations: revocations,
		now:         time.Now,
	}
}

// Login tries client accounts first, then operator accounts.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	var client models.Client
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&client).Error
	if err == nil && checkPassword(client.PasswordHash, password) {
		return s.issue(Principal{Role: RoleClient, ID: client.ID}, client.BusinessName)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	var op models.Operator
	err = s.db.WithContext(ctx).Where("username = ?", username).First(&op).Error
	if err == nil && checkPassword(op.PasswordHash, password) {
		return s.issue(Principal{Role: RoleOperator, ID: op.ID}, op.DisplayName())
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up operator: %w", err)
	}

	return nil, apperrors.Unauthorized(MsgInvalidCredentials)
}

// Logout revokes the token id for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return apperrors.Unauthorized("token has no id")
	}
	return s.revocations.Revoke(ctx, tokenID, expiresAt.Sub(s.now()))
}

// IsRevoked reports whether the token id was logged out.
func (s *AuthService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.revocations.IsRevoked(ctx, tokenID)
}

// Secret returns the HMAC key used to sign tokens.
func (s *AuthService) Secret() []byte {
	return s.secret
}

func (s *AuthService) issue(p Principal, name string) (*Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	claims := TokenClaims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Subject(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires, Role: p.Role, Name: name}, nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
