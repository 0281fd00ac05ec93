package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the access level carried in the token.
type Role string

const (
	RoleStaff  Role = "staff"  // front desk: holds, confirmations, bookings
	RoleAdmin  Role = "admin"  // tenant admin: also policies and block lifting
	RoleSystem Role = "system" // integrations such as the messaging webhook
)

func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Claims defines the JWT claims we embed in our token.
type Claims struct {
	UserID   string `json:"sub"`
	TenantID string `json:"tid"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

const clockSkew = 30 * time.Second

// JWTManager manages JWT access token creation and validation.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// GenerateAccessToken creates a signed JWT for the given user acting within a tenant.
func (m *JWTManager) GenerateAccessToken(userID, tenantID string, role Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := time.Now().UTC()

	claims := &Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}

	return signed, nil
}

// ParseAndValidate validates a JWT and returns the parsed claims. Tokens come from an external
// identity provider, so a small leeway absorbs clock skew between the two hosts.
func (m *JWTManager) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwt: %w", err)
	}

	if claims.TenantID == "" || !claims.Role.Valid() {
		return nil, errors.New("jwt token is missing tenant or role")
	}

	return claims, nil
}
