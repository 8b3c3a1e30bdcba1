package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/types"
)

// Token errors. Their text is the code returned to clients.
var (
	ErrInvalidToken = errors.New("INVALID_TOKEN")
	ErrTokenExpired = errors.New("TOKEN_EXPIRED")
	ErrUserNotFound = errors.New("USER_NOT_FOUND")
)

// Code returns the client facing code of a token error.
func Code(err error) string {
	for _, e := range []error{ErrTokenExpired, ErrUserNotFound, ErrInvalidToken} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return ErrInvalidToken.Error()
}

// Validator resolves a bearer token to the calling identity.
type Validator interface {
	Validate(ctx context.Context, token string) (*types.Identity, error)
}

// MockValidator maps fixed development tokens to users.
type MockValidator struct {
	users map[string]config.MockUser
}

func NewMockValidator(users map[string]config.MockUser) *MockValidator {
	return &MockValidator{users: users}
}

func (m *MockValidator) Validate(_ context.Context, token string) (*types.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	u, ok := m.users[token]
	if !ok || u.UserID == "" {
		return nil, ErrUserNotFound
	}
	return &types.Identity{UserID: u.UserID, Email: u.Email, Name: u.Name, Roles: u.Roles, OrganizationID: u.OrganizationID}, nil
}

// Claims carried by session JWTs.
type Claims struct {
	Email          string   `json:"email,omitempty"`
	Name           string   `json:"name,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	OrganizationID string   `json:"organizationId,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator verifies HS256 tokens issued by the identity service.
type JWTValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
	clk    clock.Clock
}

func NewJWTValidator(secret, issuer string, leeway time.Duration, clk clock.Clock) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTValidator{secret: []byte(secret), issuer: issuer, leeway: leeway, clk: clk}, nil
}

func (v *JWTValidator) Validate(_ context.Context, token string) (*types.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.clk.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrUserNotFound
	}
	return &types.Identity{
		UserID:         claims.Subject,
		Email:          claims.Email,
		Name:           claims.Name,
		Roles:          claims.Roles,
		OrganizationID: claims.OrganizationID,
	}, nil
}

// Sign issues a token for id valid for ttl.
func (v *JWTValidator) Sign(id *types.Identity, ttl time.Duration) (string, error) {
	now := v.clk.Now()
	claims := Claims{
		Email:          id.Email,
		Name:           id.Name,
		Roles:          id.Roles,
		OrganizationID: id.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
