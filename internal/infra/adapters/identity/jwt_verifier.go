package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/ports/adapter"
)

var _ adapter.IdentityVerifier = (*JWTVerifier)(nil)

// sessionClaims is the subset of a Supabase access token we rely on.
type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 session tokens locally with the project's JWT secret.
type JWTVerifier struct {
	secret   []byte
	audience string
}

func NewJWTVerifier(secret, audience string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret empty")
	}
	return &JWTVerifier{secret: []byte(secret), audience: audience}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*adapter.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &sessionClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token without subject", domain.ErrUnauthorized)
	}
	return &adapter.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
