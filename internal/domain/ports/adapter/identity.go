package adapter

import "context"

// Identity is the authenticated caller behind a bearer token.
type Identity struct {
	UserID string
	Email  string
}

// IdentityVerifier validates a user session token against the identity provider.
// Implementations return domain.ErrUnauthorized for any invalid credential.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
