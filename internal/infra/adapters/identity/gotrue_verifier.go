package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/ports/adapter"
)

var _ adapter.IdentityVerifier = (*GoTrueVerifier)(nil)

// GoTrueVerifier asks the identity provider who owns the token (GET /auth/v1/user).
type GoTrueVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewGoTrueVerifier(baseURL, anonKey string) (*GoTrueVerifier, error) {
	if baseURL == "" || anonKey == "" {
		return nil, errors.New("identity provider url and anon key are required")
	}
	return &GoTrueVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (v *GoTrueVerifier) Verify(ctx context.Context, token string) (*adapter.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: identity provider returned %d", domain.ErrUnauthorized, resp.StatusCode)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil || user.ID == "" {
		return nil, fmt.Errorf("%w: malformed user payload", domain.ErrUnauthorized)
	}
	return &adapter.Identity{UserID: user.ID, Email: user.Email}, nil
}
