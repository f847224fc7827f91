package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/infralens/infralens/internal/auth"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/metrics"
)

// MeBackend resolves the user behind the bearer token carried in ctx.
type MeBackend interface {
	Me(ctx context.Context) (backend.User, error)
}

// TokenProvider accepts a token handed back by the external OIDC provider and
// confirms it with the backend before a session is created for it.
type TokenProvider struct {
	Backend MeBackend
	Now     func() time.Time
}

func NewTokenProvider(b MeBackend) *TokenProvider {
	return &TokenProvider{Backend: b, Now: time.Now}
}

func (p *TokenProvider) Name() string {
	return auth.MethodOIDC
}

func (p *TokenProvider) Verify(ctx context.Context, token string, expiresIn int) (auth.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodOIDC, "invalid").Inc()
		return auth.Principal{}, auth.ErrInvalidCredentials
	}

	user, err := p.Backend.Me(backend.WithToken(ctx, token))
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodOIDC, "invalid").Inc()
			return auth.Principal{}, auth.ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodOIDC, "error").Inc()
		return auth.Principal{}, err
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodOIDC, "success").Inc()
	return auth.PrincipalFromLogin(backend.LoginResult{AccessToken: token, ExpiresIn: expiresIn, User: user}, auth.MethodOIDC, now()), nil
}
