package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/infralens/infralens/internal/auth"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/metrics"
)

// LoginBackend is the backend call that verifies local credentials.
type LoginBackend interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
}

// PasswordProvider forwards local credentials to the backend, which owns the
// user store and issues the bearer token.
type PasswordProvider struct {
	Backend LoginBackend
	Now     func() time.Time
}

func NewPasswordProvider(b LoginBackend) *PasswordProvider {
	return &PasswordProvider{Backend: b, Now: time.Now}
}

func (p *PasswordProvider) Name() string {
	return auth.MethodPassword
}

func (p *PasswordProvider) Authenticate(ctx context.Context, username, password string) (auth.Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodPassword, "invalid").Inc()
		return auth.Principal{}, auth.ErrInvalidCredentials
	}

	res, err := p.Backend.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) || backend.IsStatus(err, http.StatusBadRequest) || backend.IsStatus(err, http.StatusForbidden) {
			metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodPassword, "invalid").Inc()
			return auth.Principal{}, auth.ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodPassword, "error").Inc()
		return auth.Principal{}, err
	}
	if strings.TrimSpace(res.AccessToken) == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodPassword, "error").Inc()
		return auth.Principal{}, errors.New("backend login returned no access token")
	}
	if strings.TrimSpace(res.User.Username) == "" {
		res.User.Username = username
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	metrics.LoginAttemptsTotal.WithLabelValues(auth.MethodPassword, "success").Inc()
	return auth.PrincipalFromLogin(res, auth.MethodPassword, now()), nil
}
