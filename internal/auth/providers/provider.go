package providers

import (
	"context"

	"github.com/infralens/infralens/internal/auth"
)

type Provider interface {
	Name() string
	Authenticate(ctx context.Context, username, password string) (auth.Principal, error)
}
