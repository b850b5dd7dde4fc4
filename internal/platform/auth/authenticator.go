package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
)

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// NewAuthenticator picks the implementation for the configured mode.
// Disabled mode returns nil: callers skip the middleware entirely.
func NewAuthenticator(ctx context.Context, cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeDisabled:
		return nil, nil
	case ModeDev:
		return NewDevAuthenticator(cfg), nil
	case ModeOIDC:
		return NewOIDCAuthenticator(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown auth mode: %q", cfg.Mode)
	}
}

type DevAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) *DevAuthenticator {
	return &DevAuthenticator{
		identity: Identity{
			Subject: cfg.DevSubject,
			Email:   cfg.DevEmail,
			Roles:   cfg.DevRoles,
		},
	}
}

func (a *DevAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return a.identity, nil
}
