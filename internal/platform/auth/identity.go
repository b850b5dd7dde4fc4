// Package auth authenticates API requests. Three modes are supported:
// disabled (every request passes), dev (a fixed identity is injected),
// and oidc (bearer tokens verified against an OIDC issuer).
package auth

import (
	"context"
)

type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

type ctxKeyIdentity struct{}

func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}
