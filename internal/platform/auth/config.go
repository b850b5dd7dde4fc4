package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront-go/internal/platform/env"
)

type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeDev      Mode = "dev"
	ModeOIDC     Mode = "oidc"
)

type Config struct {
	Mode Mode

	OIDCIssuerURL string
	OIDCClientID  string
	EmailClaim    string
	RolesClaim    string

	DevSubject string
	DevEmail   string
	DevRoles   []string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Mode:          Mode(strings.ToLower(env.String("AUTH_MODE", string(ModeDisabled)))),
		OIDCIssuerURL: env.String("AUTH_OIDC_ISSUER_URL", ""),
		OIDCClientID:  env.String("AUTH_OIDC_CLIENT_ID", ""),
		EmailClaim:    env.String("AUTH_EMAIL_CLAIM", "email"),
		RolesClaim:    env.String("AUTH_ROLES_CLAIM", "roles"),
		DevSubject:    env.String("AUTH_DEV_SUBJECT", "dev-user"),
		DevEmail:      env.String("AUTH_DEV_EMAIL", "dev@example.com"),
		DevRoles:      parseCSV(env.String("AUTH_DEV_ROLES", "admin")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeDisabled, ModeDev:
		return nil
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("AUTH_OIDC_ISSUER_URL is required in oidc mode")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("AUTH_OIDC_CLIENT_ID is required in oidc mode")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth mode: %q", c.Mode)
	}
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
