package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticAuthenticator struct {
	identity Identity
	err      error
}

func (a staticAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return a.identity, a.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestMiddleware_PassesIdentity(t *testing.T) {
	var got Identity
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFromContext(r.Context())
	})
	mw := Middleware{
		Logger:        testLogger(),
		Authenticator: staticAuthenticator{identity: Identity{Subject: "u1", Email: "u1@example.com"}},
	}

	req := httptest.NewRequest(http.MethodPost, "http://example.test/api/orders", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if !ok || got.Subject != "u1" {
		t.Fatalf("identity=%+v ok=%v, want subject u1", got, ok)
	}
}

func TestMiddleware_RejectsMissingToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be reached")
	})
	mw := Middleware{
		Logger:        testLogger(),
		Authenticator: staticAuthenticator{err: ErrUnauthenticated},
	}

	req := httptest.NewRequest(http.MethodPost, "http://example.test/api/orders", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
}

func TestMiddleware_RejectsInvalidToken(t *testing.T) {
	mw := Middleware{
		Logger:        testLogger(),
		Authenticator: staticAuthenticator{err: errors.New("token expired")},
	}

	req := httptest.NewRequest(http.MethodPost, "http://example.test/api/orders", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(http.NewServeMux()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
}

func TestMiddleware_SkipPrefixes(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })
	mw := Middleware{
		Logger:        testLogger(),
		Authenticator: staticAuthenticator{err: ErrUnauthenticated},
		SkipPrefixes:  []string{"/healthz", "/readyz"},
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/healthz", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(next).ServeHTTP(rec, req)

	if !reached {
		t.Fatalf("expected skip prefix to bypass auth")
	}
}

func TestMiddleware_MutatingOnly(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })
	mw := Middleware{
		Logger:        testLogger(),
		Authenticator: staticAuthenticator{err: ErrUnauthenticated},
		MutatingOnly:  true,
	}
	h := mw.Wrap(next)

	req := httptest.NewRequest(http.MethodGet, "http://example.test/api/products", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !reached {
		t.Fatalf("expected GET to bypass auth in mutating-only mode")
	}

	reached = false
	req = httptest.NewRequest(http.MethodPost, "http://example.test/api/orders", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if reached {
		t.Fatalf("expected POST to require auth")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
}

func TestTokenFromHeader(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"bearer", "Bearer abc123", "abc123"},
		{"case insensitive", "bearer abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if got := tokenFromHeader(r); got != tc.want {
				t.Fatalf("tokenFromHeader()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{Mode: ModeDisabled}, false},
		{"dev", Config{Mode: ModeDev}, false},
		{"oidc complete", Config{Mode: ModeOIDC, OIDCIssuerURL: "https://issuer.example.com", OIDCClientID: "backend"}, false},
		{"oidc missing issuer", Config{Mode: ModeOIDC, OIDCClientID: "backend"}, true},
		{"oidc missing client", Config{Mode: ModeOIDC, OIDCIssuerURL: "https://issuer.example.com"}, true},
		{"unknown mode", Config{Mode: "basic"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("Validate() expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() err=%v", err)
			}
		})
	}
}

func TestNewAuthenticator_Modes(t *testing.T) {
	a, err := NewAuthenticator(context.Background(), Config{Mode: ModeDisabled})
	if err != nil {
		t.Fatalf("NewAuthenticator(disabled) err=%v", err)
	}
	if a != nil {
		t.Fatalf("NewAuthenticator(disabled) expected nil authenticator")
	}

	a, err = NewAuthenticator(context.Background(), Config{Mode: ModeDev, DevSubject: "dev", DevRoles: []string{"admin"}})
	if err != nil {
		t.Fatalf("NewAuthenticator(dev) err=%v", err)
	}
	identity, err := a.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "http://example.test/", nil))
	if err != nil {
		t.Fatalf("Authenticate() err=%v", err)
	}
	if identity.Subject != "dev" {
		t.Fatalf("Subject=%q, want dev", identity.Subject)
	}
}
