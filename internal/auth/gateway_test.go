package auth

import (
	"context"
	"errors"
	"testing"
)

func TestGatewayTokenDisabled(t *testing.T) {
	g := NewGatewayToken("  ")
	if g.Enabled() {
		t.Fatalf("blank secret should disable verification")
	}
	if _, err := g.VerifyAccessToken(context.Background(), ""); err != nil {
		t.Fatalf("disabled verifier rejected request: %v", err)
	}
}

func TestGatewayTokenVerify(t *testing.T) {
	g := NewGatewayToken("s3cret")
	ctx := context.Background()

	p, err := g.VerifyAccessToken(ctx, "s3cret")
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if p.Subject != "gateway" {
		t.Fatalf("unexpected subject %q", p.Subject)
	}
	if _, err := g.VerifyAccessToken(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := g.VerifyAccessToken(ctx, "s3cre"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for header, want := range cases {
		if got := BearerToken(header); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
