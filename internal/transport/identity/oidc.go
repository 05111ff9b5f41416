package identity

import (
	"context"
	"crypto"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig configures an OIDCResolver.
type OIDCConfig struct {
	Issuer     string
	ClientID   string
	EmailClaim string
}

// OIDCResolver validates ID tokens issued by an OpenID Connect provider.
type OIDCResolver struct {
	verifier   *oidc.IDTokenVerifier
	emailClaim string
}

// NewOIDC discovers the provider at cfg.Issuer and verifies tokens against its key set.
func NewOIDC(ctx context.Context, cfg OIDCConfig) (*OIDCResolver, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", cfg.Issuer, err)
	}
	return newOIDC(provider.Verifier(oidcConfig(cfg)), cfg), nil
}

// NewOIDCWithKeys verifies tokens against fixed public keys, skipping discovery.
func NewOIDCWithKeys(cfg OIDCConfig, keys ...crypto.PublicKey) *OIDCResolver {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return newOIDC(oidc.NewVerifier(cfg.Issuer, keySet, oidcConfig(cfg)), cfg)
}

func oidcConfig(cfg OIDCConfig) *oidc.Config {
	return &oidc.Config{ClientID: cfg.ClientID, SkipClientIDCheck: cfg.ClientID == ""}
}

func newOIDC(v *oidc.IDTokenVerifier, cfg OIDCConfig) *OIDCResolver {
	claim := cfg.EmailClaim
	if claim == "" {
		claim = DefaultEmailClaim
	}
	return &OIDCResolver{verifier: v, emailClaim: claim}
}

// Resolve implements auth.IdentityResolver.
func (r *OIDCResolver) Resolve(ctx context.Context, token string) (string, error) {
	idToken, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("verify id token: %w", err)
	}
	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("decode id token claims: %w", err)
	}
	return emailFromClaims(claims, r.emailClaim)
}
