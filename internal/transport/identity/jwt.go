// Package identity resolves bearer tokens to the caller's email address.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultEmailClaim is the claim read when none is configured.
const DefaultEmailClaim = "email"

var (
	// ErrNoEmail signals a valid token that carries no usable email claim.
	ErrNoEmail = errors.New("token has no email claim")
	// ErrUnverifiedEmail signals a token whose email_verified claim is false.
	ErrUnverifiedEmail = errors.New("token email is not verified")
)

// JWTConfig configures a JWTResolver.
type JWTConfig struct {
	Issuer     string
	Audience   string
	EmailClaim string
}

// JWTResolver validates self-issued JWTs signed with a shared secret or an RSA key.
type JWTResolver struct {
	key        any
	methods    []string
	options    []jwt.ParserOption
	emailClaim string
}

// NewHMAC creates a resolver for HS256/HS384/HS512 tokens.
func NewHMAC(secret []byte, cfg JWTConfig) (*JWTResolver, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("hmac secret is empty")
	}
	return newJWT(secret, []string{"HS256", "HS384", "HS512"}, cfg), nil
}

// NewRSA creates a resolver for RS256/RS384/RS512 tokens from a PEM encoded public key.
func NewRSA(publicKeyPEM []byte, cfg JWTConfig) (*JWTResolver, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	return newJWT(key, []string{"RS256", "RS384", "RS512"}, cfg), nil
}

func newJWT(key any, methods []string, cfg JWTConfig) *JWTResolver {
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	claim := cfg.EmailClaim
	if claim == "" {
		claim = DefaultEmailClaim
	}
	return &JWTResolver{key: key, methods: methods, options: opts, emailClaim: claim}
}

// Resolve implements auth.IdentityResolver.
func (r *JWTResolver) Resolve(_ context.Context, token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.key, nil
	}, r.options...)
	if err != nil {
		return "", fmt.Errorf("validate token: %w", err)
	}
	return emailFromClaims(claims, r.emailClaim)
}

// emailFromClaims reads the email claim. A present email_verified=false rejects the token.
func emailFromClaims(claims map[string]any, claim string) (string, error) {
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return "", ErrUnverifiedEmail
	}
	email, _ := claims[claim].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrNoEmail
	}
	return email, nil
}
