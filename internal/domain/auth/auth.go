// Package auth decides whether a request may run an operation.
package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain"
)

// TrustedDomain is always accepted at user level when allow-lists are configured.
const TrustedDomain = "kailas.cloud"

// Refinements of domain.ErrAuthDenied.
var (
	ErrMissingCredentials = fmt.Errorf("%w: missing credentials", domain.ErrAuthDenied)
	ErrInvalidAPIKey      = fmt.Errorf("%w: invalid api key", domain.ErrAuthDenied)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", domain.ErrAuthDenied)
	ErrUnknownIdentity    = fmt.Errorf("%w: identity not allowed", domain.ErrAuthDenied)
	ErrInsufficientLevel  = fmt.Errorf("%w: admin level required", domain.ErrAuthDenied)
)

// Level is the privilege an operation requires.
type Level uint8

// Levels in ascending order of privilege.
const (
	LevelUser Level = iota
	LevelAdmin
)

func (l Level) String() string {
	if l == LevelAdmin {
		return "admin"
	}
	return "user"
}

// Method says which credential decided the request.
type Method string

// Decision methods.
const (
	MethodOpen   Method = "open"
	MethodAPIKey Method = "api_key"
	MethodToken  Method = "token"
)

// AllowLists are the three lists consulted by Authorize.
// Entries in Admins and Users are email addresses or bare domains.
type AllowLists struct {
	Admins  []string `yaml:"admins" json:"admins"`
	Users   []string `yaml:"users" json:"users"`
	APIKeys []string `yaml:"api_keys" json:"api_keys"`
}

// Empty reports whether no list has entries, i.e. the deployment is open.
func (a AllowLists) Empty() bool {
	return len(a.Admins) == 0 && len(a.Users) == 0 && len(a.APIKeys) == 0
}

// Clone returns a deep copy.
func (a AllowLists) Clone() AllowLists {
	return AllowLists{
		Admins:  slices.Clone(a.Admins),
		Users:   slices.Clone(a.Users),
		APIKeys: slices.Clone(a.APIKeys),
	}
}

// Credentials carried by a request. Either may be empty.
type Credentials struct {
	APIKey string
	Token  string
}

// IdentityResolver turns a bearer token into the caller's email.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Decision describes an allowed request.
type Decision struct {
	Method Method
	// Identity is the resolved email for token requests, empty otherwise.
	Identity string
	// Entry is the allow-list entry that matched.
	Entry string
}

// Authorize is the authorization gate. It returns an error wrapping domain.ErrAuthDenied
// when the request is denied. When an api key is present it alone decides the request.
func Authorize(
	ctx context.Context, level Level, lists AllowLists, creds Credentials, resolver IdentityResolver,
) (Decision, error) {
	if lists.Empty() {
		return Decision{Method: MethodOpen}, nil
	}

	if creds.APIKey != "" {
		if slices.Contains(lists.APIKeys, creds.APIKey) {
			return Decision{Method: MethodAPIKey}, nil
		}
		return Decision{Method: MethodAPIKey}, ErrInvalidAPIKey
	}
	if creds.Token == "" {
		return Decision{}, ErrMissingCredentials
	}
	if resolver == nil {
		return Decision{Method: MethodToken}, fmt.Errorf("%w: no identity provider configured", ErrInvalidToken)
	}

	email, err := resolver.Resolve(ctx, creds.Token)
	if err != nil {
		return Decision{Method: MethodToken}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	d := Decision{Method: MethodToken, Identity: email}

	if entry, ok := matchEntry(email, lists.Admins); ok {
		d.Entry = entry
		return d, nil
	}
	entry, ok := matchEntry(email, lists.Users)
	if !ok {
		entry, ok = matchEntry(email, []string{TrustedDomain})
	}
	if !ok {
		return d, ErrUnknownIdentity
	}
	d.Entry = entry
	if level == LevelAdmin {
		return d, ErrInsufficientLevel
	}
	return d, nil
}

// MatchesEntry reports whether email is covered by an allow-list entry.
// An entry without "@" is a bare domain matching every address in it.
func MatchesEntry(email, entry string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	entry = strings.ToLower(strings.TrimSpace(entry))
	if email == "" || entry == "" {
		return false
	}
	if strings.Contains(entry, "@") {
		return email == entry
	}
	at := strings.LastIndexByte(email, '@')
	return at >= 0 && email[at+1:] == entry
}

func matchEntry(email string, entries []string) (string, bool) {
	for _, e := range entries {
		if MatchesEntry(email, e) {
			return e, true
		}
	}
	return "", false
}
