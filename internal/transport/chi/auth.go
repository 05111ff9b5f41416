package chi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/auth"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
)

const (
	headerAPIKey = "X-API-Key"
	bearerPrefix = "Bearer "
)

// credentialsFromRequest reads the api key header and the bearer token. Either may be empty.
func credentialsFromRequest(r *http.Request) auth.Credentials {
	creds := auth.Credentials{APIKey: strings.TrimSpace(r.Header.Get(headerAPIKey))}
	if h := r.Header.Get("Authorization"); len(h) > len(bearerPrefix) &&
		strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		creds.Token = strings.TrimSpace(h[len(bearerPrefix):])
	}
	return creds
}

// requireLevel runs the authorization gate before the handler. Denials never reach it.
func (s *Server) requireLevel(level auth.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := s.access.Authorize(r.Context(), level, credentialsFromRequest(r))
			if info := requestInfoFrom(r.Context()); info != nil {
				info.authMethod = string(d.Method)
				info.identity = d.Identity
			}
			if err != nil {
				s.handleDomainError(w, r, err)
				return
			}
			ctx := logpkg.With(r.Context(), zap.String("auth_method", string(d.Method)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
