// Package access runs the authorization gate against the current allow-lists and manages them.
package access

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/auth"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// Summary describes the allow-lists without exposing api keys.
type Summary struct {
	Admins      []string `json:"admins"`
	Users       []string `json:"users"`
	APIKeyCount int      `json:"api_key_count"`
}

// Service holds the allow-lists in memory, mirrored to the store.
type Service struct {
	store    Store
	resolver auth.IdentityResolver
	logger   *zap.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	lists   auth.AllowLists
}

// New creates an access service. resolver may be nil when no identity provider is configured.
func New(store Store, resolver auth.IdentityResolver, logger *zap.Logger) *Service {
	return &Service{store: store, resolver: resolver, logger: logger}
}

// Load reads the persisted lists. When no file exists yet, bootstrap becomes the lists and is persisted.
func (s *Service) Load(ctx context.Context, bootstrap auth.AllowLists) error {
	lists, found, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load allow-lists: %w", err)
	}
	if !found {
		lists = bootstrap.Clone()
		if !lists.Empty() {
			if err := s.store.Save(ctx, lists); err != nil {
				return fmt.Errorf("persist bootstrap allow-lists: %w", err)
			}
		}
	}

	s.mu.Lock()
	s.lists = lists
	s.mu.Unlock()

	if lists.Empty() {
		s.logger.Warn("allow-lists are empty, every request is allowed")
	} else {
		s.logger.Info("allow-lists loaded",
			zap.Int("admins", len(lists.Admins)),
			zap.Int("users", len(lists.Users)),
			zap.Int("api_keys", len(lists.APIKeys)),
		)
	}
	return nil
}

// Authorize decides whether creds may run an operation at level.
func (s *Service) Authorize(ctx context.Context, level auth.Level, creds auth.Credentials) (auth.Decision, error) {
	s.mu.RLock()
	lists := s.lists
	s.mu.RUnlock()

	d, err := auth.Authorize(ctx, level, lists, creds, s.resolver)
	if err != nil {
		metrics.AuthDecisionsTotal.WithLabelValues("deny", methodLabel(d, creds)).Inc()
		fields := []zap.Field{
			zap.String("level", level.String()),
			zap.String("method", methodLabel(d, creds)),
			zap.Error(err),
		}
		if d.Identity != "" {
			fields = append(fields, zap.String("identity", d.Identity))
		}
		s.logger.Warn("request denied", fields...)
		return d, err
	}
	metrics.AuthDecisionsTotal.WithLabelValues("allow", string(d.Method)).Inc()
	return d, nil
}

// Replace persists lists and makes them current.
func (s *Service) Replace(ctx context.Context, lists auth.AllowLists) error {
	lists = lists.Clone()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Save(ctx, lists); err != nil {
		return fmt.Errorf("persist allow-lists: %w", err)
	}
	s.mu.Lock()
	s.lists = lists
	s.mu.Unlock()

	s.logger.Info("allow-lists replaced",
		zap.Int("admins", len(lists.Admins)),
		zap.Int("users", len(lists.Users)),
		zap.Int("api_keys", len(lists.APIKeys)),
	)
	return nil
}

// Summary returns the current lists with api keys reduced to a count.
func (s *Service) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		Admins:      append([]string{}, s.lists.Admins...),
		Users:       append([]string{}, s.lists.Users...),
		APIKeyCount: len(s.lists.APIKeys),
	}
}

func methodLabel(d auth.Decision, creds auth.Credentials) string {
	switch {
	case d.Method != "":
		return string(d.Method)
	case creds.APIKey != "":
		return string(auth.MethodAPIKey)
	case creds.Token != "":
		return string(auth.MethodToken)
	default:
		return "none"
	}
}
