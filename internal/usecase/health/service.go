// Package health reports readiness of the backing store and the query encoder providers.
package health

import (
	"context"
	"sort"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a provider is down; searches that carry vectors still work.
	Degraded Status = "degraded"
	// Unhealthy indicates the backing store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type provider struct {
	name    string
	checker ProviderChecker
}

// Service coordinates health checks.
type Service struct {
	backend   BackendPinger
	providers []provider
	timeout   time.Duration
}

// New creates a Service.
func New(backend BackendPinger) *Service {
	return &Service{backend: backend, timeout: DefaultCheckTimeout}
}

// WithProvider adds the provider of encoder to the report as "encoder:<name>".
func (s *Service) WithProvider(encoder string, c ProviderChecker) *Service {
	s.providers = append(s.providers, provider{name: encoder, checker: c})
	sort.Slice(s.providers, func(i, j int) bool { return s.providers[i].name < s.providers[j].name })
	return s
}

// WithTimeout overrides the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.providers)+1)
	status := Healthy

	if err := s.run(ctx, s.backend.Ping); err != nil {
		checks["backend"] = CheckError
		status = Unhealthy
	} else {
		checks["backend"] = CheckOK
	}

	for _, p := range s.providers {
		if err := s.run(ctx, p.checker.HealthCheck); err != nil {
			checks["encoder:"+p.name] = CheckError
			if status == Healthy {
				status = Degraded
			}
			continue
		}
		checks["encoder:"+p.name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}
