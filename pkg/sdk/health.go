package hybridex

import (
	"context"

	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
)

// HealthStatus is the aggregated health of the backing store and the query encoders.
// Status is "ok", "degraded" (an encoder provider failed) or "error" (the store failed).
type HealthStatus struct {
	Status string
	// Checks maps "backend" and "encoder:<name>" to "ok" or "error".
	Checks map[string]string
}

// Healthy reports whether every component passed.
func (h HealthStatus) Healthy() bool { return h.Status == string(healthuc.Healthy) }

// Health checks the backing store and every embedder that can check its provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}
	return HealthStatus{Status: string(report.Status), Checks: checks}
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
