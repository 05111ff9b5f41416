package health

import "context"

// BackendPinger checks backing store availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks a query encoder provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
