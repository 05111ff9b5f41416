package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockProvider struct {
	err error
}

func (m *mockProvider) HealthCheck(_ context.Context) error { return m.err }

func TestCheck(t *testing.T) {
	down := errors.New("down")
	tests := []struct {
		name       string
		backend    error
		providers  map[string]error
		wantStatus Status
		wantChecks map[string]CheckResult
	}{
		{
			name:       "backend only",
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"backend": CheckOK},
		},
		{
			name:       "all healthy",
			providers:  map[string]error{"clip": nil},
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"backend": CheckOK, "encoder:clip": CheckOK},
		},
		{
			name:       "provider down degrades",
			providers:  map[string]error{"clip": down, "sbert": nil},
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"backend": CheckOK, "encoder:clip": CheckError, "encoder:sbert": CheckOK},
		},
		{
			name:       "backend down is unhealthy",
			backend:    down,
			providers:  map[string]error{"clip": down},
			wantStatus: Unhealthy,
			wantChecks: map[string]CheckResult{"backend": CheckError, "encoder:clip": CheckError},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockPinger{err: tc.backend})
			for name, err := range tc.providers {
				svc.WithProvider(name, &mockProvider{err: err})
			}
			r := svc.Check(context.Background())
			if r.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", r.Status, tc.wantStatus)
			}
			if len(r.Checks) != len(tc.wantChecks) {
				t.Fatalf("checks = %v, want %v", r.Checks, tc.wantChecks)
			}
			for k, want := range tc.wantChecks {
				if r.Checks[k] != want {
					t.Errorf("check %s = %q, want %q", k, r.Checks[k], want)
				}
			}
		})
	}
}

type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCheck_Timeout(t *testing.T) {
	svc := New(slowPinger{}).WithTimeout(10 * time.Millisecond)
	if r := svc.Check(context.Background()); r.Status != Unhealthy {
		t.Errorf("status = %q, want %q", r.Status, Unhealthy)
	}
}
