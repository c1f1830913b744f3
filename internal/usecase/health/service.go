package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
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

// Component names in Report.Checks.
const (
	ComponentStore = "store"
	ComponentHost  = "host"
)

const defaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store   StorePinger
	host    HostChecker
	timeout time.Duration
}

// New creates a Service. host can be nil.
func New(store StorePinger, host HostChecker, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Service{store: store, host: host, timeout: timeout}
}

// Check runs every component check concurrently, each bounded by the check timeout.
func (s *Service) Check(ctx context.Context) Report {
	probes := map[string]func(context.Context) error{
		ComponentStore: s.store.Ping,
	}
	if s.host != nil {
		probes[ComponentHost] = s.host.HealthCheck
	}

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(probes))
		g      errgroup.Group
	)
	for name, probe := range probes {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := probe(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
