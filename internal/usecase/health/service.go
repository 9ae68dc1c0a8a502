package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks against the upstream providers.
type Service struct {
	checks map[string]Checker
}

// New creates a Service with no registered checks.
func New() *Service {
	return &Service{checks: make(map[string]Checker)}
}

// Register adds a named dependency check. Nil checkers are ignored so callers
// can pass optional providers unconditionally.
func (s *Service) Register(name string, c Checker) {
	if c != nil {
		s.checks[name] = c
	}
}

// Check runs all registered health checks.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))

	status := Healthy
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = CheckError
			status = Degraded
		} else {
			checks[name] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
