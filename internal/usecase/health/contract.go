package health

import "context"

// Checker checks one upstream dependency's availability.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
