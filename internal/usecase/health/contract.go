package health

import "context"

// StorePinger checks preference store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HostChecker checks that the host bridge answers.
type HostChecker interface {
	HealthCheck(ctx context.Context) error
}
