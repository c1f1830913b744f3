package casetable

import (
	"errors"

	"github.com/kailas-cloud/casetable/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation      = domain.ErrValidation
	ErrEmptyName       = domain.ErrEmptyName
	ErrDuplicateName   = domain.ErrDuplicateName
	ErrTransport       = domain.ErrTransport
	ErrHostRejected    = domain.ErrHostRejected
	ErrUnresolvable    = domain.ErrUnresolvable
	ErrStructuralDrift = domain.ErrStructuralDrift
	ErrSuperseded      = domain.ErrSuperseded
	ErrNoDataset       = domain.ErrNoDataset
	ErrNotFound        = domain.ErrNotFound
)

// HostMessage returns the host's explanation of a rejected request, if err carries one.
func HostMessage(err error) (string, bool) {
	var rej *domain.HostRejectedError
	if !errors.As(err, &rej) || rej.Message == "" {
		return "", false
	}
	return rej.Message, true
}
