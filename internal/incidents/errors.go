package incidents

import (
	"errors"
	"fmt"

	"github.com/bissquit/ops-triage-hub/internal/domain"
)

// Lifecycle errors. Returned errors wrap these with detail; match with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StaleStatusError reports an update staged against a status the incident no longer has.
func StaleStatusError(id string, from, stored domain.Status) error {
	return fmt.Errorf("%w: incident %s changed concurrently, expected %s but is %s",
		ErrInvalidTransition, id, from, stored)
}
