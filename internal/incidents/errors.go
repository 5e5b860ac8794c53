package incidents

import "errors"

// Incident lifecycle errors.
var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrOrgNotFound       = errors.New("organization not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidStatus     = errors.New("invalid incident status")
	ErrIncidentResolved  = errors.New("cannot reopen a resolved incident, create a new incident instead")
)
