package catalog

import "errors"

// Catalog errors.
var (
	ErrOrgNotFound      = errors.New("organization not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrServiceNameTaken = errors.New("service name already in use")
	ErrServiceDeleted   = errors.New("service is deleted")
)
