package domain

import "time"

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusOperational ServiceStatus = "operational"
	ServiceStatusDegraded    ServiceStatus = "degraded"
	ServiceStatusPartial     ServiceStatus = "partial"
	ServiceStatusMajor       ServiceStatus = "major"
	ServiceStatusMaintenance ServiceStatus = "maintenance"
)

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceStatusOperational, ServiceStatusDegraded,
		ServiceStatusPartial, ServiceStatusMajor,
		ServiceStatusMaintenance:
		return true
	}
	return false
}

// validIncidentTransitions declares the legal to_state values for a new
// incident, keyed by the service's current status. A service in major
// outage or maintenance has no valid outgoing transitions: those states
// are cleared by resolving incidents or through maintenance handling,
// never by opening a new incident.
var validIncidentTransitions = map[ServiceStatus][]ServiceStatus{
	ServiceStatusOperational: {ServiceStatusDegraded, ServiceStatusPartial, ServiceStatusMajor},
	ServiceStatusDegraded:    {ServiceStatusPartial, ServiceStatusMajor},
	ServiceStatusPartial:     {ServiceStatusMajor},
	ServiceStatusMajor:       {},
	ServiceStatusMaintenance: {},
}

// ValidNextStates returns the legal to_state values for opening an
// incident against a service in the given status.
func ValidNextStates(current ServiceStatus) []ServiceStatus {
	return validIncidentTransitions[current]
}

// CanOpenIncident reports whether an incident declaring to may be opened
// against a service currently in from.
func CanOpenIncident(from, to ServiceStatus) bool {
	for _, s := range validIncidentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Service represents a monitored service owned by an organization.
// Status is derived: it equals either "operational" or the to_state of
// the most recently started unresolved incident, and must only change
// through the incident lifecycle.
type Service struct {
	ID          string        `json:"id"`
	OrgID       string        `json:"org_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ServiceStatus `json:"status"`
	IsActive    bool          `json:"is_active"`
	IsDeleted   bool          `json:"is_deleted"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsPublic reports whether the service may appear on the public status
// page and in public broadcasts.
func (s *Service) IsPublic() bool {
	return s.IsActive && !s.IsDeleted
}

// ServiceSummary is the limited representation exposed on public
// surfaces and embedded in incident payloads.
type ServiceSummary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    ServiceStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Summary returns the limited public representation of the service.
func (s *Service) Summary() ServiceSummary {
	return ServiceSummary{
		ID:        s.ID,
		Name:      s.Name,
		Status:    s.Status,
		UpdatedAt: s.UpdatedAt,
	}
}
