package domain

import "time"

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses. The lifecycle is monotonic: once resolved, an
// incident never reopens.
const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// IsResolved reports whether the status is the terminal resolved state.
func (s IncidentStatus) IsResolved() bool {
	return s == IncidentStatusResolved
}

// Incident represents an outage or degradation opened against a service.
// FromState captures the service's status at the moment the incident was
// opened; ToState is the status the incident declares. Both are frozen
// at creation.
type Incident struct {
	ID          string         `json:"id"`
	OrgID       string         `json:"org_id"`
	ServiceID   string         `json:"service_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      IncidentStatus `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	ResolvedAt  *time.Time     `json:"resolved_at"`
	FromState   ServiceStatus  `json:"from_state"`
	ToState     ServiceStatus  `json:"to_state"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
