package incidents

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/statusbeacon/beacon/internal/domain"
)

// Repository defines the interface for incident storage. The Tx methods
// run inside a caller-owned transaction; the Lock* methods acquire
// exclusive row locks held for the transaction's duration.
type Repository interface {
	GetIncident(ctx context.Context, orgID, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, orgID string, filter Filter) ([]domain.Incident, error)
	ListPublicIncidents(ctx context.Context, orgSlug string) ([]domain.Incident, error)

	// LatestUnresolvedToState returns the to_state of the most recently
	// started unresolved incident against the service, excluding
	// excludeID. The bool reports whether any such incident exists.
	LatestUnresolvedToState(ctx context.Context, serviceID, excludeID string) (domain.ServiceStatus, bool, error)

	GetOrgRefByID(ctx context.Context, orgID string) (domain.OrgRef, error)

	// Transaction support. Lock order is service first, then incident.
	BeginTx(ctx context.Context) (pgx.Tx, error)
	LockServiceTx(ctx context.Context, tx pgx.Tx, orgID, serviceID string) (*domain.Service, error)
	LockIncidentTx(ctx context.Context, tx pgx.Tx, orgID, id string) (*domain.Incident, error)
	CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	UpdateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	DeleteIncidentTx(ctx context.Context, tx pgx.Tx, id string) error
	LatestUnresolvedToStateTx(ctx context.Context, tx pgx.Tx, serviceID, excludeID string) (domain.ServiceStatus, bool, error)
	UpdateServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, status domain.ServiceStatus) error
}

// Filter holds filter options for listing incidents.
type Filter struct {
	Status *domain.IncidentStatus
	Query  string
}
