// Package postgres provides the PostgreSQL loader for broadcast payloads.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusbeacon/beacon/internal/domain"
)

// Loader reads current resource state for the outbox dispatchers. IDs
// come from the trusted write path, so queries are not org scoped.
type Loader struct {
	db *pgxpool.Pool
}

// NewLoader creates a new loader.
func NewLoader(db *pgxpool.Pool) *Loader {
	return &Loader{db: db}
}

// LoadIncident returns the incident and its owning service.
func (l *Loader) LoadIncident(ctx context.Context, id string) (*domain.Incident, *domain.Service, error) {
	query := `
		SELECT i.id, i.org_id, i.service_id, i.title, i.description, i.status,
		       i.started_at, i.resolved_at, i.from_state, i.to_state,
		       i.created_at, i.updated_at,
		       s.id, s.org_id, s.name, s.description, s.status, s.is_active,
		       s.is_deleted, s.deleted_at, s.created_at, s.updated_at
		FROM incidents i
		JOIN services s ON s.id = i.service_id
		WHERE i.id = $1
	`

	var inc domain.Incident
	var svc domain.Service
	err := l.db.QueryRow(ctx, query, id).Scan(
		&inc.ID, &inc.OrgID, &inc.ServiceID, &inc.Title, &inc.Description,
		&inc.Status, &inc.StartedAt, &inc.ResolvedAt, &inc.FromState,
		&inc.ToState, &inc.CreatedAt, &inc.UpdatedAt,
		&svc.ID, &svc.OrgID, &svc.Name, &svc.Description, &svc.Status,
		&svc.IsActive, &svc.IsDeleted, &svc.DeletedAt, &svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load incident %s: %w", id, err)
	}
	return &inc, &svc, nil
}

// LoadService returns a service by ID, soft-deleted rows included so
// pending notices for freshly hidden services still resolve.
func (l *Loader) LoadService(ctx context.Context, id string) (*domain.Service, error) {
	query := `
		SELECT id, org_id, name, description, status, is_active, is_deleted,
		       deleted_at, created_at, updated_at
		FROM services
		WHERE id = $1
	`

	var svc domain.Service
	err := l.db.QueryRow(ctx, query, id).Scan(
		&svc.ID, &svc.OrgID, &svc.Name, &svc.Description, &svc.Status,
		&svc.IsActive, &svc.IsDeleted, &svc.DeletedAt, &svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("load service %s: %w", id, err)
	}
	return &svc, nil
}
