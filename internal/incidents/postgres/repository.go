// Package postgres provides the PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusbeacon/beacon/internal/domain"
	"github.com/statusbeacon/beacon/internal/incidents"
)

// Repository implements the incidents.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

const incidentColumns = `id, org_id, service_id, title, description, status, started_at, resolved_at, from_state, to_state, created_at, updated_at`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.OrgID,
		&inc.ServiceID,
		&inc.Title,
		&inc.Description,
		&inc.Status,
		&inc.StartedAt,
		&inc.ResolvedAt,
		&inc.FromState,
		&inc.ToState,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// GetIncident retrieves an incident by ID scoped to the organization.
func (r *Repository) GetIncident(ctx context.Context, orgID, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE org_id = $1 AND id = $2`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return incident, nil
}

// ListIncidents lists the organization's incidents, most recent first.
func (r *Repository) ListIncidents(ctx context.Context, orgID string, filter incidents.Filter) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE org_id = $1`
	args := []interface{}{orgID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += fmt.Sprintf(` AND (title ILIKE $%d OR description ILIKE $%d)`, len(args), len(args))
	}

	query += ` ORDER BY started_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	return collectIncidents(rows)
}

// ListPublicIncidents lists incidents visible on the public status page:
// org active, owning service active and not soft-deleted.
func (r *Repository) ListPublicIncidents(ctx context.Context, orgSlug string) ([]domain.Incident, error) {
	query := `
		SELECT i.id, i.org_id, i.service_id, i.title, i.description, i.status,
		       i.started_at, i.resolved_at, i.from_state, i.to_state,
		       i.created_at, i.updated_at
		FROM incidents i
		JOIN organizations o ON o.id = i.org_id
		JOIN services s ON s.id = i.service_id
		WHERE o.slug = $1 AND o.is_active = true
		  AND s.is_active = true AND s.is_deleted = false
		ORDER BY i.started_at DESC
	`

	rows, err := r.db.Query(ctx, query, orgSlug)
	if err != nil {
		return nil, fmt.Errorf("list public incidents: %w", err)
	}
	defer rows.Close()

	return collectIncidents(rows)
}

func collectIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	result := make([]domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return result, nil
}

// LatestUnresolvedToState returns the derivation rule's winner outside a
// transaction: the to_state of the most recently started unresolved
// incident against the service, ties broken by highest id.
func (r *Repository) LatestUnresolvedToState(ctx context.Context, serviceID, excludeID string) (domain.ServiceStatus, bool, error) {
	return latestUnresolvedToState(ctx, r.db, serviceID, excludeID)
}

// LatestUnresolvedToStateTx is the in-transaction variant.
func (r *Repository) LatestUnresolvedToStateTx(ctx context.Context, tx pgx.Tx, serviceID, excludeID string) (domain.ServiceStatus, bool, error) {
	return latestUnresolvedToState(ctx, tx, serviceID, excludeID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func latestUnresolvedToState(ctx context.Context, q querier, serviceID, excludeID string) (domain.ServiceStatus, bool, error) {
	query := `
		SELECT to_state
		FROM incidents
		WHERE service_id = $1 AND status != 'resolved'
		  AND ($2 = '' OR id::text != $2)
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`

	var state domain.ServiceStatus
	err := q.QueryRow(ctx, query, serviceID, excludeID).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("latest unresolved to_state: %w", err)
	}
	return state, true, nil
}

// GetOrgRefByID retrieves the minimal routing identity of an organization.
func (r *Repository) GetOrgRefByID(ctx context.Context, orgID string) (domain.OrgRef, error) {
	query := `SELECT id, slug FROM organizations WHERE id = $1`

	var ref domain.OrgRef
	err := r.db.QueryRow(ctx, query, orgID).Scan(&ref.ID, &ref.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrgRef{}, incidents.ErrOrgNotFound
		}
		return domain.OrgRef{}, fmt.Errorf("get org ref: %w", err)
	}
	return ref, nil
}

// LockServiceTx acquires an exclusive row lock on a non-deleted service.
// The lock is held until the transaction ends, serializing concurrent
// incident operations against the same service.
func (r *Repository) LockServiceTx(ctx context.Context, tx pgx.Tx, orgID, serviceID string) (*domain.Service, error) {
	query := `
		SELECT id, org_id, name, description, status, is_active, is_deleted,
		       deleted_at, created_at, updated_at
		FROM services
		WHERE org_id = $1 AND id = $2 AND is_deleted = false
		FOR UPDATE
	`

	var s domain.Service
	err := tx.QueryRow(ctx, query, orgID, serviceID).Scan(
		&s.ID,
		&s.OrgID,
		&s.Name,
		&s.Description,
		&s.Status,
		&s.IsActive,
		&s.IsDeleted,
		&s.DeletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrServiceNotFound
		}
		return nil, fmt.Errorf("lock service: %w", err)
	}
	return &s, nil
}

// LockIncidentTx acquires an exclusive row lock on an incident. Callers
// must already hold the owning service's lock.
func (r *Repository) LockIncidentTx(ctx context.Context, tx pgx.Tx, orgID, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE org_id = $1 AND id = $2 FOR UPDATE`

	incident, err := scanIncident(tx.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("lock incident: %w", err)
	}
	return incident, nil
}

// CreateIncidentTx inserts an incident within the transaction.
func (r *Repository) CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (org_id, service_id, title, description, status, started_at, from_state, to_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		incident.OrgID,
		incident.ServiceID,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.StartedAt,
		incident.FromState,
		incident.ToState,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// UpdateIncidentTx persists mutable incident fields within the
// transaction. from_state and to_state are never written.
func (r *Repository) UpdateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error {
	query := `
		UPDATE incidents
		SET title = $1, description = $2, status = $3, resolved_at = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.ResolvedAt,
		incident.ID,
	).Scan(&incident.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return incidents.ErrIncidentNotFound
		}
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

// DeleteIncidentTx removes the incident row within the transaction.
func (r *Repository) DeleteIncidentTx(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

// UpdateServiceStatusTx sets the service's derived status within the
// transaction. The caller holds the service's row lock.
func (r *Repository) UpdateServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, status domain.ServiceStatus) error {
	tag, err := tx.Exec(ctx,
		`UPDATE services SET status = $1, updated_at = now() WHERE id = $2`,
		status, serviceID,
	)
	if err != nil {
		return fmt.Errorf("update service status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrServiceNotFound
	}
	return nil
}
