// Package postgres provides the PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusbeacon/beacon/internal/catalog"
	"github.com/statusbeacon/beacon/internal/domain"
)

const uniqueViolation = "23505"

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetOrgByID retrieves an organization by ID.
func (r *Repository) GetOrgByID(ctx context.Context, id string) (*domain.Organization, error) {
	return r.getOrg(ctx, "id", id)
}

// GetOrgBySlug retrieves an organization by slug.
func (r *Repository) GetOrgBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return r.getOrg(ctx, "slug", slug)
}

func (r *Repository) getOrg(ctx context.Context, column, value string) (*domain.Organization, error) {
	query := fmt.Sprintf(`
		SELECT id, name, slug, description, is_active, created_at, updated_at
		FROM organizations
		WHERE %s = $1
	`, column)

	var org domain.Organization
	err := r.db.QueryRow(ctx, query, value).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Description,
		&org.IsActive,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrOrgNotFound
		}
		return nil, fmt.Errorf("get organization by %s: %w", column, err)
	}
	return &org, nil
}

// GetOrgRefByID retrieves the minimal routing identity of an organization.
func (r *Repository) GetOrgRefByID(ctx context.Context, id string) (domain.OrgRef, error) {
	query := `SELECT id, slug FROM organizations WHERE id = $1`

	var ref domain.OrgRef
	err := r.db.QueryRow(ctx, query, id).Scan(&ref.ID, &ref.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrgRef{}, catalog.ErrOrgNotFound
		}
		return domain.OrgRef{}, fmt.Errorf("get org ref: %w", err)
	}
	return ref, nil
}

// CreateService creates a new service.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service) error {
	query := `
		INSERT INTO services (org_id, name, description, status, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		service.OrgID,
		service.Name,
		service.Description,
		service.Status,
		service.IsActive,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return catalog.ErrServiceNameTaken
		}
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

const serviceColumns = `id, org_id, name, description, status, is_active, is_deleted, deleted_at, created_at, updated_at`

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	err := row.Scan(
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
		return nil, err
	}
	return &s, nil
}

// GetService retrieves a service by ID scoped to the organization.
func (r *Repository) GetService(ctx context.Context, orgID, id string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE org_id = $1 AND id = $2`

	service, err := scanService(r.db.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return service, nil
}

// ListServices lists services for the organization.
func (r *Repository) ListServices(ctx context.Context, orgID string, filter catalog.ServiceFilter) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE org_id = $1`
	args := []interface{}{orgID}

	if !filter.IncludeDeleted {
		query += ` AND is_deleted = false`
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += fmt.Sprintf(` AND is_active = $%d`, len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR description ILIKE $%d)`, len(args), len(args))
	}

	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	return collectServices(rows)
}

// ListPublicServices lists publicly visible services by org slug.
func (r *Repository) ListPublicServices(ctx context.Context, orgSlug string) ([]domain.Service, error) {
	query := `
		SELECT s.id, s.org_id, s.name, s.description, s.status, s.is_active,
		       s.is_deleted, s.deleted_at, s.created_at, s.updated_at
		FROM services s
		JOIN organizations o ON o.id = s.org_id
		WHERE o.slug = $1 AND o.is_active = true
		  AND s.is_active = true AND s.is_deleted = false
		ORDER BY s.name
	`

	rows, err := r.db.Query(ctx, query, orgSlug)
	if err != nil {
		return nil, fmt.Errorf("list public services: %w", err)
	}
	defer rows.Close()

	return collectServices(rows)
}

func collectServices(rows pgx.Rows) ([]domain.Service, error) {
	services := make([]domain.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

// UpdateService updates service metadata. Status is deliberately not
// written here; it only changes through the incident lifecycle.
func (r *Repository) UpdateService(ctx context.Context, service *domain.Service) error {
	query := `
		UPDATE services
		SET name = $1, description = $2, is_active = $3, updated_at = now()
		WHERE org_id = $4 AND id = $5 AND is_deleted = false
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		service.Name,
		service.Description,
		service.IsActive,
		service.OrgID,
		service.ID,
	).Scan(&service.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrServiceNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return catalog.ErrServiceNameTaken
		}
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

// SoftDeleteService marks a service deleted without removing the row.
func (r *Repository) SoftDeleteService(ctx context.Context, orgID, id string) error {
	query := `
		UPDATE services
		SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE org_id = $1 AND id = $2 AND is_deleted = false
	`
	tag, err := r.db.Exec(ctx, query, orgID, id)
	if err != nil {
		return fmt.Errorf("soft delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}
