package catalog

import (
	"context"

	"github.com/statusbeacon/beacon/internal/domain"
)

// Repository defines the interface for tenant data operations. Every
// service query is scoped by organization.
type Repository interface {
	GetOrgByID(ctx context.Context, id string) (*domain.Organization, error)
	GetOrgBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	GetOrgRefByID(ctx context.Context, id string) (domain.OrgRef, error)

	CreateService(ctx context.Context, service *domain.Service) error
	GetService(ctx context.Context, orgID, id string) (*domain.Service, error)
	ListServices(ctx context.Context, orgID string, filter ServiceFilter) ([]domain.Service, error)
	UpdateService(ctx context.Context, service *domain.Service) error
	SoftDeleteService(ctx context.Context, orgID, id string) error

	// ListPublicServices returns services visible on the public status
	// page: org active, service active and not soft-deleted.
	ListPublicServices(ctx context.Context, orgSlug string) ([]domain.Service, error)
}

// ServiceFilter represents filter criteria for listing services.
type ServiceFilter struct {
	Query          string
	IsActive       *bool
	IncludeDeleted bool
}
