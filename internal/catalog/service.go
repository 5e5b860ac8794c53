// Package catalog provides business logic for organizations and services.
package catalog

import (
	"context"
	"fmt"

	"github.com/statusbeacon/beacon/internal/domain"
	"github.com/statusbeacon/beacon/internal/pkg/ctxlog"
)

// Broadcaster enqueues realtime notifications for service changes.
// Implementations are fire-and-forget: they never block or fail the write.
type Broadcaster interface {
	ServiceChanged(serviceID string, org domain.OrgRef)
	ServiceDeleted(serviceID string, org domain.OrgRef)
}

// Service implements tenant catalog business logic.
type Service struct {
	repo        Repository
	broadcaster Broadcaster
}

// NewService creates a new catalog service.
func NewService(repo Repository, broadcaster Broadcaster) *Service {
	return &Service{repo: repo, broadcaster: broadcaster}
}

// CreateServiceInput holds data for creating a service.
type CreateServiceInput struct {
	Name        string
	Description string
	IsActive    bool
}

// UpdateServiceInput holds data for updating a service. Status is absent
// on purpose: a service's status only changes through the incident
// lifecycle.
type UpdateServiceInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// GetOrg retrieves an organization by ID.
func (s *Service) GetOrg(ctx context.Context, id string) (*domain.Organization, error) {
	return s.repo.GetOrgByID(ctx, id)
}

// GetOrgBySlug retrieves an organization by slug.
func (s *Service) GetOrgBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return s.repo.GetOrgBySlug(ctx, slug)
}

// CreateService creates a new service for the organization. New services
// always start operational; status changes flow through incidents only.
func (s *Service) CreateService(ctx context.Context, orgID string, input CreateServiceInput) (*domain.Service, error) {
	service := &domain.Service{
		OrgID:       orgID,
		Name:        input.Name,
		Description: input.Description,
		Status:      domain.ServiceStatusOperational,
		IsActive:    input.IsActive,
	}

	if err := s.repo.CreateService(ctx, service); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	s.notifyChanged(ctx, service.ID, orgID)
	return service, nil
}

// GetService retrieves a service by ID within the organization.
func (s *Service) GetService(ctx context.Context, orgID, id string) (*domain.Service, error) {
	return s.repo.GetService(ctx, orgID, id)
}

// ListServices lists the organization's services.
func (s *Service) ListServices(ctx context.Context, orgID string, filter ServiceFilter) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, orgID, filter)
}

// ListPublicServices lists services for a public status page by org slug.
func (s *Service) ListPublicServices(ctx context.Context, orgSlug string) ([]domain.Service, error) {
	return s.repo.ListPublicServices(ctx, orgSlug)
}

// UpdateService applies metadata changes to a service. Status updates are
// rejected at the DTO layer and never reach this path.
func (s *Service) UpdateService(ctx context.Context, orgID, id string, input UpdateServiceInput) (*domain.Service, error) {
	service, err := s.repo.GetService(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if service.IsDeleted {
		return nil, ErrServiceDeleted
	}

	if input.Name != nil {
		service.Name = *input.Name
	}
	if input.Description != nil {
		service.Description = *input.Description
	}
	if input.IsActive != nil {
		service.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateService(ctx, service); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}

	s.notifyChanged(ctx, service.ID, orgID)
	return service, nil
}

// DeleteService soft-deletes a service. The organization identity is
// captured before the delete so deletion broadcasts route correctly.
func (s *Service) DeleteService(ctx context.Context, orgID, id string) error {
	org, err := s.repo.GetOrgRefByID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("resolve org: %w", err)
	}

	if err := s.repo.SoftDeleteService(ctx, orgID, id); err != nil {
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.ServiceDeleted(id, org)
	}
	return nil
}

// CheckService is the external health-check placeholder. Real probing is
// not implemented; it always reports operational.
func (s *Service) CheckService(_ context.Context, _ *domain.Service) domain.ServiceStatus {
	return domain.ServiceStatusOperational
}

func (s *Service) notifyChanged(ctx context.Context, serviceID, orgID string) {
	if s.broadcaster == nil {
		return
	}
	org, err := s.repo.GetOrgRefByID(ctx, orgID)
	if err != nil {
		ctxlog.FromContext(ctx).Error("resolve org for broadcast", "org_id", orgID, "error", err)
		return
	}
	s.broadcaster.ServiceChanged(serviceID, org)
}
