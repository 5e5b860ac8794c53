// Package incidents implements the incident lifecycle: creation, status
// transitions, resolution, deletion, and the derivation of service status
// from the set of unresolved incidents.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/statusbeacon/beacon/internal/domain"
)

// Broadcaster enqueues realtime notifications after a write commits.
// Implementations are fire-and-forget: they never block or fail the write.
type Broadcaster interface {
	IncidentChanged(incidentID string, org domain.OrgRef)
	IncidentDeleted(incidentID string, org domain.OrgRef)
	ServiceChanged(serviceID string, org domain.OrgRef)
}

// Service implements incident lifecycle business logic. All mutations run
// in a single transaction holding an exclusive lock on the target service
// (and, for updates, the incident), service first to keep lock acquisition
// order consistent across concurrent operations.
type Service struct {
	repo        Repository
	broadcaster Broadcaster
}

// NewService creates a new incident service.
func NewService(repo Repository, broadcaster Broadcaster) *Service {
	return &Service{repo: repo, broadcaster: broadcaster}
}

// CreateInput holds data for opening an incident.
type CreateInput struct {
	ServiceID   string
	Title       string
	Description string
	ToState     domain.ServiceStatus
	StartedAt   *time.Time
}

// UpdateInput holds data for updating an incident. FromState and ToState
// are immutable after creation and have no fields here; callers sending
// them have those values silently dropped at the DTO layer.
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.IncidentStatus
}

// Create opens an incident against a service. The service row is locked
// for the duration of the transaction, so concurrent creates serialize:
// the second creator observes the first creator's committed status as its
// from_state.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*domain.Incident, error) {
	if !input.ToState.IsValid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, input.ToState)
	}

	org, err := s.repo.GetOrgRefByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("resolve org: %w", err)
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	service, err := s.repo.LockServiceTx(ctx, tx, orgID, input.ServiceID)
	if err != nil {
		return nil, err
	}

	if !domain.CanOpenIncident(service.Status, input.ToState) {
		return nil, invalidTransitionError(service.Status, input.ToState)
	}

	startedAt := time.Now()
	if input.StartedAt != nil {
		startedAt = *input.StartedAt
	}

	incident := &domain.Incident{
		OrgID:       orgID,
		ServiceID:   service.ID,
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.IncidentStatusInvestigating,
		StartedAt:   startedAt,
		FromState:   service.Status,
		ToState:     input.ToState,
	}

	if err := s.repo.CreateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	if err := s.repo.UpdateServiceStatusTx(ctx, tx, service.ID, incident.ToState); err != nil {
		return nil, fmt.Errorf("update service status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.notify(incident.ID, service.ID, org)
	return incident, nil
}

// Get retrieves an incident by ID within the organization.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, orgID, id)
}

// List retrieves the organization's incidents with optional filters.
func (s *Service) List(ctx context.Context, orgID string, filter Filter) ([]domain.Incident, error) {
	return s.repo.ListIncidents(ctx, orgID, filter)
}

// ListPublic retrieves publicly visible incidents by org slug.
func (s *Service) ListPublic(ctx context.Context, orgSlug string) ([]domain.Incident, error) {
	return s.repo.ListPublicIncidents(ctx, orgSlug)
}

// ResultingState computes the service status that would result if the
// incident resolved now: the to_state of the most recent other unresolved
// incident, else operational. Returns nil for resolved incidents.
func (s *Service) ResultingState(ctx context.Context, incident *domain.Incident) (*domain.ServiceStatus, error) {
	if incident.Status.IsResolved() {
		return nil, nil
	}

	state, ok, err := s.repo.LatestUnresolvedToState(ctx, incident.ServiceID, incident.ID)
	if err != nil {
		return nil, fmt.Errorf("derive resulting state: %w", err)
	}
	if !ok {
		state = domain.ServiceStatusOperational
	}
	return &state, nil
}

// Update applies changes to an incident. A transition into resolved sets
// resolved_at exactly once and recomputes the service's status from its
// remaining unresolved incidents. Moving status away from resolved is
// rejected: resolved incidents never reopen.
func (s *Service) Update(ctx context.Context, orgID, id string, input UpdateInput) (*domain.Incident, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *input.Status)
	}

	org, err := s.repo.GetOrgRefByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("resolve org: %w", err)
	}

	// Unlocked read to learn the owning service; service_id is immutable,
	// so the lock ordering below stays valid.
	current, err := s.repo.GetIncident(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	service, err := s.repo.LockServiceTx(ctx, tx, orgID, current.ServiceID)
	if err != nil {
		return nil, err
	}

	incident, err := s.repo.LockIncidentTx(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}

	if incident.Status.IsResolved() && input.Status != nil && !input.Status.IsResolved() {
		return nil, ErrIncidentResolved
	}

	resolving := input.Status != nil && input.Status.IsResolved() && !incident.Status.IsResolved()

	if input.Title != nil {
		incident.Title = *input.Title
	}
	if input.Description != nil {
		incident.Description = *input.Description
	}
	if input.Status != nil {
		incident.Status = *input.Status
	}
	if resolving && incident.ResolvedAt == nil {
		now := time.Now()
		incident.ResolvedAt = &now
	}

	if err := s.repo.UpdateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	if resolving {
		if err := s.recomputeServiceStatusTx(ctx, tx, service.ID, incident.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.notify(incident.ID, service.ID, org)
	return incident, nil
}

// Delete removes an incident and recomputes the owning service's status
// as if the incident had been resolved. Organization identity is captured
// before the row is removed so deletion broadcasts route correctly.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	org, err := s.repo.GetOrgRefByID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("resolve org: %w", err)
	}

	current, err := s.repo.GetIncident(ctx, orgID, id)
	if err != nil {
		return err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	service, err := s.repo.LockServiceTx(ctx, tx, orgID, current.ServiceID)
	if err != nil {
		return err
	}

	incident, err := s.repo.LockIncidentTx(ctx, tx, orgID, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteIncidentTx(ctx, tx, incident.ID); err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}

	if err := s.recomputeServiceStatusTx(ctx, tx, service.ID, incident.ID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.IncidentDeleted(incident.ID, org)
		s.broadcaster.ServiceChanged(service.ID, org)
	}
	return nil
}

// RecomputeServiceStatus re-derives a service's status from its current
// set of unresolved incidents and persists the result.
func (s *Service) RecomputeServiceStatus(ctx context.Context, orgID, serviceID string) (*domain.Service, error) {
	org, err := s.repo.GetOrgRefByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("resolve org: %w", err)
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	service, err := s.repo.LockServiceTx(ctx, tx, orgID, serviceID)
	if err != nil {
		return nil, err
	}

	status, ok, err := s.repo.LatestUnresolvedToStateTx(ctx, tx, service.ID, "")
	if err != nil {
		return nil, fmt.Errorf("derive status: %w", err)
	}
	if !ok {
		status = domain.ServiceStatusOperational
	}

	if err := s.repo.UpdateServiceStatusTx(ctx, tx, service.ID, status); err != nil {
		return nil, fmt.Errorf("update service status: %w", err)
	}
	service.Status = status

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.ServiceChanged(service.ID, org)
	}
	return service, nil
}

// recomputeServiceStatusTx applies the derivation rule inside the
// caller's transaction: the most recently started unresolved incident's
// to_state wins, else operational.
func (s *Service) recomputeServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID, excludeIncidentID string) error {
	status, ok, err := s.repo.LatestUnresolvedToStateTx(ctx, tx, serviceID, excludeIncidentID)
	if err != nil {
		return fmt.Errorf("derive status: %w", err)
	}
	if !ok {
		status = domain.ServiceStatusOperational
	}

	if err := s.repo.UpdateServiceStatusTx(ctx, tx, serviceID, status); err != nil {
		return fmt.Errorf("update service status: %w", err)
	}
	return nil
}

func (s *Service) notify(incidentID, serviceID string, org domain.OrgRef) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.IncidentChanged(incidentID, org)
	s.broadcaster.ServiceChanged(serviceID, org)
}

func invalidTransitionError(from, to domain.ServiceStatus) error {
	next := domain.ValidNextStates(from)
	if len(next) == 0 {
		return fmt.Errorf("%w: no incident may be opened against a service in %q", ErrInvalidTransition, from)
	}

	names := make([]string, 0, len(next))
	for _, s := range next {
		names = append(names, string(s))
	}
	return fmt.Errorf("%w: from %q you can only transition to: %s", ErrInvalidTransition, from, strings.Join(names, ", "))
}
