package identity

import (
	"context"

	"github.com/statusbeacon/beacon/internal/domain"
)

// Repository defines the interface for identity storage.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetOrgRefByID(ctx context.Context, orgID string) (domain.OrgRef, error)
}
