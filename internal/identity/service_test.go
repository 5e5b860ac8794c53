package identity

import (
	"context"
	"testing"
	"time"

	"github.com/statusbeacon/beacon/internal/domain"
	"github.com/statusbeacon/beacon/internal/identity/jwt"
	"github.com/statusbeacon/beacon/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users map[string]*domain.User
	orgs  map[string]domain.OrgRef
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: make(map[string]*domain.User),
		orgs:  make(map[string]domain.OrgRef),
	}
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetOrgRefByID(_ context.Context, orgID string) (domain.OrgRef, error) {
	if ref, ok := m.orgs[orgID]; ok {
		return ref, nil
	}
	return domain.OrgRef{}, ErrOrgNotFound
}

func seedUser(t *testing.T, repo *mockRepository, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{
		ID:           "user-1",
		OrgID:        "org-1",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	repo.users[user.Email] = user
	repo.orgs[user.OrgID] = domain.OrgRef{ID: "org-1", Slug: "acme"}
	return user
}

func newTestService(repo Repository) *Service {
	return NewService(repo, jwt.NewAuthenticator("test-secret", time.Hour))
}

func TestLogin_Success(t *testing.T) {
	repo := newMockRepository()
	seedUser(t, repo, "password123")
	service := newTestService(repo)

	user, token, err := service.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "password123",
	})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, token)
	assert.Equal(t, "user-1", user.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newMockRepository()
	seedUser(t, repo, "password123")
	service := newTestService(repo)

	user, token, err := service.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "wrong",
	})

	assert.Nil(t, user)
	assert.Empty(t, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "password123",
	})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_RoundTrip(t *testing.T) {
	repo := newMockRepository()
	user := seedUser(t, repo, "password123")
	service := newTestService(repo)

	_, token, err := service.Login(context.Background(), LoginInput{
		Email:    user.Email,
		Password: "password123",
	})
	require.NoError(t, err)

	auth, err := service.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", auth.UserID)
	assert.Equal(t, "org-1", auth.OrgID)
	assert.Equal(t, domain.RoleAdmin, auth.Role)
}

func TestValidateToken_Garbage(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.ValidateToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_DeletedUser(t *testing.T) {
	repo := newMockRepository()
	user := seedUser(t, repo, "password123")
	service := newTestService(repo)

	_, token, err := service.Login(context.Background(), LoginInput{
		Email:    user.Email,
		Password: "password123",
	})
	require.NoError(t, err)

	delete(repo.users, user.Email)

	_, err = service.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorizeSession_Success(t *testing.T) {
	repo := newMockRepository()
	user := seedUser(t, repo, "password123")
	service := newTestService(repo)

	_, token, err := service.Login(context.Background(), LoginInput{
		Email:    user.Email,
		Password: "password123",
	})
	require.NoError(t, err)

	org, err := service.AuthorizeSession(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "org-1", org.ID)
	assert.Equal(t, "acme", org.Slug)
}

func TestAuthorizeSession_InvalidToken(t *testing.T) {
	repo := newMockRepository()
	service := newTestService(repo)

	_, err := service.AuthorizeSession(context.Background(), "garbage")
	assert.ErrorIs(t, err, realtime.ErrInvalidToken)
}

func TestAuthorizeSession_UnknownUser(t *testing.T) {
	repo := newMockRepository()
	user := seedUser(t, repo, "password123")
	service := newTestService(repo)

	_, token, err := service.Login(context.Background(), LoginInput{
		Email:    user.Email,
		Password: "password123",
	})
	require.NoError(t, err)

	delete(repo.users, user.Email)

	_, err = service.AuthorizeSession(context.Background(), token)
	assert.ErrorIs(t, err, realtime.ErrUnknownUser)
}
