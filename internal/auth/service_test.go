package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/shared"
)

type mockRepository struct {
	users    map[string]*User
	sessions map[string]int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[string]*User), sessions: make(map[string]int64)}
}

func (m *mockRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, crm.ErrNotFound
	}
	return u, nil
}

func (m *mockRepository) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	m.sessions[id] = userID
	return nil
}

func (m *mockRepository) DeleteSession(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func seedUser(t *testing.T, repo *mockRepository, email, password string, active bool) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &User{
		ID:           int64(len(repo.users) + 1),
		Email:        email,
		FullName:     "Test User",
		PasswordHash: string(hash),
		Role:         crm.RoleSales,
		IsActive:     active,
	}
	repo.users[email] = u
	return u
}

func TestAuthenticate(t *testing.T) {
	repo := newMockRepository()
	seedUser(t, repo, "sales@example.com", "correct-horse", true)
	seedUser(t, repo, "gone@example.com", "correct-horse", false)
	svc := NewService(repo)

	t.Run("valid credentials", func(t *testing.T) {
		user, err := svc.Authenticate(context.Background(), "sales@example.com", "correct-horse")
		require.NoError(t, err)
		require.Equal(t, crm.RoleSales, user.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "sales@example.com", "battery-staple")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "nobody@example.com", "correct-horse")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	})

	t.Run("inactive account", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "gone@example.com", "correct-horse")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	})
}

func TestSessionLifecycle(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	err := svc.RegisterSession(context.Background(), "sess-1", 42, time.Now().Add(time.Hour), "127.0.0.1", "tests")
	require.NoError(t, err)
	require.Equal(t, int64(42), repo.sessions["sess-1"])

	require.NoError(t, svc.RemoveSession(context.Background(), "sess-1"))
	require.Empty(t, repo.sessions)
}
