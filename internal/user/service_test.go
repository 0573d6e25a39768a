package user

import (
	"context"
	"testing"
	"time"

	"github.com/eventhall/ticketing/internal/auth"
	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	byEmail map[string]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*domain.User)}
}

func (m *memUsers) CreateUser(_ context.Context, u *domain.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return domain.ErrConflict
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func newTestService(store Store) (*Service, *auth.Tokens) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	return NewService(store, tokens, observability.NewLogger()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newTestService(newMemUsers())

	u, err := svc.Register(context.Background(), "alice@example.com", "hunter22", domain.RoleOrganizer)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOrganizer, u.Role)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	token, err := svc.Login(context.Background(), "alice@example.com", "hunter22")
	require.NoError(t, err)

	identity, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.UserID)
	assert.Equal(t, domain.RoleOrganizer, identity.Role)
}

func TestRegister_DefaultsToUserRole(t *testing.T) {
	svc, _ := newTestService(newMemUsers())

	u, err := svc.Register(context.Background(), "bob@example.com", "pw123456", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, u.Role)
}

func TestRegister_RejectsAdminRole(t *testing.T) {
	svc, _ := newTestService(newMemUsers())

	_, err := svc.Register(context.Background(), "eve@example.com", "pw123456", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(newMemUsers())

	_, err := svc.Register(context.Background(), "alice@example.com", "pw123456", domain.RoleUser)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice@example.com", "other-pw", domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestService(newMemUsers())

	_, err := svc.Register(context.Background(), "alice@example.com", "pw123456", domain.RoleUser)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.Login(context.Background(), "nobody@example.com", "pw123456")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
