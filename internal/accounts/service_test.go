package accounts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kushan1992/diagram-builder/internal/store"
)

type fakeUserStore struct {
	byEmail map[string]store.User
	byID    map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: map[string]store.User{},
		byID:    map[string]store.User{},
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func TestSignUpCreatesEditorByDefault(t *testing.T) {
	svc := NewService(newFakeUserStore())

	user, err := svc.SignUp(context.Background(), SignUpRequest{Email: "Alice@X.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", user.Email)
	assert.Equal(t, "editor", user.Role)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestSignUpViewerRole(t *testing.T) {
	svc := NewService(newFakeUserStore())

	user, err := svc.SignUp(context.Background(), SignUpRequest{Email: "bob@x.com", Password: "password123", Role: "viewer"})
	require.NoError(t, err)
	assert.Equal(t, "viewer", user.Role)
}

func TestSignUpRejectsUnknownRole(t *testing.T) {
	svc := NewService(newFakeUserStore())

	_, err := svc.SignUp(context.Background(), SignUpRequest{Email: "bob@x.com", Password: "password123", Role: "admin"})
	assert.Error(t, err)
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())

	_, err := svc.SignUp(context.Background(), SignUpRequest{Email: "alice@x.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), SignUpRequest{Email: "ALICE@x.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignInVerifiesPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())

	_, err := svc.SignUp(context.Background(), SignUpRequest{Email: "alice@x.com", Password: "password123"})
	require.NoError(t, err)

	user, err := svc.SignIn(context.Background(), "alice@x.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", user.Email)

	_, err = svc.SignIn(context.Background(), "alice@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(context.Background(), "nobody@x.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveEmail(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	created, err := svc.SignUp(context.Background(), SignUpRequest{Email: "bob@x.com", Password: "password123"})
	require.NoError(t, err)

	resolved, err := svc.ResolveEmail(context.Background(), "bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)

	_, err = svc.ResolveEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
