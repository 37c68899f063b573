package identity

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"kyri56xcaesar/nexushub/internal/authmw"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("identity-secret")

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type mockFederated struct {
	mock.Mock
}

func (m *mockFederated) Authenticate(ctx context.Context, username, password string) (*authmw.Identity, error) {
	args := m.Called(ctx, username, password)
	id, _ := args.Get(0).(*authmw.Identity)
	return id, args.Error(1)
}

func newTestService(t *testing.T, mailer Mailer, fed Federated) (*Service, *memstore.Storage) {
	t.Helper()
	s := memstore.NewStorage()
	return NewService(s, mailer, fed, Options{Secret: testSecret, PublicBaseURL: "http://app"}), s
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	mailer := new(mockMailer)
	mailer.On("Send", mock.Anything, "alice@example.com", mock.Anything, mock.Anything).Return(stderrors.New("smtp down"))
	svc, s := newTestService(t, mailer, nil)

	user, token, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: " Alice@Example.com ", Password: "secret1"})
	require.NoError(t, err, "mail failure must not fail registration")
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.Password)
	assert.False(t, user.IsEmailVerified)
	mailer.AssertExpectations(t)

	id, err := authmw.NewLocalVerifier(testSecret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.Subject)

	stored, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.VerificationToken)
	require.NotNil(t, stored.VerificationExpires)

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{name: "duplicate username", req: RegisterRequest{Username: "alice", Email: "x@example.com", Password: "secret1"}, want: errors.ErrConflict},
		{name: "duplicate email", req: RegisterRequest{Username: "alice2", Email: "ALICE@example.com", Password: "secret1"}, want: errors.ErrConflict},
		{name: "bad username", req: RegisterRequest{Username: "a b", Email: "y@example.com", Password: "secret1"}, want: errors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LogMailer{}, nil)
	_, _, err := svc.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "hunter22"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  LoginRequest
		want error
	}{
		{name: "by username", req: LoginRequest{Identifier: "bob", Password: "hunter22"}},
		{name: "by email any case", req: LoginRequest{Identifier: "BOB@example.com", Password: "hunter22"}},
		{name: "wrong password", req: LoginRequest{Identifier: "bob", Password: "nope"}, want: errors.ErrInvalidCredentials},
		{name: "unknown user", req: LoginRequest{Identifier: "nobody", Password: "hunter22"}, want: errors.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, token, err := svc.Login(ctx, tt.req)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "bob", user.Username)
			assert.NotEmpty(t, token)
		})
	}
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t, LogMailer{}, nil)
	user, _, err := svc.Register(ctx, RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "secret1"})
	require.NoError(t, err)
	stored, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.VerifyEmail(ctx, stored.VerificationToken))
	verified, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)
	assert.Empty(t, verified.VerificationToken)

	assert.ErrorIs(t, svc.VerifyEmail(ctx, stored.VerificationToken), errors.ErrValidationFailed)

	past := time.Now().Add(-time.Minute)
	verified.VerificationToken = "stale"
	verified.VerificationExpires = &past
	require.NoError(t, s.UpdateUser(ctx, verified))
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "stale"), errors.ErrValidationFailed)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t, LogMailer{}, nil)
	_, _, err := svc.Register(ctx, RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "oldpass"})
	require.NoError(t, err)

	assert.NoError(t, svc.ForgotPassword(ctx, "unknown@example.com"))
	require.NoError(t, svc.ForgotPassword(ctx, "Dave@example.com"))

	stored, err := s.GetUserByEmail(ctx, "dave@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, stored.ResetToken)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "wrong", "newpass"), errors.ErrValidationFailed)
	require.NoError(t, svc.ResetPassword(ctx, stored.ResetToken, "newpass"))
	assert.ErrorIs(t, svc.ResetPassword(ctx, stored.ResetToken, "again1"), errors.ErrValidationFailed)

	_, _, err = svc.Login(ctx, LoginRequest{Identifier: "dave", Password: "newpass"})
	assert.NoError(t, err)
	_, _, err = svc.Login(ctx, LoginRequest{Identifier: "dave", Password: "oldpass"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LogMailer{}, nil)
	user, _, err := svc.Register(ctx, RegisterRequest{Username: "erin", Email: "erin@example.com", Password: "secret1"})
	require.NoError(t, err)

	bio := "gopher"
	skills := []string{"go", " ", "sql"}
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileRequest{Bio: &bio, Skills: &skills})
	require.NoError(t, err)
	assert.Equal(t, "gopher", updated.Bio)
	assert.Equal(t, []string{"go", "sql"}, updated.Skills)

	public, err := svc.PublicProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin", public.Username)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "bad", NewPassword: "secret2"}), errors.ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}))

	assert.ErrorIs(t, svc.DeleteAccount(ctx, user.ID, "secret1"), errors.ErrInvalidCredentials)
	require.NoError(t, svc.DeleteAccount(ctx, user.ID, "secret2"))
	_, err = svc.Profile(ctx, user.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestFederatedProvisioning(t *testing.T) {
	ctx := context.Background()
	fed := new(mockFederated)
	ident := &authmw.Identity{Subject: "kc-1", Provider: models.ProviderKeycloak, Username: "frank", Email: "frank@example.com", EmailVerified: true}
	fed.On("Authenticate", mock.Anything, "frank", "kcpass").Return(ident, nil)
	fed.On("Authenticate", mock.Anything, "frank", "bad").Return(nil, stderrors.New("invalid_grant"))

	svc, s := newTestService(t, LogMailer{}, fed)

	user, token, err := svc.FederatedLogin(ctx, "frank", "kcpass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "frank", user.Username)
	assert.Equal(t, "kc-1", user.KeycloakID)
	assert.True(t, user.IsEmailVerified)

	again, _, err := svc.FederatedLogin(ctx, "frank", "kcpass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID, "second login reuses the linked account")

	_, _, err = svc.FederatedLogin(ctx, "frank", "bad")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	actor, err := svc.ResolveActor(ctx, ident)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor)

	// the random local password never authenticates
	_, _, err = svc.Login(ctx, LoginRequest{Identifier: "frank", Password: ""})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	assert.ErrorIs(t, svc.DeleteAccount(ctx, user.ID, "bad"), errors.ErrInvalidCredentials)
	require.NoError(t, svc.DeleteAccount(ctx, user.ID, "kcpass"))
	_, err = s.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestFederatedUsernameCollision(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LogMailer{}, nil)
	_, _, err := svc.Register(ctx, RegisterRequest{Username: "gina", Email: "gina@example.com", Password: "secret1"})
	require.NoError(t, err)

	actor, err := svc.ResolveActor(ctx, &authmw.Identity{
		Subject: "kc-2", Provider: models.ProviderKeycloak, Username: "gina", Email: "other@example.com",
	})
	require.NoError(t, err)

	u, err := svc.Profile(ctx, actor)
	require.NoError(t, err)
	assert.NotEqual(t, "gina", u.Username)
	assert.Contains(t, u.Username, "gina-")

	_, err = svc.ResolveActor(ctx, &authmw.Identity{
		Subject: "kc-3", Provider: models.ProviderKeycloak, Username: "x", Email: "gina@example.com", EmailVerified: false,
	})
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestFederatedLoginDisabled(t *testing.T) {
	svc, _ := newTestService(t, LogMailer{}, nil)
	_, _, err := svc.FederatedLogin(context.Background(), "x", "y")
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}

func TestResolveLocalActor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LogMailer{}, nil)
	user, _, err := svc.Register(ctx, RegisterRequest{Username: "hank", Email: "hank@example.com", Password: "secret1"})
	require.NoError(t, err)

	actor, err := svc.ResolveActor(ctx, &authmw.Identity{Subject: user.ID})
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor)

	_, err = svc.ResolveActor(ctx, &authmw.Identity{Subject: "deleted"})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
