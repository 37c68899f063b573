// Package identity owns local accounts: registration, credentials, email
// verification, password reset and federated provisioning.
package identity

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"strings"
	"time"

	"kyri56xcaesar/nexushub/internal/authmw"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/store"
	"kyri56xcaesar/nexushub/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

const tokenLength = 48

// Federated signs a user in against an external identity provider.
type Federated interface {
	Authenticate(ctx context.Context, username, password string) (*authmw.Identity, error)
}

type Options struct {
	Secret          []byte
	TokenTTL        time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	PublicBaseURL   string
}

type Service struct {
	users     store.UserRepository
	mailer    Mailer
	federated Federated
	opts      Options
}

// NewService wires the account service; federated may be nil.
func NewService(users store.UserRepository, mailer Mailer, federated Federated, opts Options) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	return &Service{users: users, mailer: mailer, federated: federated, opts: opts}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validUsername(username string) bool {
	return len(username) >= 3 && len(username) <= 30 && utils.IsAlphanumericPlus(username, "_.-")
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Service) issue(u *models.User) (string, error) {
	return authmw.IssueToken(s.opts.Secret, u.ID, u.Username, s.opts.TokenTTL)
}

// mail never fails the caller.
func (s *Service) mail(ctx context.Context, to, subject, body string) {
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		log.Printf("[WARN] sending %q to %s: %v", subject, to, err)
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, string, error) {
	username := strings.TrimSpace(req.Username)
	if !validUsername(username) {
		return nil, "", errors.Invalid("username must be 3-30 letters, digits, '_', '-' or '.'")
	}
	email := normalizeEmail(req.Email)

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, "", fmt.Errorf("username taken: %w", errors.ErrUserAlreadyExists)
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		return nil, "", err
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("email taken: %w", errors.ErrUserAlreadyExists)
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		return nil, "", err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}
	verifyToken, err := utils.GenerateRandomStringAll(tokenLength)
	if err != nil {
		return nil, "", err
	}
	expires := time.Now().UTC().Add(s.opts.VerificationTTL)

	u := &models.User{
		Username:            username,
		Email:               email,
		Password:            hash,
		FullName:            strings.TrimSpace(req.FullName),
		Skills:              []string{},
		VerificationToken:   verifyToken,
		VerificationExpires: &expires,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}

	s.mail(ctx, u.Email, "Verify your NexusHub account",
		fmt.Sprintf("Welcome %s!\nConfirm your email: %s/verify-email/%s", u.Username, s.opts.PublicBaseURL, verifyToken))

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.User, string, error) {
	ident := strings.TrimSpace(req.Identifier)

	var (
		u   *models.User
		err error
	)
	if strings.Contains(ident, "@") {
		u, err = s.users.GetUserByEmail(ctx, normalizeEmail(ident))
	} else {
		u, err = s.users.GetUserByUsername(ctx, ident)
	}
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil, "", errors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !checkPassword(u.Password, req.Password) {
		return nil, "", errors.ErrInvalidCredentials
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	u, err := s.users.GetUserByVerificationToken(ctx, token)
	if stderrors.Is(err, errors.ErrNotFound) {
		return errors.Invalid("invalid verification token")
	}
	if err != nil {
		return err
	}
	if u.VerificationExpires != nil && time.Now().After(*u.VerificationExpires) {
		return errors.Invalid("verification token expired")
	}

	u.IsEmailVerified = true
	u.VerificationToken = ""
	u.VerificationExpires = nil
	return s.users.UpdateUser(ctx, u)
}

// ForgotPassword never reveals whether the address is registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := utils.GenerateRandomStringAll(tokenLength)
	if err != nil {
		return err
	}
	expires := time.Now().UTC().Add(s.opts.ResetTTL)
	u.ResetToken = token
	u.ResetExpires = &expires
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}

	s.mail(ctx, u.Email, "Reset your NexusHub password",
		fmt.Sprintf("Reset your password: %s/reset-password/%s\nThe link expires in %s.", s.opts.PublicBaseURL, token, s.opts.ResetTTL))
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	u, err := s.users.GetUserByResetToken(ctx, token)
	if stderrors.Is(err, errors.ErrNotFound) {
		return errors.Invalid("invalid reset token")
	}
	if err != nil {
		return err
	}
	if u.ResetExpires == nil || time.Now().After(*u.ResetExpires) {
		return errors.Invalid("reset token expired")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hash
	u.ResetToken = ""
	u.ResetExpires = nil
	return s.users.UpdateUser(ctx, u)
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *Service) PublicProfile(ctx context.Context, userID string) (*PublicProfile, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		Location:  u.Location,
		Skills:    u.Skills,
		CreatedAt: u.CreatedAt,
	}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.Avatar != nil {
		u.Avatar = *req.Avatar
	}
	if req.Location != nil {
		u.Location = strings.TrimSpace(*req.Location)
	}
	if req.Skills != nil {
		u.Skills = utils.Filter(*req.Skills, func(s string) bool { return strings.TrimSpace(s) != "" })
	}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(u.Password, req.CurrentPassword) {
		return errors.ErrInvalidCredentials
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	u.Password = hash
	return s.users.UpdateUser(ctx, u)
}

// DeleteAccount requires the password again. Federated accounts reconfirm
// against their provider. Data the user owns is left in place.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) error {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if u.KeycloakID != "" && s.federated != nil {
		ident, err := s.federated.Authenticate(ctx, u.Username, password)
		if err != nil || ident.Subject != u.KeycloakID {
			return errors.ErrInvalidCredentials
		}
	} else if !checkPassword(u.Password, password) {
		return errors.ErrInvalidCredentials
	}

	return s.users.DeleteUser(ctx, u.ID)
}

// FederatedLogin signs in through the external provider and returns a local
// token for the linked (possibly just provisioned) account.
func (s *Service) FederatedLogin(ctx context.Context, username, password string) (*models.User, string, error) {
	if s.federated == nil {
		return nil, "", errors.Invalid("federated login is not enabled")
	}
	ident, err := s.federated.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", errors.ErrInvalidCredentials
	}
	u, err := s.provision(ctx, ident)
	if err != nil {
		return nil, "", err
	}
	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// ResolveActor implements authmw.Resolver.
func (s *Service) ResolveActor(ctx context.Context, ident *authmw.Identity) (string, error) {
	if ident.Provider == "" {
		u, err := s.users.GetUserByID(ctx, ident.Subject)
		if err != nil {
			return "", err
		}
		return u.ID, nil
	}
	u, err := s.provision(ctx, ident)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// provision finds the local user linked to ident, creating one on first
// sign-in. A verified email that matches a local account links it.
func (s *Service) provision(ctx context.Context, ident *authmw.Identity) (*models.User, error) {
	u, err := s.users.GetUserByExternalID(ctx, ident.Provider, ident.Subject)
	if err == nil {
		return u, nil
	}
	if !stderrors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	email := normalizeEmail(ident.Email)
	if email == "" {
		email = ident.Subject + "@users.noreply.nexushub"
	}

	if existing, err := s.users.GetUserByEmail(ctx, email); err == nil {
		if !ident.EmailVerified {
			return nil, fmt.Errorf("email %s belongs to another account: %w", email, errors.ErrConflict)
		}
		linkExternal(existing, ident)
		if err := s.users.UpdateUser(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	username, err := s.freeUsername(ctx, ident)
	if err != nil {
		return nil, err
	}
	random, err := utils.GenerateRandomString(32)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(random)
	if err != nil {
		return nil, err
	}

	u = &models.User{
		Username:        username,
		Email:           email,
		Password:        hash,
		FullName:        ident.FullName,
		Skills:          []string{},
		IsEmailVerified: ident.EmailVerified,
	}
	linkExternal(u, ident)
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	log.Printf("[INFO] provisioned %s user %s for subject %s", ident.Provider, u.Username, ident.Subject)
	return u, nil
}

func linkExternal(u *models.User, ident *authmw.Identity) {
	switch ident.Provider {
	case models.ProviderGoogle:
		u.GoogleID = ident.Subject
	case models.ProviderGithub:
		u.GithubID = ident.Subject
	case models.ProviderKeycloak:
		u.KeycloakID = ident.Subject
	}
}

// freeUsername derives an unused username from the provider's claims.
func (s *Service) freeUsername(ctx context.Context, ident *authmw.Identity) (string, error) {
	base := strings.TrimSpace(ident.Username)
	if !validUsername(base) {
		base = "user"
	}
	candidate := base
	for i := 0; i < 5; i++ {
		_, err := s.users.GetUserByUsername(ctx, candidate)
		if stderrors.Is(err, errors.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		suffix, err := utils.GenerateRandomString(4)
		if err != nil {
			return "", err
		}
		candidate = base + "-" + strings.ToLower(suffix)
	}
	return "", fmt.Errorf("no free username for %s: %w", base, errors.ErrConflict)
}
