package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
)

const userColumns = `id, username, email, password, full_name, bio, avatar, location, skills,
	COALESCE(google_id,''), COALESCE(github_id,''), COALESCE(keycloak_id,''),
	is_email_verified, COALESCE(verification_token,''), verification_expires,
	COALESCE(reset_token,''), reset_expires, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u      models.User
		skills []byte
	)
	if err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.Bio, &u.Avatar, &u.Location, &skills,
		&u.GoogleID, &u.GithubID, &u.KeycloakID,
		&u.IsEmailVerified, &u.VerificationToken, &u.VerificationExpires,
		&u.ResetToken, &u.ResetExpires, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalInto(skills, &u.Skills, "skills"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	skills, err := jsonArg(user.Skills)
	if err != nil {
		return err
	}
	user.ID = newID(user.ID)
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password, full_name, bio, avatar, location, skills,
			google_id, github_id, keycloak_id, is_email_verified, verification_token,
			verification_expires, reset_token, reset_expires, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		user.ID, user.Username, user.Email, user.Password, user.FullName, user.Bio, user.Avatar, user.Location, skills,
		nullable(user.GoogleID), nullable(user.GithubID), nullable(user.KeycloakID), user.IsEmailVerified,
		nullable(user.VerificationToken), user.VerificationExpires, nullable(user.ResetToken), user.ResetExpires,
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.ErrUserAlreadyExists
	}
	return err
}

func (s *Storage) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE %s`, userColumns, where), arg)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, errors.ErrUserNotFound)
	}
	return u, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = $1", username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = lower($1)", strings.TrimSpace(email))
}

func (s *Storage) GetUserByExternalID(ctx context.Context, provider, externalID string) (*models.User, error) {
	var column string
	switch provider {
	case models.ProviderGoogle:
		column = "google_id"
	case models.ProviderGithub:
		column = "github_id"
	case models.ProviderKeycloak:
		column = "keycloak_id"
	default:
		return nil, errors.Invalid("unknown identity provider %q", provider)
	}
	if externalID == "" {
		return nil, errors.ErrUserNotFound
	}
	return s.getUser(ctx, column+" = $1", externalID)
}

func (s *Storage) GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errors.ErrUserNotFound
	}
	return s.getUser(ctx, "verification_token = $1", token)
}

func (s *Storage) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errors.ErrUserNotFound
	}
	return s.getUser(ctx, "reset_token = $1", token)
}

func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	skills, err := jsonArg(user.Skills)
	if err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET username = $2, email = lower($3), password = $4, full_name = $5, bio = $6,
			avatar = $7, location = $8, skills = $9::jsonb, google_id = $10, github_id = $11,
			keycloak_id = $12, is_email_verified = $13, verification_token = $14,
			verification_expires = $15, reset_token = $16, reset_expires = $17, updated_at = $18
		WHERE id = $1
	`,
		user.ID, user.Username, user.Email, user.Password, user.FullName, user.Bio,
		user.Avatar, user.Location, skills, nullable(user.GoogleID), nullable(user.GithubID),
		nullable(user.KeycloakID), user.IsEmailVerified, nullable(user.VerificationToken),
		user.VerificationExpires, nullable(user.ResetToken), user.ResetExpires, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.ErrUserAlreadyExists
	}
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrUserNotFound)
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrUserNotFound)
}
