// Package pgstore persists NexusHub documents in Postgres. Embedded arrays
// (members, join requests, rosters, comments, likes, participants) live in
// jsonb columns so each entity is still read and written as one document.
package pgstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"strings"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/store"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Storage struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Storage)(nil)

// NewStorage opens a pool and pings it once.
func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: empty dsn", errors.ErrDatabaseConnection)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabaseConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabaseConnection, err)
	}
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

// Migration applies every pending migration found under path.
func Migration(dsn, path string) error {
	if dsn == "" || path == "" {
		return fmt.Errorf("migration: dsn and path are required")
	}
	m, err := migrate.New("file://"+path, dsn)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Printf("[WARN] closing migrator: source=%v db=%v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// jsonArg marshals v for a jsonb parameter; nil slices become [].
func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func unmarshalInto(raw []byte, dst any, column string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", column, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// notFound maps pgx.ErrNoRows onto the entity's domain error.
func notFound(err, entityErr error) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return entityErr
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23503"
}

// versioned interprets the RETURNING version of an UPDATE guarded by
// "version = $n". No row means the document is gone or was written by
// someone else since it was read.
func (s *Storage) versioned(ctx context.Context, err error, table, id string, entityErr error) error {
	if !stderrors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return errors.ErrStaleWrite
	}
	return entityErr
}

func affected(tag pgconn.CommandTag, entityErr error) error {
	if tag.RowsAffected() == 0 {
		return entityErr
	}
	return nil
}
