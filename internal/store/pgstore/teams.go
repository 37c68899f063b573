package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/store"
)

// Team.Projects is derived from projects.team_id, never stored on the team row.
const teamColumns = `t.id, t.name, t.description, t.owner, t.members, t.join_requests, t.is_public, t.tags,
	t.created_at, t.updated_at, t.version,
	COALESCE((
		SELECT json_agg(p.id ORDER BY p.created_at)
		FROM projects p
		WHERE p.team_id = t.id
	), '[]'::json) AS projects_json`

func scanTeam(row rowScanner) (*models.Team, error) {
	var (
		t                                 models.Team
		members, requests, tags, projects []byte
	)
	if err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Owner, &members, &requests, &t.IsPublic, &tags,
		&t.CreatedAt, &t.UpdatedAt, &t.Version, &projects,
	); err != nil {
		return nil, err
	}
	if err := unmarshalInto(members, &t.Members, "members"); err != nil {
		return nil, err
	}
	if err := unmarshalInto(requests, &t.JoinRequests, "join_requests"); err != nil {
		return nil, err
	}
	if err := unmarshalInto(tags, &t.Tags, "tags"); err != nil {
		return nil, err
	}
	if err := unmarshalInto(projects, &t.Projects, "projects_json"); err != nil {
		return nil, err
	}
	return &t, nil
}

type teamDocs struct {
	members, requests, tags string
}

func marshalTeam(t *models.Team) (teamDocs, error) {
	var (
		d   teamDocs
		err error
	)
	if d.members, err = jsonArg(t.Members); err != nil {
		return d, err
	}
	if d.requests, err = jsonArg(t.JoinRequests); err != nil {
		return d, err
	}
	if d.tags, err = jsonArg(t.Tags); err != nil {
		return d, err
	}
	return d, nil
}

func (s *Storage) CreateTeam(ctx context.Context, team *models.Team) error {
	docs, err := marshalTeam(team)
	if err != nil {
		return err
	}
	team.ID = newID(team.ID)
	now := time.Now().UTC()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now
	team.Version = 1

	_, err = s.pool.Exec(ctx, `
		INSERT INTO teams (id, name, description, owner, members, join_requests, is_public, tags, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8::jsonb, $9, $10, 1)
	`, team.ID, team.Name, team.Description, team.Owner, docs.members, docs.requests, team.IsPublic, docs.tags,
		team.CreatedAt, team.UpdatedAt)
	return err
}

func (s *Storage) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM teams t WHERE t.id = $1`, teamColumns), id)
	t, err := scanTeam(row)
	if err != nil {
		return nil, notFound(err, errors.ErrTeamNotFound)
	}
	return t, nil
}

func (s *Storage) UpdateTeam(ctx context.Context, team *models.Team) error {
	docs, err := marshalTeam(team)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()

	var version int64
	err = s.pool.QueryRow(ctx, `
		UPDATE teams SET name = $2, description = $3, owner = $4, members = $5::jsonb,
			join_requests = $6::jsonb, is_public = $7, tags = $8::jsonb, updated_at = $9, version = version + 1
		WHERE id = $1 AND version = $10
		RETURNING version
	`, team.ID, team.Name, team.Description, team.Owner, docs.members, docs.requests, team.IsPublic, docs.tags,
		updatedAt, team.Version).Scan(&version)
	if err != nil {
		return s.versioned(ctx, err, "teams", team.ID, errors.ErrTeamNotFound)
	}
	team.UpdatedAt, team.Version = updatedAt, version
	return nil
}

func (s *Storage) DeleteTeam(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrTeamNotFound)
}

func (s *Storage) ListTeams(ctx context.Context, f store.TeamFilter) ([]models.Team, error) {
	limit := store.NormalizeLimit(f.Limit)

	var (
		where  []string
		args   []any
		argIdx = 1
	)
	if f.MemberID != "" {
		where = append(where, fmt.Sprintf(
			"(t.owner = $%d OR t.members @> jsonb_build_array(jsonb_build_object('user', $%d::text)))",
			argIdx, argIdx))
		args = append(args, f.MemberID)
		argIdx++
	}
	if f.PublicOnly {
		where = append(where, "t.is_public")
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		where = append(where, fmt.Sprintf("t.name ILIKE $%d", argIdx))
		args = append(args, "%"+name+"%")
		argIdx++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM teams t %s ORDER BY t.created_at DESC LIMIT $%d`, teamColumns, clause, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Team, 0, limit)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
