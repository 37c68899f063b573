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

const projectColumns = `id, title, description, created_by, roster, COALESCE(team_id, ''), status,
	progress, total_tasks, completed_tasks, is_personal, start_date, due_date, tags, created_at, updated_at, version`

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p            models.Project
		roster, tags []byte
	)
	if err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.CreatedBy, &roster, &p.TeamID, &p.Status,
		&p.Progress, &p.TotalTasks, &p.CompletedTasks, &p.IsPersonal, &p.StartDate, &p.DueDate, &tags,
		&p.CreatedAt, &p.UpdatedAt, &p.Version,
	); err != nil {
		return nil, err
	}
	if err := unmarshalInto(roster, &p.Team, "roster"); err != nil {
		return nil, err
	}
	if err := unmarshalInto(tags, &p.Tags, "tags"); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) CreateProject(ctx context.Context, project *models.Project) error {
	roster, err := jsonArg(project.Team)
	if err != nil {
		return err
	}
	tags, err := jsonArg(project.Tags)
	if err != nil {
		return err
	}
	project.ID = newID(project.ID)
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	project.Version = 1

	_, err = s.pool.Exec(ctx, `
		INSERT INTO projects (id, title, description, created_by, roster, team_id, status, progress,
			total_tasks, completed_tasks, is_personal, start_date, due_date, tags, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb, $15, $16, 1)
	`, project.ID, project.Title, project.Description, project.CreatedBy, roster, nullable(project.TeamID),
		project.Status, project.Progress, project.TotalTasks, project.CompletedTasks, project.IsPersonal,
		project.StartDate, project.DueDate, tags, project.CreatedAt, project.UpdatedAt)
	return err
}

func (s *Storage) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns), id)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, errors.ErrProjectNotFound)
	}
	return p, nil
}

// UpdateProject leaves progress, total_tasks and completed_tasks alone; they
// are owned by SetProjectProgress.
func (s *Storage) UpdateProject(ctx context.Context, project *models.Project) error {
	roster, err := jsonArg(project.Team)
	if err != nil {
		return err
	}
	tags, err := jsonArg(project.Tags)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()

	var version int64
	err = s.pool.QueryRow(ctx, `
		UPDATE projects SET title = $2, description = $3, roster = $4::jsonb, team_id = $5, status = $6,
			is_personal = $7, start_date = $8, due_date = $9, tags = $10::jsonb, updated_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $12
		RETURNING version
	`, project.ID, project.Title, project.Description, roster, nullable(project.TeamID), project.Status,
		project.IsPersonal, project.StartDate, project.DueDate, tags, updatedAt, project.Version).Scan(&version)
	if err != nil {
		return s.versioned(ctx, err, "projects", project.ID, errors.ErrProjectNotFound)
	}
	project.UpdatedAt, project.Version = updatedAt, version
	return nil
}

func (s *Storage) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrProjectNotFound)
}

func (s *Storage) ListProjects(ctx context.Context, f store.ProjectFilter) ([]models.Project, error) {
	limit := store.NormalizeLimit(f.Limit)

	var (
		where  []string
		args   []any
		argIdx = 1
	)
	if f.UserID != "" {
		where = append(where, fmt.Sprintf(
			"(created_by = $%d OR roster @> jsonb_build_array(jsonb_build_object('user', $%d::text)))",
			argIdx, argIdx))
		args = append(args, f.UserID)
		argIdx++
	}
	if f.TeamID != "" {
		where = append(where, fmt.Sprintf("team_id = $%d", argIdx))
		args = append(args, f.TeamID)
		argIdx++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM projects %s ORDER BY created_at DESC LIMIT $%d`, projectColumns, clause, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Project, 0, limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Storage) SetProjectProgress(ctx context.Context, id string, progress, total, completed int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET progress = $2, total_tasks = $3, completed_tasks = $4
		WHERE id = $1
	`, id, progress, total, completed)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrProjectNotFound)
}

func (s *Storage) DetachProjectsFromTeam(ctx context.Context, teamID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE projects SET team_id = NULL, updated_at = now(), version = version + 1 WHERE team_id = $1`, teamID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
