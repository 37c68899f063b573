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

const taskColumns = `id, title, description, project_id, assigned_to, created_by, status, priority,
	due_date, tags, comments, completed_at, created_at, updated_at, version`

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t              models.Task
		tags, comments []byte
	)
	if err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Project, &t.AssignedTo, &t.CreatedBy, &t.Status, &t.Priority,
		&t.DueDate, &tags, &comments, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt, &t.Version,
	); err != nil {
		return nil, err
	}
	if err := unmarshalInto(tags, &t.Tags, "tags"); err != nil {
		return nil, err
	}
	if err := unmarshalInto(comments, &t.Comments, "comments"); err != nil {
		return nil, err
	}
	return &t, nil
}

func orderClause(order string) string {
	switch order {
	case "created_asc":
		return "created_at ASC"
	case "due_asc":
		return "due_date ASC NULLS LAST"
	case "created_desc":
		fallthrough
	default:
		return "created_at DESC"
	}
}

func assignees(t *models.Task) []string {
	if t.AssignedTo == nil {
		return []string{}
	}
	return t.AssignedTo
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	tags, err := jsonArg(task.Tags)
	if err != nil {
		return err
	}
	comments, err := jsonArg(task.Comments)
	if err != nil {
		return err
	}
	task.ID = newID(task.ID)
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task.Version = 1

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (id, title, description, project_id, assigned_to, created_by, status, priority,
			due_date, tags, comments, completed_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $13, $14, 1)
	`, task.ID, task.Title, task.Description, task.Project, assignees(task), task.CreatedBy, task.Status,
		task.Priority, task.DueDate, tags, comments, task.CompletedAt, task.CreatedAt, task.UpdatedAt)
	if isForeignKeyViolation(err) {
		return errors.ErrProjectNotFound
	}
	return err
}

func (s *Storage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns), id)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, errors.ErrTaskNotFound)
	}
	return t, nil
}

// UpdateTask never rewrites project_id.
func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	tags, err := jsonArg(task.Tags)
	if err != nil {
		return err
	}
	comments, err := jsonArg(task.Comments)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()

	var version int64
	err = s.pool.QueryRow(ctx, `
		UPDATE tasks SET title = $2, description = $3, assigned_to = $4, status = $5, priority = $6,
			due_date = $7, tags = $8::jsonb, comments = $9::jsonb, completed_at = $10, updated_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $12
		RETURNING version
	`, task.ID, task.Title, task.Description, assignees(task), task.Status, task.Priority,
		task.DueDate, tags, comments, task.CompletedAt, updatedAt, task.Version).Scan(&version)
	if err != nil {
		return s.versioned(ctx, err, "tasks", task.ID, errors.ErrTaskNotFound)
	}
	task.UpdatedAt, task.Version = updatedAt, version
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(tag, errors.ErrTaskNotFound)
}

func (s *Storage) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	limit := store.NormalizeLimit(f.Limit)

	var (
		where  []string
		args   []any
		argIdx = 1
	)
	if f.ProjectID != "" {
		where = append(where, fmt.Sprintf("project_id = $%d", argIdx))
		args = append(args, f.ProjectID)
		argIdx++
	}
	if f.AssigneeID != "" {
		where = append(where, fmt.Sprintf("$%d = ANY(assigned_to)", argIdx))
		args = append(args, f.AssigneeID)
		argIdx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, f.Status)
		argIdx++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks %s ORDER BY %s LIMIT $%d`,
		taskColumns, clause, orderClause(f.Order), argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Task, 0, limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Storage) CountTasks(ctx context.Context, projectID string) (int, int, error) {
	var total, completed int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE status = 'completed')
		FROM tasks
		WHERE project_id = $1
	`, projectID).Scan(&total, &completed)
	return total, completed, err
}

func (s *Storage) DeleteTasksByProject(ctx context.Context, projectID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
