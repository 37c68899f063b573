// Package mtask manages the tasks of a project and keeps the project's
// progress in line with them.
package mtask

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"kyri56xcaesar/nexushub/internal/activity"
	"kyri56xcaesar/nexushub/internal/authz"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/mproject"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store"
	"kyri56xcaesar/nexushub/internal/utils"

	"github.com/google/uuid"
)

type Repository interface {
	store.TaskRepository
	mproject.Loader
	SetProjectProgress(ctx context.Context, id string, progress, total, completed int) error
}

type Service struct {
	repo     Repository
	recorder *activity.Recorder
	sink     realtime.Sink
}

func NewService(repo Repository, recorder *activity.Recorder, sink realtime.Sink) *Service {
	if sink == nil {
		sink = realtime.NopSink{}
	}
	return &Service{repo: repo, recorder: recorder, sink: sink}
}

// recompute refreshes the project's progress. The task write it follows has
// already succeeded, so a failure is only logged.
func (s *Service) recompute(ctx context.Context, projectID string) {
	p, err := Recompute(ctx, s.repo, projectID)
	if err != nil {
		log.Printf("[WARN] inconsistent state: progress of project %s not recomputed: %v", projectID, err)
		return
	}
	s.sink.Publish(realtime.ProjectRoom(projectID), realtime.ProjectUpdated, map[string]any{"id": projectID, "progress": p})
}

func (s *Service) record(ctx context.Context, actor string, t *models.Task, action, entity, entityID, desc string, meta map[string]any) {
	s.recorder.Record(ctx, models.Activity{
		ProjectID:   t.Project,
		UserID:      actor,
		Action:      action,
		EntityType:  entity,
		EntityID:    entityID,
		Description: desc,
		Metadata:    meta,
	})
}

func (s *Service) notify(t *models.Task, event string, payload any) {
	s.sink.Publish(realtime.ProjectRoom(t.Project), event, payload)
	for _, u := range t.AssignedTo {
		s.sink.Publish(realtime.UserRoom(u), event, payload)
	}
}

// load resolves a task with its project and parent team. Tasks the actor
// cannot view are reported as not found.
func (s *Service) load(ctx context.Context, actor, taskID string) (*models.Task, *models.Project, *models.Team, error) {
	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := s.repo.GetProject(ctx, t.Project)
	if err != nil {
		return nil, nil, nil, err
	}
	var team *models.Team
	if p.TeamID != "" {
		team, err = s.repo.GetTeam(ctx, p.TeamID)
		if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil, nil, err
		}
	}

	if !authz.Allowed(authz.Request{Actor: actor, Action: authz.ViewTask, Task: t, Project: p, Team: team}) {
		return nil, nil, nil, errors.ErrTaskNotFound
	}
	return t, p, team, nil
}

// mutate loads the task as the actor sees it, lets apply change it and
// writes it back. The cycle starts over when a concurrent write got in first.
func (s *Service) mutate(ctx context.Context, actor, taskID string, apply func(t *models.Task, p *models.Project, team *models.Team) error) (*models.Task, error) {
	var t *models.Task
	err := store.RetryStale(ctx, func() error {
		var (
			p    *models.Project
			team *models.Team
			err  error
		)
		if t, p, team, err = s.load(ctx, actor, taskID); err != nil {
			return err
		}
		if err := apply(t, p, team); err != nil {
			return err
		}
		return s.repo.UpdateTask(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// checkAssignees dedups ids and requires each to be on the project roster.
func checkAssignees(p *models.Project, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || utils.Contains(out, id) {
			continue
		}
		if p.MemberIndex(id) < 0 {
			return nil, errors.Invalid("assignee %s is not a member of the project", id)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, actor string, req CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.Invalid("title is required")
	}
	status, priority := models.TaskTodo, models.PriorityMedium
	var err error
	if req.Status != "" {
		if status, err = parseStatus(req.Status); err != nil {
			return nil, err
		}
	}
	if req.Priority != "" {
		if priority, err = parsePriority(req.Priority); err != nil {
			return nil, err
		}
	}

	p, team, err := mproject.LoadProject(ctx, s.repo, actor, req.Project)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.CreateTask, Project: p, Team: team}).Err(); err != nil {
		return nil, err
	}
	assignees, err := checkAssignees(p, req.AssignedTo)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(authz.Request{
		Actor: actor, Action: authz.AssignTask, Project: p, Team: team, Assignees: assignees,
	}).Err(); err != nil {
		return nil, err
	}

	t := &models.Task{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Project:     p.ID,
		AssignedTo:  assignees,
		CreatedBy:   actor,
		Status:      status,
		Priority:    priority,
		DueDate:     req.DueDate,
		Tags:        utils.NormalizeTags(req.Tags),
		Comments:    []models.TaskComment{},
	}
	if status == models.TaskCompleted {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, err
	}

	s.record(ctx, actor, t, activity.ActionCreated, activity.EntityTask, t.ID,
		fmt.Sprintf("created task %q", t.Title), map[string]any{"status": t.Status})
	s.recompute(ctx, p.ID)
	s.notify(t, realtime.TaskCreated, t)
	return t, nil
}

func (s *Service) Get(ctx context.Context, actor, taskID string) (*models.Task, error) {
	t, _, _, err := s.load(ctx, actor, taskID)
	return t, err
}

func (s *Service) ListByProject(ctx context.Context, actor, projectID string, q ListQuery) ([]models.Task, error) {
	p, _, err := mproject.LoadProject(ctx, s.repo, actor, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, store.TaskFilter{
		ProjectID:  p.ID,
		AssigneeID: q.Assignee,
		Status:     q.Status,
		Order:      q.Order,
		Limit:      q.Limit,
	})
}

// ListMine returns the tasks assigned to the actor across projects.
func (s *Service) ListMine(ctx context.Context, actor string, q ListQuery) ([]models.Task, error) {
	return s.repo.ListTasks(ctx, store.TaskFilter{
		AssigneeID: actor,
		Status:     q.Status,
		Order:      q.Order,
		Limit:      q.Limit,
	})
}

// Update applies the set fields. Moving into completed stamps completedAt;
// moving out again leaves it as it was.
func (s *Service) Update(ctx context.Context, actor, taskID string, req UpdateTaskRequest) (*models.Task, error) {
	fields := req.fields()
	if len(fields) == 0 {
		return nil, errors.Invalid("no fields to update")
	}
	var (
		status   models.TaskStatus
		priority models.TaskPriority
		err      error
	)
	if req.Status != nil {
		if status, err = parseStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.Priority != nil {
		if priority, err = parsePriority(*req.Priority); err != nil {
			return nil, err
		}
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, errors.Invalid("title cannot be empty")
	}

	var prev models.TaskStatus
	t, err := s.mutate(ctx, actor, taskID, func(t *models.Task, p *models.Project, team *models.Team) error {
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.UpdateTask, Task: t, Project: p, Team: team, Fields: fields,
		}).Err(); err != nil {
			return err
		}

		if req.AssignedTo != nil {
			assignees, err := checkAssignees(p, *req.AssignedTo)
			if err != nil {
				return err
			}
			if err := authz.Evaluate(authz.Request{
				Actor: actor, Action: authz.AssignTask, Project: p, Team: team, Assignees: assignees,
			}).Err(); err != nil {
				return err
			}
			t.AssignedTo = assignees
		}
		if req.Title != nil {
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			t.Description = strings.TrimSpace(*req.Description)
		}
		if req.Priority != nil {
			t.Priority = priority
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.Tags != nil {
			t.Tags = utils.NormalizeTags(*req.Tags)
		}
		prev = t.Status
		if req.Status != nil {
			t.Status = status
			if status == models.TaskCompleted && prev != models.TaskCompleted {
				now := time.Now().UTC()
				t.CompletedAt = &now
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if prev != t.Status {
		s.record(ctx, actor, t, activity.ActionStatusChanged, activity.EntityTask, t.ID,
			fmt.Sprintf("moved task %q from %s to %s", t.Title, prev, t.Status),
			map[string]any{"from": prev, "to": t.Status})
	}
	if others := slices.DeleteFunc(slices.Clone(fields), func(f string) bool { return f == "status" }); len(others) > 0 {
		s.record(ctx, actor, t, activity.ActionUpdated, activity.EntityTask, t.ID,
			fmt.Sprintf("updated %s of task %q", strings.Join(others, ", "), t.Title),
			map[string]any{"fields": others})
	}
	s.recompute(ctx, t.Project)
	s.notify(t, realtime.TaskUpdated, t)
	return t, nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor, taskID, status string) (*models.Task, error) {
	return s.Update(ctx, actor, taskID, UpdateTaskRequest{Status: &status})
}

func (s *Service) Delete(ctx context.Context, actor, taskID string) error {
	t, p, team, err := s.load(ctx, actor, taskID)
	if err != nil {
		return err
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.DeleteTask, Task: t, Project: p, Team: team}).Err(); err != nil {
		return err
	}

	if err := s.repo.DeleteTask(ctx, t.ID); err != nil {
		return err
	}

	s.record(ctx, actor, t, activity.ActionDeleted, activity.EntityTask, t.ID,
		fmt.Sprintf("deleted task %q", t.Title), nil)
	s.recompute(ctx, t.Project)
	s.notify(t, realtime.TaskDeleted, map[string]string{"id": t.ID, "project": t.Project})
	return nil
}

func (s *Service) AddComment(ctx context.Context, actor, taskID string, req CreateCommentRequest) (*models.TaskComment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.Invalid("text is required")
	}
	comment := models.TaskComment{ID: uuid.New().String(), User: actor, Text: text, CreatedAt: time.Now().UTC()}
	t, err := s.mutate(ctx, actor, taskID, func(t *models.Task, p *models.Project, team *models.Team) error {
		if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.CommentTask, Task: t, Project: p, Team: team}).Err(); err != nil {
			return err
		}
		t.Comments = append(t.Comments, comment)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, t, activity.ActionCommented, activity.EntityComment, comment.ID,
		fmt.Sprintf("commented on task %q", t.Title), map[string]any{"task": t.ID})
	s.notify(t, realtime.TaskCommented, map[string]any{"task": t.ID, "comment": comment})
	return &comment, nil
}

func (s *Service) DeleteComment(ctx context.Context, actor, taskID, commentID string) error {
	t, err := s.mutate(ctx, actor, taskID, func(t *models.Task, p *models.Project, team *models.Team) error {
		i := slices.IndexFunc(t.Comments, func(c models.TaskComment) bool { return c.ID == commentID })
		if i < 0 {
			return errors.ErrCommentNotFound
		}
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.DeleteTaskComment, Task: t, Project: p, Team: team, CommentAuthor: t.Comments[i].User,
		}).Err(); err != nil {
			return err
		}
		t.Comments = slices.Delete(t.Comments, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, actor, t, activity.ActionDeleted, activity.EntityComment, commentID,
		fmt.Sprintf("deleted a comment on task %q", t.Title), map[string]any{"task": t.ID})
	s.notify(t, realtime.TaskUpdated, t)
	return nil
}
