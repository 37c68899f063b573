// Package mproject manages projects and their member roster.
package mproject

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"kyri56xcaesar/nexushub/internal/activity"
	"kyri56xcaesar/nexushub/internal/authz"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store"
	"kyri56xcaesar/nexushub/internal/utils"
)

type Repository interface {
	store.ProjectRepository
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	DeleteTasksByProject(ctx context.Context, projectID string) (int64, error)
	DeleteActivitiesByProject(ctx context.Context, projectID string) (int64, error)
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

func (s *Service) record(ctx context.Context, actor string, p *models.Project, action, entity, entityID, desc string, meta map[string]any) {
	s.recorder.Record(ctx, models.Activity{
		ProjectID:   p.ID,
		UserID:      actor,
		Action:      action,
		EntityType:  entity,
		EntityID:    entityID,
		Description: desc,
		Metadata:    meta,
	})
}

// notify publishes to the project room and to every roster member.
func (s *Service) notify(p *models.Project, event string, payload any) {
	s.sink.Publish(realtime.ProjectRoom(p.ID), event, payload)
	for _, m := range p.Team {
		s.sink.Publish(realtime.UserRoom(m.User), event, payload)
	}
}

// Create makes a personal project owned by the actor, or a team project whose
// roster is a snapshot of the team at this moment.
func (s *Service) Create(ctx context.Context, actor string, req CreateProjectRequest) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.Invalid("title is required")
	}
	if req.StartDate != nil && req.DueDate != nil && req.DueDate.Before(*req.StartDate) {
		return nil, errors.Invalid("dueDate must not be before startDate")
	}
	status := models.ProjectPlanning
	if req.Status != "" {
		var err error
		if status, err = parseStatus(req.Status); err != nil {
			return nil, err
		}
	}

	p := &models.Project{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   actor,
		Status:      status,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		Tags:        utils.NormalizeTags(req.Tags),
	}

	if req.TeamID == "" {
		p.IsPersonal = true
		p.Team = []models.ProjectMember{{User: actor, Role: models.ProjectRoleOwner}}
	} else {
		team, err := s.repo.GetTeam(ctx, req.TeamID)
		if err != nil {
			return nil, err
		}
		if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.CreateTeamProject, Team: team}).Err(); err != nil {
			return nil, err
		}
		p.TeamID = team.ID
		p.Team = rosterFromTeam(team, actor)
	}

	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	s.record(ctx, actor, p, activity.ActionCreated, activity.EntityProject, p.ID,
		fmt.Sprintf("created project %q", p.Title), nil)
	s.notify(p, realtime.ProjectCreated, p)
	if p.TeamID != "" {
		s.sink.Publish(realtime.TeamRoom(p.TeamID), realtime.ProjectCreated, p)
	}
	return p, nil
}

// rosterFromTeam mirrors the team: its owner and the creating actor become
// project owners, everyone else keeps their team role.
func rosterFromTeam(t *models.Team, creator string) []models.ProjectMember {
	roster := []models.ProjectMember{{User: t.Owner, Role: models.ProjectRoleOwner}}
	for _, m := range t.Members {
		role := models.ProjectRoleMember
		switch {
		case m.User == creator:
			role = models.ProjectRoleOwner
		case m.Role == models.TeamRoleAdmin:
			role = models.ProjectRoleAdmin
		}
		roster = append(roster, models.ProjectMember{User: m.User, Role: role})
	}
	return roster
}

func (s *Service) Get(ctx context.Context, actor, projectID string) (*models.Project, error) {
	p, _, err := LoadProject(ctx, s.repo, actor, projectID)
	return p, err
}

func (s *Service) List(ctx context.Context, actor string, q ListQuery) ([]models.Project, error) {
	if q.TeamID == "" {
		return s.repo.ListProjects(ctx, store.ProjectFilter{UserID: actor, Limit: q.Limit})
	}

	team, err := s.repo.GetTeam(ctx, q.TeamID)
	if err != nil {
		return nil, err
	}
	projects, err := s.repo.ListProjects(ctx, store.ProjectFilter{TeamID: team.ID, Limit: q.Limit})
	if err != nil {
		return nil, err
	}
	return utils.Filter(projects, func(p models.Project) bool {
		return authz.Allowed(authz.Request{Actor: actor, Action: authz.ViewProject, Project: &p, Team: team})
	}), nil
}

// mutate loads the project as the actor sees it, lets apply change it and
// writes it back. The cycle starts over when a concurrent write got in first.
func (s *Service) mutate(ctx context.Context, actor, projectID string, apply func(p *models.Project, team *models.Team) error) (*models.Project, error) {
	var p *models.Project
	err := store.RetryStale(ctx, func() error {
		var (
			team *models.Team
			err  error
		)
		if p, team, err = LoadProject(ctx, s.repo, actor, projectID); err != nil {
			return err
		}
		if err := apply(p, team); err != nil {
			return err
		}
		return s.repo.UpdateProject(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, actor, projectID string, req UpdateProjectRequest) (*models.Project, error) {
	var (
		changed []string
		title   string
		status  models.ProjectStatus
	)
	if req.Title != nil {
		if title = strings.TrimSpace(*req.Title); title == "" {
			return nil, errors.Invalid("title cannot be empty")
		}
		changed = append(changed, "title")
	}
	if req.Description != nil {
		changed = append(changed, "description")
	}
	if req.Status != nil {
		var err error
		if status, err = parseStatus(*req.Status); err != nil {
			return nil, err
		}
		changed = append(changed, "status")
	}
	if req.StartDate != nil {
		changed = append(changed, "startDate")
	}
	if req.DueDate != nil {
		changed = append(changed, "dueDate")
	}
	if req.Tags != nil {
		changed = append(changed, "tags")
	}
	if len(changed) == 0 {
		return nil, errors.Invalid("no fields to update")
	}

	p, err := s.mutate(ctx, actor, projectID, func(p *models.Project, team *models.Team) error {
		if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.UpdateProject, Project: p, Team: team}).Err(); err != nil {
			return err
		}
		if req.Title != nil {
			p.Title = title
		}
		if req.Description != nil {
			p.Description = strings.TrimSpace(*req.Description)
		}
		if req.Status != nil {
			p.Status = status
		}
		if req.StartDate != nil {
			p.StartDate = req.StartDate
		}
		if req.DueDate != nil {
			p.DueDate = req.DueDate
		}
		if req.Tags != nil {
			p.Tags = utils.NormalizeTags(*req.Tags)
		}
		if p.StartDate != nil && p.DueDate != nil && p.DueDate.Before(*p.StartDate) {
			return errors.Invalid("dueDate must not be before startDate")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, p, activity.ActionUpdated, activity.EntityProject, p.ID,
		fmt.Sprintf("updated %s of project %q", strings.Join(changed, ", "), p.Title),
		map[string]any{"fields": changed})
	s.notify(p, realtime.ProjectUpdated, p)
	return p, nil
}

// Delete removes the project with its tasks and activity log. Tasks go
// first so a failure leaves the project in place.
func (s *Service) Delete(ctx context.Context, actor, projectID string) error {
	p, team, err := LoadProject(ctx, s.repo, actor, projectID)
	if err != nil {
		return err
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.DeleteProject, Project: p, Team: team}).Err(); err != nil {
		return err
	}

	tasks, err := s.repo.DeleteTasksByProject(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("delete tasks of project %s: %w", p.ID, err)
	}
	if err := s.repo.DeleteProject(ctx, p.ID); err != nil {
		return err
	}
	if _, err := s.repo.DeleteActivitiesByProject(ctx, p.ID); err != nil {
		log.Printf("[WARN] inconsistent state: project %s deleted but its activities remain: %v", p.ID, err)
	}
	log.Printf("[INFO] project %s deleted by %s with %d tasks", p.ID, actor, tasks)

	payload := map[string]string{"id": p.ID}
	s.notify(p, realtime.ProjectDeleted, payload)
	if p.TeamID != "" {
		s.sink.Publish(realtime.TeamRoom(p.TeamID), realtime.ProjectDeleted, payload)
	}
	return nil
}

func (s *Service) resolveUser(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	u, err := s.repo.GetUserByID(ctx, ref)
	if err == nil {
		return u, nil
	}
	if !stderrors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return s.repo.GetUserByUsername(ctx, ref)
}

func projectRole(role string) (models.ProjectRole, authz.Role, error) {
	switch role {
	case "", string(models.ProjectRoleMember):
		return models.ProjectRoleMember, authz.RoleMember, nil
	case string(models.ProjectRoleAdmin):
		return models.ProjectRoleAdmin, authz.RoleAdmin, nil
	case string(models.ProjectRoleOwner):
		return models.ProjectRoleOwner, authz.RoleOwner, nil
	}
	return "", authz.RoleNone, errors.Invalid("role must be one of [owner admin member]")
}

func (s *Service) AddMember(ctx context.Context, actor, projectID string, req AddProjectMemberRequest) (*models.Project, error) {
	role, level, err := projectRole(req.Role)
	if err != nil {
		return nil, err
	}
	u, err := s.resolveUser(ctx, req.User)
	if err != nil {
		return nil, err
	}

	p, err := s.mutate(ctx, actor, projectID, func(p *models.Project, team *models.Team) error {
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.ManageProjectRoster, Project: p, Team: team, TargetRole: level,
		}).Err(); err != nil {
			return err
		}
		if p.MemberIndex(u.ID) >= 0 {
			return errors.ErrAlreadyMember
		}
		p.Team = append(p.Team, models.ProjectMember{User: u.ID, Role: role})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, p, activity.ActionMemberAdded, activity.EntityMember, u.ID,
		fmt.Sprintf("added %s as %s", u.Username, role), map[string]any{"role": role})
	s.notify(p, realtime.ProjectUpdated, p)
	return p, nil
}

func (s *Service) ChangeMemberRole(ctx context.Context, actor, projectID, userID string, req ChangeRoleRequest) (*models.Project, error) {
	role, level, err := projectRole(req.Role)
	if err != nil {
		return nil, err
	}

	var prev models.ProjectRole
	p, err := s.mutate(ctx, actor, projectID, func(p *models.Project, team *models.Team) error {
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.ManageProjectRoster, Project: p, Team: team, Target: userID, TargetRole: level,
		}).Err(); err != nil {
			return err
		}
		i := p.MemberIndex(userID)
		if i < 0 {
			return errors.ErrMemberNotFound
		}
		prev = p.Team[i].Role
		if prev == models.ProjectRoleOwner && role != models.ProjectRoleOwner && p.OwnerCount() == 1 {
			return errors.Invalid("a project needs at least one owner")
		}
		p.Team[i].Role = role
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, p, activity.ActionRoleChanged, activity.EntityMember, userID,
		fmt.Sprintf("changed role of %s from %s to %s", userID, prev, role),
		map[string]any{"from": prev, "to": role})
	s.notify(p, realtime.ProjectUpdated, p)
	return p, nil
}

// RemoveMember takes userID off the roster. Anyone on it may remove
// themselves; removing others needs roster rights. The last owner stays.
func (s *Service) RemoveMember(ctx context.Context, actor, projectID, userID string) (*models.Project, error) {
	p, err := s.mutate(ctx, actor, projectID, func(p *models.Project, team *models.Team) error {
		req := authz.Request{Actor: actor, Action: authz.ManageProjectRoster, Project: p, Team: team, Target: userID}
		if userID == actor {
			req.Action = authz.LeaveProject
		}
		if err := authz.Evaluate(req).Err(); err != nil {
			return err
		}
		i := p.MemberIndex(userID)
		if i < 0 {
			return errors.ErrMemberNotFound
		}
		if p.Team[i].Role == models.ProjectRoleOwner && p.OwnerCount() == 1 {
			return errors.Invalid("cannot remove the last owner of a project")
		}
		p.Team = slices.Delete(p.Team, i, i+1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, p, activity.ActionMemberRemoved, activity.EntityMember, userID,
		fmt.Sprintf("removed %s from the project", userID), nil)
	s.notify(p, realtime.ProjectUpdated, p)
	s.sink.Publish(realtime.UserRoom(userID), realtime.ProjectUpdated, map[string]string{"id": p.ID, "removed": userID})
	return p, nil
}

func (s *Service) Activities(ctx context.Context, actor, projectID string, limit int) ([]models.Activity, error) {
	p, _, err := LoadProject(ctx, s.repo, actor, projectID)
	if err != nil {
		return nil, err
	}
	return s.recorder.List(ctx, p.ID, store.NormalizeLimit(limit))
}
