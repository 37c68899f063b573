// Package mteam manages teams, their membership and join requests.
package mteam

import (
	"context"
	stderrors "errors"
	"log"
	"slices"
	"strings"
	"time"

	"kyri56xcaesar/nexushub/internal/authz"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store"
	"kyri56xcaesar/nexushub/internal/utils"
)

type Repository interface {
	store.TeamRepository
	store.UserRepository
	DetachProjectsFromTeam(ctx context.Context, teamID string) (int64, error)
}

type Service struct {
	repo Repository
	sink realtime.Sink
}

func NewService(repo Repository, sink realtime.Sink) *Service {
	if sink == nil {
		sink = realtime.NopSink{}
	}
	return &Service{repo: repo, sink: sink}
}

func (s *Service) Create(ctx context.Context, actor string, req CreateTeamRequest) (*models.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Invalid("name is required")
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.CreateTeam}).Err(); err != nil {
		return nil, err
	}

	t := &models.Team{
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Owner:        actor,
		Members:      []models.TeamMember{},
		JoinRequests: []models.JoinRequest{},
		Projects:     []string{},
		IsPublic:     req.IsPublic == nil || *req.IsPublic,
		Tags:         utils.NormalizeTags(req.Tags),
	}
	if err := s.repo.CreateTeam(ctx, t); err != nil {
		return nil, err
	}

	s.sink.Publish(realtime.UserRoom(actor), realtime.TeamUpdated, t)
	return t, nil
}

// Get returns the team. Pending join requests are only shown to owners and
// admins; everyone else sees at most their own.
func (s *Service) Get(ctx context.Context, actor, teamID string) (*models.Team, error) {
	t, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.ViewTeam, Team: t}).Err(); err != nil {
		return nil, err
	}
	return redact(t, actor), nil
}

func redact(t *models.Team, actor string) *models.Team {
	if authz.TeamRoleOf(t, actor).AtLeast(authz.RoleAdmin) {
		return t
	}
	t.JoinRequests = utils.Filter(t.JoinRequests, func(r models.JoinRequest) bool { return r.User == actor })
	return t
}

func (s *Service) List(ctx context.Context, actor string, q ListQuery) ([]models.Team, error) {
	f := store.TeamFilter{Name: q.Name, Limit: q.Limit}
	switch q.Scope {
	case "public":
		f.PublicOnly = true
	case "", "mine":
		f.MemberID = actor
	default:
		return nil, errors.Invalid("scope must be one of [mine public]")
	}

	teams, err := s.repo.ListTeams(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		redact(&teams[i], actor)
	}
	return teams, nil
}

// mutate reads the team, lets apply change it and writes it back. The whole
// cycle starts over when another writer updated the team in between.
func (s *Service) mutate(ctx context.Context, teamID string, apply func(t *models.Team) error) (*models.Team, error) {
	var t *models.Team
	err := store.RetryStale(ctx, func() error {
		var err error
		if t, err = s.repo.GetTeam(ctx, teamID); err != nil {
			return err
		}
		if err := apply(t); err != nil {
			return err
		}
		return s.repo.UpdateTeam(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, actor, teamID string, req UpdateTeamRequest) (*models.Team, error) {
	if req.Name == nil && req.Description == nil && req.IsPublic == nil && req.Tags == nil {
		return nil, errors.Invalid("no fields to update")
	}
	var name string
	if req.Name != nil {
		if name = strings.TrimSpace(*req.Name); name == "" {
			return nil, errors.Invalid("name cannot be empty")
		}
	}

	t, err := s.mutate(ctx, teamID, func(t *models.Team) error {
		if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.UpdateTeam, Team: t}).Err(); err != nil {
			return err
		}
		if req.Name != nil {
			t.Name = name
		}
		if req.Description != nil {
			t.Description = strings.TrimSpace(*req.Description)
		}
		if req.IsPublic != nil {
			t.IsPublic = *req.IsPublic
		}
		if req.Tags != nil {
			t.Tags = utils.NormalizeTags(*req.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamUpdated, t)
	return t, nil
}

// Delete removes the team and unlinks its projects; the projects survive.
func (s *Service) Delete(ctx context.Context, actor, teamID string) error {
	t, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.DeleteTeam, Team: t}).Err(); err != nil {
		return err
	}

	if err := s.repo.DeleteTeam(ctx, t.ID); err != nil {
		return err
	}
	if n, err := s.repo.DetachProjectsFromTeam(ctx, t.ID); err != nil {
		log.Printf("[WARN] inconsistent state: team %s deleted but its projects were not detached: %v", t.ID, err)
	} else if n > 0 {
		log.Printf("[INFO] team %s deleted, %d projects detached", t.ID, n)
	}

	payload := map[string]string{"id": t.ID}
	s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamDeleted, payload)
	for _, m := range t.Members {
		s.sink.Publish(realtime.UserRoom(m.User), realtime.TeamDeleted, payload)
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

func teamRole(role string) (models.TeamRole, authz.Role, error) {
	switch role {
	case "", string(models.TeamRoleMember):
		return models.TeamRoleMember, authz.RoleMember, nil
	case string(models.TeamRoleAdmin):
		return models.TeamRoleAdmin, authz.RoleAdmin, nil
	}
	return "", authz.RoleNone, errors.Invalid("role must be one of [admin member]")
}

// AddMember adds a user directly, dropping any pending join request of theirs.
func (s *Service) AddMember(ctx context.Context, actor, teamID string, req AddTeamMemberRequest) (*models.Team, error) {
	role, level, err := teamRole(req.Role)
	if err != nil {
		return nil, err
	}
	u, err := s.resolveUser(ctx, req.User)
	if err != nil {
		return nil, err
	}

	t, err := s.mutate(ctx, teamID, func(t *models.Team) error {
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.AddTeamMember, Team: t, Target: u.ID, TargetRole: level,
		}).Err(); err != nil {
			return err
		}
		if t.Owner == u.ID || t.MemberIndex(u.ID) >= 0 {
			return errors.ErrAlreadyMember
		}
		addMember(t, u.ID, role)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamMemberAdded, t)
	s.sink.Publish(realtime.UserRoom(u.ID), realtime.TeamMemberAdded, t)
	return t, nil
}

func addMember(t *models.Team, userID string, role models.TeamRole) {
	if i := t.JoinRequestIndex(userID); i >= 0 {
		t.JoinRequests = slices.Delete(t.JoinRequests, i, i+1)
	}
	t.Members = append(t.Members, models.TeamMember{User: userID, Role: role, JoinedAt: time.Now().UTC()})
}

func (s *Service) ChangeMemberRole(ctx context.Context, actor, teamID, userID string, req ChangeRoleRequest) (*models.Team, error) {
	role, level, err := teamRole(req.Role)
	if err != nil {
		return nil, err
	}

	t, err := s.mutate(ctx, teamID, func(t *models.Team) error {
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.ChangeMemberRole, Team: t, Target: userID, TargetRole: level,
		}).Err(); err != nil {
			return err
		}
		i := t.MemberIndex(userID)
		if i < 0 {
			return errors.ErrMemberNotFound
		}
		t.Members[i].Role = role
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamUpdated, t)
	return t, nil
}

// RemoveMember removes userID. An owner removing themselves hands the team
// to the first admin, or failing that the first member.
func (s *Service) RemoveMember(ctx context.Context, actor, teamID, userID string) (*models.Team, error) {
	t, err := s.mutate(ctx, teamID, func(t *models.Team) error {
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.RemoveTeamMember, Team: t, Target: userID,
		}).Err(); err != nil {
			return err
		}
		if userID == t.Owner {
			return transferOwnership(t)
		}
		i := t.MemberIndex(userID)
		if i < 0 {
			return errors.ErrMemberNotFound
		}
		t.Members = slices.Delete(t.Members, i, i+1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamMemberRemoved, map[string]string{"team": t.ID, "user": userID})
	s.sink.Publish(realtime.UserRoom(userID), realtime.TeamMemberRemoved, map[string]string{"team": t.ID, "user": userID})
	return redact(t, actor), nil
}

func transferOwnership(t *models.Team) error {
	if len(t.Members) == 0 {
		return errors.Invalid("the owner is the only member; delete the team instead")
	}
	next := 0
	for i, m := range t.Members {
		if m.Role == models.TeamRoleAdmin {
			next = i
			break
		}
	}
	t.Owner = t.Members[next].User
	t.Members = slices.Delete(t.Members, next, next+1)
	return nil
}

// Join makes the actor a member of a public team or files a join request on
// a private one. joined reports which of the two happened.
func (s *Service) Join(ctx context.Context, actor, teamID string, req JoinTeamRequest) (t *models.Team, joined bool, err error) {
	t, err = s.mutate(ctx, teamID, func(t *models.Team) error {
		if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.JoinTeam, Team: t}).Err(); err != nil {
			return err
		}
		if t.Owner == actor || t.MemberIndex(actor) >= 0 {
			return errors.ErrAlreadyMember
		}
		joined = t.IsPublic
		if joined {
			addMember(t, actor, models.TeamRoleMember)
			return nil
		}
		if t.JoinRequestIndex(actor) >= 0 {
			return errors.ErrAlreadyRequested
		}
		t.JoinRequests = append(t.JoinRequests, models.JoinRequest{
			User: actor, Message: strings.TrimSpace(req.Message), RequestedAt: time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if joined {
		s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamMemberAdded, t)
	} else {
		s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamJoinRequest, map[string]string{"team": t.ID, "user": actor})
	}
	return redact(t, actor), joined, nil
}

func (s *Service) CancelJoinRequest(ctx context.Context, actor, teamID string) error {
	_, err := s.mutate(ctx, teamID, func(t *models.Team) error {
		i := t.JoinRequestIndex(actor)
		if i < 0 {
			return errors.ErrJoinRequestNotFound
		}
		t.JoinRequests = slices.Delete(t.JoinRequests, i, i+1)
		return nil
	})
	return err
}

// HandleJoinRequest accepts or rejects userID's pending request. Either way
// the request is consumed; a second call reports it as not found.
func (s *Service) HandleJoinRequest(ctx context.Context, actor, teamID, userID string, req HandleJoinRequest) (*models.Team, error) {
	var accepted bool
	switch req.Action {
	case "accept":
		accepted = true
	case "reject":
	default:
		return nil, errors.Invalid("action must be one of [accept reject]")
	}

	t, err := s.mutate(ctx, teamID, func(t *models.Team) error {
		if err := authz.Evaluate(authz.Request{
			Actor: actor, Action: authz.HandleJoinRequest, Team: t, Target: userID,
		}).Err(); err != nil {
			return err
		}
		i := t.JoinRequestIndex(userID)
		if i < 0 {
			return errors.ErrJoinRequestNotFound
		}
		t.JoinRequests = slices.Delete(t.JoinRequests, i, i+1)
		if accepted && t.Owner != userID && t.MemberIndex(userID) < 0 {
			addMember(t, userID, models.TeamRoleMember)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := map[string]any{"team": t.ID, "user": userID, "accepted": accepted}
	s.sink.Publish(realtime.UserRoom(userID), realtime.TeamRequestHandled, outcome)
	s.sink.Publish(realtime.TeamRoom(t.ID), realtime.TeamRequestHandled, outcome)
	return t, nil
}
