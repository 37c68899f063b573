package mproject

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"kyri56xcaesar/nexushub/internal/activity"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *memstore.Storage) {
	t.Helper()
	s := memstore.NewStorage()
	for _, name := range []string{"olga", "adam", "mia", "stan"} {
		require.NoError(t, s.CreateUser(context.Background(), &models.User{ID: name, Username: name, Email: name + "@example.com"}))
	}
	return NewService(s, activity.NewRecorder(s), realtime.NewBroker(8)), s
}

// seedTeam stores a team owned by olga, with adam as admin and mia as member.
func seedTeam(t *testing.T, s *memstore.Storage) *models.Team {
	t.Helper()
	team := &models.Team{Name: "Platform", Owner: "olga", IsPublic: true, Members: []models.TeamMember{
		{User: "adam", Role: models.TeamRoleAdmin},
		{User: "mia", Role: models.TeamRoleMember},
	}}
	require.NoError(t, s.CreateTeam(context.Background(), team))
	return team
}

func TestCreatePersonal(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	p, err := svc.Create(ctx, "stan", CreateProjectRequest{Title: "Side quest", Tags: []string{"Fun"}})
	require.NoError(t, err)
	assert.True(t, p.IsPersonal)
	assert.Equal(t, models.ProjectPlanning, p.Status)
	assert.Equal(t, []models.ProjectMember{{User: "stan", Role: models.ProjectRoleOwner}}, p.Team)
	assert.Equal(t, []string{"fun"}, p.Tags)

	start := time.Now()
	due := start.Add(-time.Hour)
	_, err = svc.Create(ctx, "stan", CreateProjectRequest{Title: "Backwards", StartDate: &start, DueDate: &due})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	acts, err := svc.Activities(ctx, "stan", p.ID, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, activity.ActionCreated, acts[0].Action)
}

func TestCreateTeamProject(t *testing.T) {
	ctx := context.Background()
	svc, s := setup(t)
	team := seedTeam(t, s)

	_, err := svc.Create(ctx, "mia", CreateProjectRequest{Title: "API", TeamID: team.ID})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	_, err = svc.Create(ctx, "adam", CreateProjectRequest{Title: "API", TeamID: "missing"})
	assert.ErrorIs(t, err, errors.ErrTeamNotFound)

	p, err := svc.Create(ctx, "adam", CreateProjectRequest{Title: "API", TeamID: team.ID})
	require.NoError(t, err)
	assert.False(t, p.IsPersonal)
	assert.Equal(t, team.ID, p.TeamID)
	assert.ElementsMatch(t, []models.ProjectMember{
		{User: "olga", Role: models.ProjectRoleOwner},
		{User: "adam", Role: models.ProjectRoleOwner},
		{User: "mia", Role: models.ProjectRoleMember},
	}, p.Team)

	// later team changes do not reach the roster
	team.Members = append(team.Members, models.TeamMember{User: "stan", Role: models.TeamRoleAdmin})
	require.NoError(t, s.UpdateTeam(ctx, team))
	got, err := svc.Get(ctx, "olga", p.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, got.MemberIndex("stan"))

	// but team membership still grants viewing
	_, err = svc.Get(ctx, "stan", p.ID)
	assert.NoError(t, err)
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	svc, s := setup(t)
	team := seedTeam(t, s)
	teamProject, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "API", TeamID: team.ID})
	require.NoError(t, err)
	personal, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "Notes"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   string
		project string
		want    error
	}{
		{name: "owner", actor: "olga", project: personal.ID},
		{name: "team member on team project", actor: "mia", project: teamProject.ID},
		{name: "stranger on team project", actor: "stan", project: teamProject.ID, want: errors.ErrProjectNotFound},
		{name: "team member on personal project", actor: "mia", project: personal.ID, want: errors.ErrProjectNotFound},
		{name: "missing", actor: "olga", project: "nope", want: errors.ErrProjectNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Get(ctx, tt.actor, tt.project)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	mine, err := svc.List(ctx, "olga", ListQuery{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	byTeam, err := svc.List(ctx, "stan", ListQuery{TeamID: team.ID})
	require.NoError(t, err)
	assert.Empty(t, byTeam)

	byTeam, err = svc.List(ctx, "mia", ListQuery{TeamID: team.ID})
	require.NoError(t, err)
	assert.Len(t, byTeam, 1)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, s := setup(t)
	team := seedTeam(t, s)
	p, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "API", TeamID: team.ID})
	require.NoError(t, err)
	require.NoError(t, s.SetProjectProgress(ctx, p.ID, 50, 2, 1))

	status := string(models.ProjectInProgress)
	_, err = svc.Update(ctx, "mia", p.ID, UpdateProjectRequest{Status: &status})
	assert.ErrorIs(t, err, errors.ErrForbidden, "visible but not permitted is a 403")

	_, err = svc.Update(ctx, "adam", p.ID, UpdateProjectRequest{})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	updated, err := svc.Update(ctx, "adam", p.ID, UpdateProjectRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectInProgress, updated.Status)
	assert.Equal(t, 50, updated.Progress, "progress is not writable through updates")

	acts, err := svc.Activities(ctx, "mia", p.ID, 0)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, activity.ActionUpdated, acts[0].Action)
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	svc, s := setup(t)
	team := seedTeam(t, s)
	p, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "API", TeamID: team.ID})
	require.NoError(t, err)
	// roster: olga owner, adam admin, mia member

	t.Run("add", func(t *testing.T) {
		_, err := svc.AddMember(ctx, "mia", p.ID, AddProjectMemberRequest{User: "stan"})
		assert.ErrorIs(t, err, errors.ErrForbidden)

		_, err = svc.AddMember(ctx, "adam", p.ID, AddProjectMemberRequest{User: "stan", Role: "owner"})
		assert.ErrorIs(t, err, errors.ErrForbidden, "only owners grant owner")

		got, err := svc.AddMember(ctx, "adam", p.ID, AddProjectMemberRequest{User: "stan"})
		require.NoError(t, err)
		assert.Equal(t, models.ProjectRoleMember, got.Team[got.MemberIndex("stan")].Role)

		_, err = svc.AddMember(ctx, "adam", p.ID, AddProjectMemberRequest{User: "stan"})
		assert.ErrorIs(t, err, errors.ErrAlreadyMember)
	})

	t.Run("change role", func(t *testing.T) {
		_, err := svc.ChangeMemberRole(ctx, "adam", p.ID, "olga", ChangeRoleRequest{Role: "member"})
		assert.ErrorIs(t, err, errors.ErrForbidden)

		_, err = svc.ChangeMemberRole(ctx, "olga", p.ID, "olga", ChangeRoleRequest{Role: "admin"})
		assert.ErrorIs(t, err, errors.ErrValidationFailed, "the last owner keeps the role")

		got, err := svc.ChangeMemberRole(ctx, "olga", p.ID, "adam", ChangeRoleRequest{Role: "owner"})
		require.NoError(t, err)
		assert.Equal(t, 2, got.OwnerCount())
	})

	t.Run("remove", func(t *testing.T) {
		_, err := svc.RemoveMember(ctx, "mia", p.ID, "stan")
		assert.ErrorIs(t, err, errors.ErrForbidden)

		got, err := svc.RemoveMember(ctx, "stan", p.ID, "stan")
		require.NoError(t, err, "anyone may leave")
		assert.Equal(t, -1, got.MemberIndex("stan"))

		_, err = svc.RemoveMember(ctx, "olga", p.ID, "stan")
		assert.ErrorIs(t, err, errors.ErrMemberNotFound)

		_, err = svc.RemoveMember(ctx, "olga", p.ID, "adam")
		require.NoError(t, err)
		_, err = svc.RemoveMember(ctx, "olga", p.ID, "olga")
		assert.ErrorIs(t, err, errors.ErrValidationFailed)
	})
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	svc, s := setup(t)
	team := seedTeam(t, s)
	p, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "API", TeamID: team.ID})
	require.NoError(t, err)
	for _, title := range []string{"one", "two"} {
		require.NoError(t, s.CreateTask(ctx, &models.Task{Title: title, Project: p.ID, CreatedBy: "olga", Status: models.TaskTodo}))
	}

	assert.ErrorIs(t, svc.Delete(ctx, "adam", p.ID), errors.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, "stan", p.ID), errors.ErrProjectNotFound)
	require.NoError(t, svc.Delete(ctx, "olga", p.ID))

	total, _, err := s.CountTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
	acts, err := s.ListActivities(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, acts)

	_, err = s.GetTeam(ctx, team.ID)
	assert.NoError(t, err, "the parent team survives")
}

func TestStatusIsCheckedByTheService(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "Notes", Status: "archived"})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	p, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "Notes", Status: string(models.ProjectOnHold)})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectOnHold, p.Status)

	bogus := "done-ish"
	_, err = svc.Update(ctx, "olga", p.ID, UpdateProjectRequest{Status: &bogus})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	got, err := svc.Get(ctx, "olga", p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectOnHold, got.Status)
}

func TestConcurrentRosterAdditionsAreAllKept(t *testing.T) {
	ctx := context.Background()
	svc, s := setup(t)
	p, err := svc.Create(ctx, "olga", CreateProjectRequest{Title: "Crowded"})
	require.NoError(t, err)

	const n = 8
	for i := range n {
		id := fmt.Sprintf("dev%d", i)
		require.NoError(t, s.CreateUser(ctx, &models.User{ID: id, Username: id, Email: id + "@example.com"}))
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddMember(ctx, "olga", p.ID, AddProjectMemberRequest{User: fmt.Sprintf("dev%d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, "olga", p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Team, n+1)
}
