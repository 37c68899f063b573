package mtask

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"kyri56xcaesar/nexushub/internal/activity"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

// setup stores a project with olga as owner, adam as admin and the members
// mia and ben. stan is not on it.
func setup(t *testing.T) (*Service, *memstore.Storage, *models.Project) {
	t.Helper()
	s := memstore.NewStorage()
	p := &models.Project{Title: "API", CreatedBy: "olga", Status: models.ProjectInProgress, Team: []models.ProjectMember{
		{User: "olga", Role: models.ProjectRoleOwner},
		{User: "adam", Role: models.ProjectRoleAdmin},
		{User: "mia", Role: models.ProjectRoleMember},
		{User: "ben", Role: models.ProjectRoleMember},
	}}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return NewService(s, activity.NewRecorder(s), realtime.NewBroker(8)), s, p
}

func progressOf(t *testing.T, s *memstore.Storage, id string) (int, int, int) {
	t.Helper()
	p, err := s.GetProject(context.Background(), id)
	require.NoError(t, err)
	return p.Progress, p.TotalTasks, p.CompletedTasks
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, s, p := setup(t)

	tests := []struct {
		name  string
		actor string
		req   CreateTaskRequest
		want  error
	}{
		{name: "stranger", actor: "stan", req: CreateTaskRequest{Project: p.ID, Title: "x"}, want: errors.ErrProjectNotFound},
		{name: "missing project", actor: "olga", req: CreateTaskRequest{Project: "nope", Title: "x"}, want: errors.ErrProjectNotFound},
		{name: "member assigns someone else", actor: "mia", req: CreateTaskRequest{Project: p.ID, Title: "x", AssignedTo: []string{"ben"}}, want: errors.ErrForbidden},
		{name: "assignee off the roster", actor: "adam", req: CreateTaskRequest{Project: p.ID, Title: "x", AssignedTo: []string{"stan"}}, want: errors.ErrValidationFailed},
		{name: "blank title", actor: "adam", req: CreateTaskRequest{Project: p.ID, Title: "  "}, want: errors.ErrValidationFailed},
		{name: "bad status", actor: "adam", req: CreateTaskRequest{Project: p.ID, Title: "x", Status: "done"}, want: errors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	task, err := svc.Create(ctx, "adam", CreateTaskRequest{Project: p.ID, Title: "Schema", AssignedTo: []string{"mia", "ben", "mia"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"mia", "ben"}, task.AssignedTo)
	assert.Equal(t, models.TaskTodo, task.Status)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Nil(t, task.CompletedAt)

	done, err := svc.Create(ctx, "mia", CreateTaskRequest{Project: p.ID, Title: "Kickoff", Status: "completed", AssignedTo: []string{"mia"}})
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedAt)

	progress, total, completed := progressOf(t, s, p.ID)
	assert.Equal(t, []int{50, 2, 1}, []int{progress, total, completed})
}

func TestMemberCompletesOwnTask(t *testing.T) {
	ctx := context.Background()
	svc, s, p := setup(t)

	_, err := svc.Create(ctx, "olga", CreateTaskRequest{Project: p.ID, Title: "Other"})
	require.NoError(t, err)
	task, err := svc.Create(ctx, "mia", CreateTaskRequest{Project: p.ID, Title: "Mine", AssignedTo: []string{"mia"}})
	require.NoError(t, err)
	progress, _, _ := progressOf(t, s, p.ID)
	require.Equal(t, 0, progress)

	updated, err := svc.UpdateStatus(ctx, "mia", task.ID, "completed")
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)

	progress, total, completed := progressOf(t, s, p.ID)
	assert.Equal(t, []int{50, 2, 1}, []int{progress, total, completed})

	acts, err := s.ListActivities(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, activity.ActionStatusChanged, acts[0].Action)
	assert.Equal(t, "mia", acts[0].UserID)
}

func TestUnassignedMemberIsLimitedToStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, p := setup(t)
	task, err := svc.Create(ctx, "adam", CreateTaskRequest{Project: p.ID, Title: "Docs", AssignedTo: []string{"mia"}})
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor string
		req   UpdateTaskRequest
		want  error
	}{
		{name: "priority", actor: "ben", req: UpdateTaskRequest{Priority: strp("high")}, want: errors.ErrForbidden},
		{name: "title", actor: "ben", req: UpdateTaskRequest{Title: strp("Mine now")}, want: errors.ErrForbidden},
		{name: "status with priority", actor: "ben", req: UpdateTaskRequest{Status: strp("review"), Priority: strp("low")}, want: errors.ErrForbidden},
		{name: "status only", actor: "ben", req: UpdateTaskRequest{Status: strp("in-progress")}},
		{name: "stranger", actor: "stan", req: UpdateTaskRequest{Status: strp("review")}, want: errors.ErrTaskNotFound},
		{name: "nothing set", actor: "adam", req: UpdateTaskRequest{}, want: errors.ErrValidationFailed},
		{name: "admin edits anything", actor: "adam", req: UpdateTaskRequest{Priority: strp("high"), Title: strp("Docs v2")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tt.actor, task.ID, tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := svc.Get(ctx, "olga", task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, got.Status)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, "Docs v2", got.Title)
}

func TestCompletedAtIsSticky(t *testing.T) {
	ctx := context.Background()
	svc, s, p := setup(t)
	task, err := svc.Create(ctx, "adam", CreateTaskRequest{Project: p.ID, Title: "Release"})
	require.NoError(t, err)

	done, err := svc.UpdateStatus(ctx, "adam", task.ID, "completed")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	stamp := *done.CompletedAt

	// other edits and re-sending completed leave it alone
	_, err = svc.Update(ctx, "adam", task.ID, UpdateTaskRequest{Priority: strp("low")})
	require.NoError(t, err)
	again, err := svc.UpdateStatus(ctx, "adam", task.ID, "completed")
	require.NoError(t, err)
	assert.True(t, stamp.Equal(*again.CompletedAt))

	// moving back keeps the old stamp
	back, err := svc.UpdateStatus(ctx, "adam", task.ID, "in-progress")
	require.NoError(t, err)
	require.NotNil(t, back.CompletedAt)
	assert.True(t, stamp.Equal(*back.CompletedAt))

	progress, total, completed := progressOf(t, s, p.ID)
	assert.Equal(t, []int{0, 1, 0}, []int{progress, total, completed})
}

func TestReassign(t *testing.T) {
	ctx := context.Background()
	svc, _, p := setup(t)
	task, err := svc.Create(ctx, "mia", CreateTaskRequest{Project: p.ID, Title: "Fix", AssignedTo: []string{"mia"}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "mia", task.ID, UpdateTaskRequest{AssignedTo: &[]string{"ben"}})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	got, err := svc.Update(ctx, "adam", task.ID, UpdateTaskRequest{AssignedTo: &[]string{"ben", "mia"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ben", "mia"}, got.AssignedTo)

	mine, err := svc.ListMine(ctx, "ben", ListQuery{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, s, p := setup(t)
	byMia, err := svc.Create(ctx, "mia", CreateTaskRequest{Project: p.ID, Title: "Hers", Status: "completed"})
	require.NoError(t, err)
	byAdam, err := svc.Create(ctx, "adam", CreateTaskRequest{Project: p.ID, Title: "His"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "ben", byMia.ID), errors.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, "mia", byAdam.ID), errors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "mia", byMia.ID))

	progress, total, completed := progressOf(t, s, p.ID)
	assert.Equal(t, []int{0, 1, 0}, []int{progress, total, completed})

	require.NoError(t, svc.Delete(ctx, "olga", byAdam.ID))
	progress, total, _ = progressOf(t, s, p.ID)
	assert.Equal(t, 0, progress)
	assert.Equal(t, 0, total)

	_, err = svc.Get(ctx, "olga", byAdam.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	svc, _, p := setup(t)
	task, err := svc.Create(ctx, "adam", CreateTaskRequest{Project: p.ID, Title: "Review"})
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, "stan", task.ID, CreateCommentRequest{Text: "hi"})
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)

	c1, err := svc.AddComment(ctx, "mia", task.ID, CreateCommentRequest{Text: " looks good "})
	require.NoError(t, err)
	assert.Equal(t, "looks good", c1.Text)
	c2, err := svc.AddComment(ctx, "ben", task.ID, CreateCommentRequest{Text: "agreed"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteComment(ctx, "ben", task.ID, c1.ID), errors.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteComment(ctx, "ben", task.ID, "nope"), errors.ErrCommentNotFound)
	require.NoError(t, svc.DeleteComment(ctx, "ben", task.ID, c2.ID))
	require.NoError(t, svc.DeleteComment(ctx, "adam", task.ID, c1.ID))

	got, err := svc.Get(ctx, "mia", task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Comments)
}

func TestListByProject(t *testing.T) {
	ctx := context.Background()
	svc, _, p := setup(t)
	for _, status := range []string{"todo", "todo", "review"} {
		_, err := svc.Create(ctx, "adam", CreateTaskRequest{Project: p.ID, Title: "t-" + status, Status: status})
		require.NoError(t, err)
	}

	all, err := svc.ListByProject(ctx, "ben", p.ID, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	todo, err := svc.ListByProject(ctx, "ben", p.ID, ListQuery{Status: "todo"})
	require.NoError(t, err)
	assert.Len(t, todo, 2)

	_, err = svc.ListByProject(ctx, "stan", p.ID, ListQuery{})
	assert.ErrorIs(t, err, errors.ErrProjectNotFound)
}

// progressDown is a memory store whose progress write is mocked.
type progressDown struct {
	*memstore.Storage
	mock.Mock
}

func (p *progressDown) SetProjectProgress(ctx context.Context, id string, progress, total, completed int) error {
	args := p.Called(ctx, id, progress, total, completed)
	return args.Error(0)
}

func TestTaskWritesSurviveAFailedRecompute(t *testing.T) {
	ctx := context.Background()
	repo := &progressDown{Storage: memstore.NewStorage()}
	p := &models.Project{Title: "API", CreatedBy: "olga", Team: []models.ProjectMember{{User: "olga", Role: models.ProjectRoleOwner}}}
	require.NoError(t, repo.CreateProject(ctx, p))
	repo.On("SetProjectProgress", mock.Anything, p.ID, mock.Anything, mock.Anything, mock.Anything).
		Return(stderrors.New("connection reset")).Times(3)

	svc := NewService(repo, activity.NewRecorder(repo), nil)

	task, err := svc.Create(ctx, "olga", CreateTaskRequest{Project: p.ID, Title: "ship it"})
	require.NoError(t, err)

	done, err := svc.UpdateStatus(ctx, "olga", task.ID, string(models.TaskCompleted))
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	stored, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, stored.Status)

	require.NoError(t, svc.Delete(ctx, "olga", task.ID))
	_, err = repo.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)

	repo.AssertExpectations(t)
	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Progress, "the failed writes left the stored triple alone")
}

func TestConcurrentCommentsAreAllKept(t *testing.T) {
	ctx := context.Background()
	svc, s, p := setup(t)
	task, err := svc.Create(ctx, "olga", CreateTaskRequest{Project: p.ID, Title: "discuss"})
	require.NoError(t, err)

	authors := []string{"olga", "adam", "mia", "ben"}
	var wg sync.WaitGroup
	for _, who := range authors {
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddComment(ctx, who, task.ID, CreateCommentRequest{Text: "+1 from " + who})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, len(authors)*3)
}
