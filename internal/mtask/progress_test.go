package mtask

import (
	"context"
	stderrors "errors"
	"testing"

	"kyri56xcaesar/nexushub/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		completed, total int
		want             int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

type mockProgressRepo struct {
	mock.Mock
}

func (m *mockProgressRepo) CountTasks(ctx context.Context, projectID string) (int, int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockProgressRepo) SetProjectProgress(ctx context.Context, id string, progress, total, completed int) error {
	args := m.Called(ctx, id, progress, total, completed)
	return args.Error(0)
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()

	t.Run("writes the triple once", func(t *testing.T) {
		repo := new(mockProgressRepo)
		repo.On("CountTasks", ctx, "p1").Return(4, 1, nil)
		repo.On("SetProjectProgress", ctx, "p1", 25, 4, 1).Return(nil).Once()

		got, err := Recompute(ctx, repo, "p1")
		require.NoError(t, err)
		assert.Equal(t, Progress{Progress: 25, TotalTasks: 4, CompletedTasks: 1}, got)
		repo.AssertExpectations(t)
	})

	t.Run("missing project", func(t *testing.T) {
		repo := new(mockProgressRepo)
		repo.On("CountTasks", ctx, "gone").Return(0, 0, nil)
		repo.On("SetProjectProgress", ctx, "gone", 0, 0, 0).Return(errors.ErrProjectNotFound)

		_, err := Recompute(ctx, repo, "gone")
		assert.ErrorIs(t, err, errors.ErrProjectNotFound)
	})

	t.Run("count failure skips the write", func(t *testing.T) {
		repo := new(mockProgressRepo)
		repo.On("CountTasks", ctx, "p1").Return(0, 0, stderrors.New("connection reset"))

		_, err := Recompute(ctx, repo, "p1")
		assert.Error(t, err)
		repo.AssertNotCalled(t, "SetProjectProgress", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
