package mtask

import (
	"context"
	"math"
)

// Progress is the derived completion state of a project.
type Progress struct {
	Progress       int `json:"progress"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
}

// ProgressRepository is what Recompute reads and writes.
type ProgressRepository interface {
	CountTasks(ctx context.Context, projectID string) (total, completed int, err error)
	SetProjectProgress(ctx context.Context, id string, progress, total, completed int) error
}

// Percent is round(completed/total*100), or 0 for an empty project.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Recompute recounts every task of projectID and stores the result in one
// write. Running it twice yields the same triple, so concurrent callers
// converge on the last full scan.
func Recompute(ctx context.Context, repo ProgressRepository, projectID string) (Progress, error) {
	total, completed, err := repo.CountTasks(ctx, projectID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Progress: Percent(completed, total), TotalTasks: total, CompletedTasks: completed}
	if err := repo.SetProjectProgress(ctx, projectID, p.Progress, p.TotalTasks, p.CompletedTasks); err != nil {
		return Progress{}, err
	}
	return p, nil
}
