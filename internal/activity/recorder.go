// Package activity appends project audit entries. Writes are best effort: the
// mutation they describe has already happened when Record runs.
package activity

import (
	"context"
	"log"

	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/store"
)

// Entity types.
const (
	EntityProject = "project"
	EntityTask    = "task"
	EntityComment = "comment"
	EntityMember  = "member"
)

// Actions.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionDeleted       = "deleted"
	ActionStatusChanged = "status_changed"
	ActionCommented     = "commented"
	ActionMemberAdded   = "member_added"
	ActionMemberRemoved = "member_removed"
	ActionRoleChanged   = "role_changed"
)

type Recorder struct {
	repo store.ActivityRepository
}

func NewRecorder(repo store.ActivityRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Record appends a, logging instead of returning any failure.
func (r *Recorder) Record(ctx context.Context, a models.Activity) {
	if a.ProjectID == "" {
		log.Printf("[WARN] activity %s/%s by %s has no project, dropped", a.EntityType, a.Action, a.UserID)
		return
	}
	if err := r.repo.AppendActivity(ctx, &a); err != nil {
		log.Printf("[WARN] inconsistent state: %s %s %s on project %s not recorded: %v",
			a.UserID, a.Action, a.EntityType, a.ProjectID, err)
	}
}

func (r *Recorder) List(ctx context.Context, projectID string, limit int) ([]models.Activity, error) {
	return r.repo.ListActivities(ctx, projectID, limit)
}
