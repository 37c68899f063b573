package mproject

import (
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
)

type CreateProjectRequest struct {
	Title       string     `json:"title" binding:"required,min=2,max=120"`
	Description string     `json:"description" binding:"max=2000"`
	TeamID      string     `json:"teamId"`
	Status      string     `json:"status" binding:"omitempty,oneof=planning in-progress on-hold completed"`
	StartDate   *time.Time `json:"startDate"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        []string   `json:"tags"`
}

type UpdateProjectRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=2,max=120"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Status      *string    `json:"status" binding:"omitempty,oneof=planning in-progress on-hold completed"`
	StartDate   *time.Time `json:"startDate"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        *[]string  `json:"tags"`
}

// AddProjectMemberRequest identifies the user by id or username.
type AddProjectMemberRequest struct {
	User string `json:"user" binding:"required"`
	Role string `json:"role" binding:"omitempty,oneof=owner admin member"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=owner admin member"`
}

// ListQuery lists the actor's projects, or a team's when TeamID is set.
type ListQuery struct {
	TeamID string
	Limit  int
}

func parseStatus(s string) (models.ProjectStatus, error) {
	switch st := models.ProjectStatus(s); st {
	case models.ProjectPlanning, models.ProjectInProgress, models.ProjectOnHold, models.ProjectCompleted:
		return st, nil
	}
	return "", errors.Invalid("status must be one of [planning in-progress on-hold completed]")
}
