package mtask

import (
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
)

type CreateTaskRequest struct {
	Project     string     `json:"project" form:"project" binding:"required"`
	Title       string     `json:"title" form:"title" binding:"required,min=2,max=120"`
	Description string     `json:"description" form:"description" binding:"max=2000"`
	AssignedTo  []string   `json:"assignedTo" form:"assignedTo"`
	Status      string     `json:"status" form:"status" binding:"omitempty,oneof=backlog todo in-progress review completed"`
	Priority    string     `json:"priority" form:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"dueDate" form:"dueDate"`
	Tags        []string   `json:"tags" form:"tags"`
}

// UpdateTaskRequest only touches the fields that are set.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" form:"title" binding:"omitempty,min=2,max=120"`
	Description *string    `json:"description" form:"description" binding:"omitempty,max=2000"`
	AssignedTo  *[]string  `json:"assignedTo" form:"assignedTo"`
	Status      *string    `json:"status" form:"status" binding:"omitempty,oneof=backlog todo in-progress review completed"`
	Priority    *string    `json:"priority" form:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"dueDate" form:"dueDate"`
	Tags        *[]string  `json:"tags" form:"tags"`
}

// fields names what the update touches, in the vocabulary authz expects.
func (r UpdateTaskRequest) fields() []string {
	var out []string
	if r.Title != nil {
		out = append(out, "title")
	}
	if r.Description != nil {
		out = append(out, "description")
	}
	if r.AssignedTo != nil {
		out = append(out, "assignedTo")
	}
	if r.Status != nil {
		out = append(out, "status")
	}
	if r.Priority != nil {
		out = append(out, "priority")
	}
	if r.DueDate != nil {
		out = append(out, "dueDate")
	}
	if r.Tags != nil {
		out = append(out, "tags")
	}
	return out
}

type UpdateStatusRequest struct {
	Status string `json:"status" form:"status" binding:"required,oneof=backlog todo in-progress review completed"`
}

type CreateCommentRequest struct {
	Text string `json:"text" form:"text" binding:"required,min=1,max=2000"`
}

// ListQuery filters task listings.
type ListQuery struct {
	Status   string
	Assignee string
	Order    string // created_asc, due_asc or newest first
	Limit    int
}

func parseStatus(s string) (models.TaskStatus, error) {
	switch st := models.TaskStatus(s); st {
	case models.TaskBacklog, models.TaskTodo, models.TaskInProgress, models.TaskReview, models.TaskCompleted:
		return st, nil
	}
	return "", errors.Invalid("status must be one of [backlog todo in-progress review completed]")
}

func parsePriority(s string) (models.TaskPriority, error) {
	switch p := models.TaskPriority(s); p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return p, nil
	}
	return "", errors.Invalid("priority must be one of [low medium high]")
}
