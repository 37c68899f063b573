// Package store declares the document-style persistence contract shared by
// the memory and Postgres backends.
package store

import (
	"context"
	stderrors "errors"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, provider, externalID string) (*models.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type TeamFilter struct {
	// MemberID restricts to teams the user owns or belongs to.
	MemberID   string
	PublicOnly bool
	Name       string
	Limit      int
}

type TeamRepository interface {
	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	// UpdateTeam fails with ErrStaleWrite when team.Version is not the
	// stored version, and bumps it otherwise.
	UpdateTeam(ctx context.Context, team *models.Team) error
	DeleteTeam(ctx context.Context, id string) error
	ListTeams(ctx context.Context, f TeamFilter) ([]models.Team, error)
}

type ProjectFilter struct {
	// UserID restricts to projects the user created or is on the roster of.
	UserID string
	TeamID string
	Limit  int
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	// UpdateProject has the same version check as UpdateTeam.
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error)
	// SetProjectProgress writes the three derived fields in one step.
	SetProjectProgress(ctx context.Context, id string, progress, total, completed int) error
	// DetachProjectsFromTeam clears the team link of every project of teamID.
	DetachProjectsFromTeam(ctx context.Context, teamID string) (int64, error)
}

type TaskFilter struct {
	ProjectID  string
	AssigneeID string
	Status     string
	Limit      int
	Order      string
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	// UpdateTask has the same version check as UpdateTeam.
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error)
	// CountTasks scans every task of the project.
	CountTasks(ctx context.Context, projectID string) (total, completed int, err error)
	DeleteTasksByProject(ctx context.Context, projectID string) (int64, error)
}

type ActivityRepository interface {
	AppendActivity(ctx context.Context, activity *models.Activity) error
	ListActivities(ctx context.Context, projectID string, limit int) ([]models.Activity, error)
	DeleteActivitiesByProject(ctx context.Context, projectID string) (int64, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, authorID string, limit int) ([]models.Post, error)
}

type ChatRepository interface {
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	UpdateChat(ctx context.Context, chat *models.Chat) error
	ListChats(ctx context.Context, participantID string) ([]models.Chat, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)
}

type Store interface {
	UserRepository
	TeamRepository
	ProjectRepository
	TaskRepository
	ActivityRepository
	PostRepository
	ChatRepository
	Close()
}

// NormalizeLimit clamps list sizes to [1, 200], defaulting to 50.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

// MaxWriteAttempts bounds how often RetryStale restarts a read-modify-write.
const MaxWriteAttempts = 16

// RetryStale runs fn, which reads a document, changes it and writes it back,
// again each time the write loses to a concurrent one.
func RetryStale(ctx context.Context, fn func() error) error {
	var err error
	for range MaxWriteAttempts {
		if err = fn(); !stderrors.Is(err, errors.ErrStaleWrite) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
