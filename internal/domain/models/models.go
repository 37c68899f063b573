package models

import "time"

type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Password   string   `json:"-"`
	FullName   string   `json:"fullName,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	Avatar     string   `json:"avatar,omitempty"`
	Location   string   `json:"location,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	GoogleID   string   `json:"googleId,omitempty"`
	GithubID   string   `json:"githubId,omitempty"`
	KeycloakID string   `json:"-"`

	IsEmailVerified     bool       `json:"isEmailVerified"`
	VerificationToken   string     `json:"-"`
	VerificationExpires *time.Time `json:"-"`
	ResetToken          string     `json:"-"`
	ResetExpires        *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// External identity providers a User can be linked to.
const (
	ProviderGoogle   = "google"
	ProviderGithub   = "github"
	ProviderKeycloak = "keycloak"
)

// UserSummary is the public projection of a User.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, Avatar: u.Avatar}
}

type TeamRole string

const (
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleMember TeamRole = "member"
)

type TeamMember struct {
	User     string    `json:"user"`
	Role     TeamRole  `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type JoinRequest struct {
	User        string    `json:"user"`
	Message     string    `json:"message,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Team keeps its owner out of Members; the owner role is implied by Owner.
type Team struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Owner        string        `json:"owner"`
	Members      []TeamMember  `json:"members"`
	JoinRequests []JoinRequest `json:"joinRequests"`
	Projects     []string      `json:"projects"`
	IsPublic     bool          `json:"isPublic"`
	Tags         []string      `json:"tags"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Version      int64         `json:"version"`
}

// MemberIndex returns the position of userID in Members or -1.
func (t *Team) MemberIndex(userID string) int {
	for i, m := range t.Members {
		if m.User == userID {
			return i
		}
	}
	return -1
}

// JoinRequestIndex returns the position of userID in JoinRequests or -1.
func (t *Team) JoinRequestIndex(userID string) int {
	for i, r := range t.JoinRequests {
		if r.User == userID {
			return i
		}
	}
	return -1
}

type ProjectRole string

const (
	ProjectRoleOwner  ProjectRole = "owner"
	ProjectRoleAdmin  ProjectRole = "admin"
	ProjectRoleMember ProjectRole = "member"
)

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectOnHold     ProjectStatus = "on-hold"
	ProjectCompleted  ProjectStatus = "completed"
)

type ProjectMember struct {
	User string      `json:"user"`
	Role ProjectRole `json:"role"`
}

// Project.Team is a roster snapshot; it is seeded from the parent team at
// creation time and never re-synced with it.
type Project struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	CreatedBy      string          `json:"createdBy"`
	Team           []ProjectMember `json:"team"`
	TeamID         string          `json:"teamId,omitempty"`
	Status         ProjectStatus   `json:"status"`
	Progress       int             `json:"progress"`
	TotalTasks     int             `json:"totalTasks"`
	CompletedTasks int             `json:"completedTasks"`
	IsPersonal     bool            `json:"isPersonal"`
	StartDate      *time.Time      `json:"startDate,omitempty"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	Tags           []string        `json:"tags"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Version        int64           `json:"version"`
}

func (p *Project) MemberIndex(userID string) int {
	for i, m := range p.Team {
		if m.User == userID {
			return i
		}
	}
	return -1
}

// OwnerCount reports how many roster entries hold the owner role.
func (p *Project) OwnerCount() int {
	n := 0
	for _, m := range p.Team {
		if m.Role == ProjectRoleOwner {
			n++
		}
	}
	return n
}

type TaskStatus string

const (
	TaskBacklog    TaskStatus = "backlog"
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type TaskComment struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task.Project is fixed at creation.
type Task struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Project     string        `json:"project"`
	AssignedTo  []string      `json:"assignedTo"`
	CreatedBy   string        `json:"createdBy"`
	Status      TaskStatus    `json:"status"`
	Priority    TaskPriority  `json:"priority"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	Tags        []string      `json:"tags"`
	Comments    []TaskComment `json:"comments"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Version     int64         `json:"version"`
}

func (t *Task) IsAssigned(userID string) bool {
	for _, a := range t.AssignedTo {
		if a == userID {
			return true
		}
	}
	return false
}

// Activity is an append-only audit entry scoped to a project.
type Activity struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"projectId"`
	UserID      string         `json:"userId"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type PostComment struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Post struct {
	ID         string        `json:"id"`
	Author     string        `json:"author"`
	Content    string        `json:"content"`
	Tags       []string      `json:"tags"`
	Likes      []string      `json:"likes"`
	Comments   []PostComment `json:"comments"`
	SharedFrom string        `json:"sharedFrom,omitempty"`
	Shares     int           `json:"shares"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

type Chat struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	IsGroup       bool       `json:"isGroup"`
	Participants  []string   `json:"participants"`
	Admin         string     `json:"admin,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID        string    `json:"id"`
	Chat      string    `json:"chat"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
