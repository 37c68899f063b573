// Package memstore is the in-memory Store used by tests and as the fallback
// when Postgres is unreachable.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/store"

	"github.com/google/uuid"
)

type Storage struct {
	mu         sync.RWMutex
	users      map[string]models.User
	teams      map[string]models.Team
	projects   map[string]models.Project
	tasks      map[string]models.Task
	activities map[string][]models.Activity // projectID -> entries
	posts      map[string]models.Post
	chats      map[string]models.Chat
	messages   map[string][]models.Message // chatID -> messages
}

var _ store.Store = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		users:      make(map[string]models.User),
		teams:      make(map[string]models.Team),
		projects:   make(map[string]models.Project),
		tasks:      make(map[string]models.Task),
		activities: make(map[string][]models.Activity),
		posts:      make(map[string]models.Post),
		chats:      make(map[string]models.Chat),
		messages:   make(map[string][]models.Message),
	}
}

func (s *Storage) Close() {}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func stamp(created *time.Time, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// Users

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return errors.ErrUserAlreadyExists
		}
	}
	user.ID = newID(user.ID)
	stamp(&user.CreatedAt, &user.UpdatedAt)
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (s *Storage) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			out := cloneUser(u)
			return &out, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Storage) GetUserByExternalID(_ context.Context, provider, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, errors.ErrUserNotFound
	}
	return s.findUser(func(u models.User) bool {
		switch provider {
		case models.ProviderGoogle:
			return u.GoogleID == externalID
		case models.ProviderGithub:
			return u.GithubID == externalID
		case models.ProviderKeycloak:
			return u.KeycloakID == externalID
		}
		return false
	})
}

func (s *Storage) GetUserByVerificationToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errors.ErrUserNotFound
	}
	return s.findUser(func(u models.User) bool { return u.VerificationToken == token })
}

func (s *Storage) GetUserByResetToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errors.ErrUserNotFound
	}
	return s.findUser(func(u models.User) bool { return u.ResetToken == token })
}

func (s *Storage) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return errors.ErrUserNotFound
	}
	for id, u := range s.users {
		if id != user.ID && (u.Username == user.Username || strings.EqualFold(u.Email, user.Email)) {
			return errors.ErrUserAlreadyExists
		}
	}
	stamp(nil, &user.UpdatedAt)
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (s *Storage) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return errors.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// Teams

func (s *Storage) CreateTeam(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	team.ID = newID(team.ID)
	stamp(&team.CreatedAt, &team.UpdatedAt)
	team.Version = 1
	s.teams[team.ID] = cloneTeam(*team)
	return nil
}

func (s *Storage) GetTeam(_ context.Context, id string) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return nil, errors.ErrTeamNotFound
	}
	out := s.withProjects(t)
	return &out, nil
}

// withProjects fills the derived project list; caller holds the lock.
func (s *Storage) withProjects(t models.Team) models.Team {
	out := cloneTeam(t)
	out.Projects = []string{}
	linked := make([]models.Project, 0)
	for _, p := range s.projects {
		if p.TeamID == t.ID {
			linked = append(linked, p)
		}
	}
	sort.Slice(linked, func(i, j int) bool { return linked[i].CreatedAt.Before(linked[j].CreatedAt) })
	for _, p := range linked {
		out.Projects = append(out.Projects, p.ID)
	}
	return out
}

func (s *Storage) UpdateTeam(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.teams[team.ID]
	if !ok {
		return errors.ErrTeamNotFound
	}
	if cur.Version != team.Version {
		return errors.ErrStaleWrite
	}
	team.Version++
	stamp(nil, &team.UpdatedAt)
	s.teams[team.ID] = cloneTeam(*team)
	return nil
}

func (s *Storage) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[id]; !ok {
		return errors.ErrTeamNotFound
	}
	delete(s.teams, id)
	return nil
}

func (s *Storage) ListTeams(_ context.Context, f store.TeamFilter) ([]models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(f.Name))
	out := make([]models.Team, 0)
	for _, t := range s.teams {
		if f.MemberID != "" && t.Owner != f.MemberID && t.MemberIndex(f.MemberID) < 0 {
			continue
		}
		if f.PublicOnly && !t.IsPublic {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(t.Name), name) {
			continue
		}
		out = append(out, s.withProjects(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, store.NormalizeLimit(f.Limit)), nil
}

// Projects

func (s *Storage) CreateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project.ID = newID(project.ID)
	stamp(&project.CreatedAt, &project.UpdatedAt)
	project.Version = 1
	s.projects[project.ID] = cloneProject(*project)
	return nil
}

func (s *Storage) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, errors.ErrProjectNotFound
	}
	out := cloneProject(p)
	return &out, nil
}

// UpdateProject replaces the document but keeps the derived progress fields,
// which only SetProjectProgress writes.
func (s *Storage) UpdateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.projects[project.ID]
	if !ok {
		return errors.ErrProjectNotFound
	}
	if cur.Version != project.Version {
		return errors.ErrStaleWrite
	}
	project.Version++
	stamp(nil, &project.UpdatedAt)
	project.Progress, project.TotalTasks, project.CompletedTasks = cur.Progress, cur.TotalTasks, cur.CompletedTasks
	s.projects[project.ID] = cloneProject(*project)
	return nil
}

func (s *Storage) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return errors.ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *Storage) ListProjects(_ context.Context, f store.ProjectFilter) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Project, 0)
	for _, p := range s.projects {
		if f.UserID != "" && p.CreatedBy != f.UserID && p.MemberIndex(f.UserID) < 0 {
			continue
		}
		if f.TeamID != "" && p.TeamID != f.TeamID {
			continue
		}
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, store.NormalizeLimit(f.Limit)), nil
}

func (s *Storage) SetProjectProgress(_ context.Context, id string, progress, total, completed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return errors.ErrProjectNotFound
	}
	p.Progress, p.TotalTasks, p.CompletedTasks = progress, total, completed
	s.projects[id] = p
	return nil
}

func (s *Storage) DetachProjectsFromTeam(_ context.Context, teamID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.projects {
		if p.TeamID == teamID {
			p.TeamID = ""
			p.Version++
			s.projects[id] = p
			n++
		}
	}
	return n, nil
}

// Tasks

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = newID(task.ID)
	stamp(&task.CreatedAt, &task.UpdatedAt)
	task.Version = 1
	s.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (s *Storage) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, errors.ErrTaskNotFound
	}
	out := cloneTask(t)
	return &out, nil
}

// UpdateTask never moves a task to another project.
func (s *Storage) UpdateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[task.ID]
	if !ok {
		return errors.ErrTaskNotFound
	}
	if cur.Version != task.Version {
		return errors.ErrStaleWrite
	}
	task.Version++
	task.Project = cur.Project
	stamp(nil, &task.UpdatedAt)
	s.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return errors.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Storage) ListTasks(_ context.Context, f store.TaskFilter) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, 0)
	for _, t := range s.tasks {
		if f.ProjectID != "" && t.Project != f.ProjectID {
			continue
		}
		if f.AssigneeID != "" && !t.IsAssigned(f.AssigneeID) {
			continue
		}
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sortTasks(out, f.Order)
	return truncate(out, store.NormalizeLimit(f.Limit)), nil
}

func sortTasks(tasks []models.Task, order string) {
	switch order {
	case "created_asc":
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	case "due_asc":
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueDate, tasks[j].DueDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	default:
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	}
}

func (s *Storage) CountTasks(_ context.Context, projectID string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, completed := 0, 0
	for _, t := range s.tasks {
		if t.Project != projectID {
			continue
		}
		total++
		if t.Status == models.TaskCompleted {
			completed++
		}
	}
	return total, completed, nil
}

func (s *Storage) DeleteTasksByProject(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tasks {
		if t.Project == projectID {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

// Activities

func (s *Storage) AppendActivity(_ context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = newID(a.ID)
	stamp(&a.CreatedAt, nil)
	entry := *a
	entry.Metadata = cloneMap(a.Metadata)
	s.activities[a.ProjectID] = append(s.activities[a.ProjectID], entry)
	return nil
}

// ListActivities returns the newest entries first.
func (s *Storage) ListActivities(_ context.Context, projectID string, limit int) ([]models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.activities[projectID]
	limit = store.NormalizeLimit(limit)
	out := make([]models.Activity, 0, min(limit, len(src)))
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		entry := src[i]
		entry.Metadata = cloneMap(entry.Metadata)
		out = append(out, entry)
	}
	return out, nil
}

func (s *Storage) DeleteActivitiesByProject(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.activities[projectID]))
	delete(s.activities, projectID)
	return n, nil
}

// Posts

func (s *Storage) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = newID(post.ID)
	stamp(&post.CreatedAt, &post.UpdatedAt)
	s.posts[post.ID] = clonePost(*post)
	return nil
}

func (s *Storage) GetPost(_ context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, errors.ErrPostNotFound
	}
	out := clonePost(p)
	return &out, nil
}

func (s *Storage) UpdatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[post.ID]; !ok {
		return errors.ErrPostNotFound
	}
	stamp(nil, &post.UpdatedAt)
	s.posts[post.ID] = clonePost(*post)
	return nil
}

func (s *Storage) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return errors.ErrPostNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *Storage) ListPosts(_ context.Context, authorID string, limit int) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Post, 0)
	for _, p := range s.posts {
		if authorID != "" && p.Author != authorID {
			continue
		}
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, store.NormalizeLimit(limit)), nil
}

// Chats

func (s *Storage) CreateChat(_ context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat.ID = newID(chat.ID)
	stamp(&chat.CreatedAt, nil)
	s.chats[chat.ID] = cloneChat(*chat)
	return nil
}

func (s *Storage) GetChat(_ context.Context, id string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, errors.ErrChatNotFound
	}
	out := cloneChat(c)
	return &out, nil
}

func (s *Storage) UpdateChat(_ context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chat.ID]; !ok {
		return errors.ErrChatNotFound
	}
	s.chats[chat.ID] = cloneChat(*chat)
	return nil
}

func (s *Storage) ListChats(_ context.Context, participantID string) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Chat, 0)
	for _, c := range s.chats {
		if c.HasParticipant(participantID) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i]).After(lastActivity(out[j])) })
	return out, nil
}

func lastActivity(c models.Chat) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (s *Storage) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[msg.Chat]
	if !ok {
		return errors.ErrChatNotFound
	}
	msg.ID = newID(msg.ID)
	stamp(&msg.CreatedAt, nil)
	s.messages[msg.Chat] = append(s.messages[msg.Chat], *msg)

	at := msg.CreatedAt
	c.LastMessageAt = &at
	s.chats[c.ID] = c
	return nil
}

// ListMessages returns the latest limit messages in chronological order.
func (s *Storage) ListMessages(_ context.Context, chatID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.messages[chatID]
	limit = store.NormalizeLimit(limit)
	if len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]models.Message, len(src))
	copy(out, src)
	return out, nil
}

func truncate[T any](s []T, limit int) []T {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
