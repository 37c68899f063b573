package memstore

import (
	"maps"
	"slices"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/models"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

func cloneUser(u models.User) models.User {
	u.Skills = slices.Clone(u.Skills)
	u.VerificationExpires = cloneTime(u.VerificationExpires)
	u.ResetExpires = cloneTime(u.ResetExpires)
	return u
}

func cloneTeam(t models.Team) models.Team {
	t.Members = slices.Clone(t.Members)
	t.JoinRequests = slices.Clone(t.JoinRequests)
	t.Projects = slices.Clone(t.Projects)
	t.Tags = slices.Clone(t.Tags)
	return t
}

func cloneProject(p models.Project) models.Project {
	p.Team = slices.Clone(p.Team)
	p.Tags = slices.Clone(p.Tags)
	p.StartDate = cloneTime(p.StartDate)
	p.DueDate = cloneTime(p.DueDate)
	return p
}

func cloneTask(t models.Task) models.Task {
	t.AssignedTo = slices.Clone(t.AssignedTo)
	t.Tags = slices.Clone(t.Tags)
	t.Comments = slices.Clone(t.Comments)
	t.DueDate = cloneTime(t.DueDate)
	t.CompletedAt = cloneTime(t.CompletedAt)
	return t
}

func clonePost(p models.Post) models.Post {
	p.Tags = slices.Clone(p.Tags)
	p.Likes = slices.Clone(p.Likes)
	p.Comments = slices.Clone(p.Comments)
	return p
}

func cloneChat(c models.Chat) models.Chat {
	c.Participants = slices.Clone(c.Participants)
	c.LastMessageAt = cloneTime(c.LastMessageAt)
	return c
}
