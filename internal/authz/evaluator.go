// Package authz holds every access decision for teams, projects, tasks and
// the social surfaces. It is pure: callers resolve the records, authz only
// looks at them.
package authz

import (
	"fmt"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
)

type Action string

const (
	ViewProject         Action = "project:view"
	UpdateProject       Action = "project:update"
	DeleteProject       Action = "project:delete"
	ManageProjectRoster Action = "project:roster"
	LeaveProject        Action = "project:leave"
	CreateTeamProject   Action = "project:create:team"
	CreateTask          Action = "task:create"
	AssignTask          Action = "task:assign"
	ViewTask            Action = "task:view"
	UpdateTask          Action = "task:update"
	DeleteTask          Action = "task:delete"
	CommentTask         Action = "task:comment"
	DeleteTaskComment   Action = "task:comment:delete"

	CreateTeam        Action = "team:create"
	ViewTeam          Action = "team:view"
	UpdateTeam        Action = "team:update"
	AddTeamMember     Action = "team:member:add"
	ChangeMemberRole  Action = "team:member:role"
	RemoveTeamMember  Action = "team:member:remove"
	DeleteTeam        Action = "team:delete"
	JoinTeam          Action = "team:join"
	HandleJoinRequest Action = "team:join:handle"

	DeletePost Action = "post:delete"
	ViewChat   Action = "chat:view"
	PostToChat Action = "chat:post"
	ManageChat Action = "chat:manage"
)

// Request carries the actor, the action and the already-loaded records the
// decision depends on. Only the fields relevant to Action are read.
type Request struct {
	Actor  string
	Action Action

	Team    *models.Team
	Project *models.Project
	Task    *models.Task
	Post    *models.Post
	Chat    *models.Chat

	// Target is the user a membership action is aimed at.
	Target string
	// TargetRole is the role being granted by a membership action.
	TargetRole Role
	// Fields lists the task fields an update touches.
	Fields []string
	// Assignees lists the users a task is being assigned to.
	Assignees []string
	// CommentAuthor is the author of the comment being deleted.
	CommentAuthor string
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err is nil for an allowed decision and an ErrForbidden wrap otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errors.Denied(d.Reason)
}

func Evaluate(req Request) Decision {
	if req.Actor == "" {
		return deny("no authenticated actor")
	}

	switch req.Action {
	case ViewProject:
		return viewProject(req)
	case UpdateProject:
		return requireProjectRole(req, RoleAdmin)
	case DeleteProject:
		return requireProjectRole(req, RoleOwner)
	case ManageProjectRoster:
		return manageRoster(req)
	case LeaveProject:
		return requireProjectRole(req, RoleMember)
	case CreateTeamProject:
		return requireTeamRole(req, RoleAdmin)
	case CreateTask:
		return requireProjectRole(req, RoleMember)
	case AssignTask:
		return assignTask(req)
	case ViewTask:
		return viewTask(req)
	case UpdateTask:
		return updateTask(req)
	case DeleteTask:
		return deleteTask(req)
	case CommentTask:
		return viewTask(req)
	case DeleteTaskComment:
		return deleteTaskComment(req)

	case CreateTeam, ViewTeam, JoinTeam:
		return allow()
	case UpdateTeam, HandleJoinRequest:
		return requireTeamRole(req, RoleAdmin)
	case AddTeamMember:
		return addTeamMember(req)
	case ChangeMemberRole:
		return changeMemberRole(req)
	case RemoveTeamMember:
		return removeTeamMember(req)
	case DeleteTeam:
		return requireTeamRole(req, RoleOwner)

	case DeletePost:
		if req.Post == nil {
			return deny("post not resolved")
		}
		if req.Post.Author != req.Actor {
			return deny("only the author may delete a post")
		}
		return allow()
	case ViewChat, PostToChat:
		if req.Chat == nil {
			return deny("chat not resolved")
		}
		if !req.Chat.HasParticipant(req.Actor) {
			return deny("not a participant of this chat")
		}
		return allow()
	case ManageChat:
		if req.Chat == nil {
			return deny("chat not resolved")
		}
		if !req.Chat.IsGroup || req.Chat.Admin != req.Actor {
			return deny("only the group admin may manage participants")
		}
		return allow()
	}

	return deny("unknown action %q", req.Action)
}

// Allowed is shorthand for Evaluate(req).Allowed.
func Allowed(req Request) bool {
	return Evaluate(req).Allowed
}

func requireProjectRole(req Request, min Role) Decision {
	if req.Project == nil {
		return deny("project not resolved")
	}
	held := ProjectRoleOf(req.Project, req.Actor)
	if !held.AtLeast(min) {
		return deny("requires project role %s or higher (held: %s)", min, held)
	}
	return allow()
}

func requireTeamRole(req Request, min Role) Decision {
	if req.Team == nil {
		return deny("team not resolved")
	}
	held := TeamRoleOf(req.Team, req.Actor)
	if !held.AtLeast(min) {
		return deny("requires team role %s or higher (held: %s)", min, held)
	}
	return allow()
}

func viewProject(req Request) Decision {
	p := req.Project
	if p == nil {
		return deny("project not resolved")
	}
	if p.CreatedBy == req.Actor || ProjectRoleOf(p, req.Actor) != RoleNone {
		return allow()
	}
	if p.TeamID != "" && req.Team != nil && req.Team.ID == p.TeamID &&
		TeamRoleOf(req.Team, req.Actor) != RoleNone {
		return allow()
	}
	return deny("not a member of this project or its team")
}

func manageRoster(req Request) Decision {
	d := requireProjectRole(req, RoleAdmin)
	if !d.Allowed {
		return d
	}
	held := ProjectRoleOf(req.Project, req.Actor)
	if req.TargetRole == RoleOwner && held != RoleOwner {
		return deny("only a project owner may grant the owner role")
	}
	if req.Target != "" && ProjectRoleOf(req.Project, req.Target) == RoleOwner && held != RoleOwner {
		return deny("only a project owner may change another owner")
	}
	return allow()
}

func assignTask(req Request) Decision {
	held := ProjectRoleOf(req.Project, req.Actor)
	if held.AtLeast(RoleAdmin) {
		return allow()
	}
	if held == RoleMember {
		for _, a := range req.Assignees {
			if a != req.Actor {
				return deny("members may only assign tasks to themselves")
			}
		}
		return allow()
	}
	return deny("requires project role member or higher (held: %s)", held)
}

func viewTask(req Request) Decision {
	if req.Task == nil {
		return deny("task not resolved")
	}
	if req.Task.CreatedBy == req.Actor || req.Task.IsAssigned(req.Actor) {
		return allow()
	}
	return viewProject(req)
}

func updateTask(req Request) Decision {
	if req.Task == nil {
		return deny("task not resolved")
	}
	held := ProjectRoleOf(req.Project, req.Actor)
	if held.AtLeast(RoleAdmin) {
		return allow()
	}
	if !statusOnly(req.Fields) {
		return deny("requires project role admin or higher to edit task fields other than status (held: %s)", held)
	}
	if held == RoleMember || req.Task.IsAssigned(req.Actor) || req.Task.CreatedBy == req.Actor {
		return allow()
	}
	return deny("not a member of this project")
}

func statusOnly(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if f != "status" {
			return false
		}
	}
	return true
}

func deleteTask(req Request) Decision {
	if req.Task == nil {
		return deny("task not resolved")
	}
	if req.Task.CreatedBy == req.Actor {
		return allow()
	}
	held := ProjectRoleOf(req.Project, req.Actor)
	if held.AtLeast(RoleAdmin) {
		return allow()
	}
	return deny("only the task creator or a project admin may delete a task (held: %s)", held)
}

func deleteTaskComment(req Request) Decision {
	if req.CommentAuthor != "" && req.CommentAuthor == req.Actor {
		return allow()
	}
	return requireProjectRole(req, RoleAdmin)
}

func addTeamMember(req Request) Decision {
	d := requireTeamRole(req, RoleAdmin)
	if !d.Allowed {
		return d
	}
	if req.TargetRole.AtLeast(RoleAdmin) && TeamRoleOf(req.Team, req.Actor) != RoleOwner {
		return deny("only the team owner may grant the admin role")
	}
	return allow()
}

func changeMemberRole(req Request) Decision {
	d := requireTeamRole(req, RoleOwner)
	if !d.Allowed {
		return d
	}
	if req.Target == req.Team.Owner {
		return deny("the owner role cannot be changed")
	}
	return allow()
}

func removeTeamMember(req Request) Decision {
	if req.Team == nil {
		return deny("team not resolved")
	}
	if req.Target == req.Team.Owner {
		if req.Actor == req.Team.Owner {
			return allow()
		}
		return deny("the team owner can only leave on their own")
	}
	if req.Target == req.Actor {
		return allow()
	}
	return requireTeamRole(req, RoleAdmin)
}
