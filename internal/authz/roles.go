package authz

import "kyri56xcaesar/nexushub/internal/domain/models"

// Role is the effective standing of an actor on a team or project.
// Roles are ordered: an Owner satisfies every Admin and Member check.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "none"
	}
}

func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// ParseRole maps the stored role vocabulary onto Role.
func ParseRole(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "admin":
		return RoleAdmin
	case "member":
		return RoleMember
	default:
		return RoleNone
	}
}

// TeamRoleOf resolves the actor's role on a team: the owner field wins,
// then the member entry.
func TeamRoleOf(t *models.Team, actor string) Role {
	if t == nil || actor == "" {
		return RoleNone
	}
	if t.Owner == actor {
		return RoleOwner
	}
	if i := t.MemberIndex(actor); i >= 0 {
		return ParseRole(string(t.Members[i].Role))
	}
	return RoleNone
}

// ProjectRoleOf resolves the actor's role from the project roster only.
// Parent team membership never grants a project role.
func ProjectRoleOf(p *models.Project, actor string) Role {
	if p == nil || actor == "" {
		return RoleNone
	}
	if i := p.MemberIndex(actor); i >= 0 {
		return ParseRole(string(p.Team[i].Role))
	}
	return RoleNone
}
