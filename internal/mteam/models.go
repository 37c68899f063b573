package mteam

type CreateTeamRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=64"`
	Description string   `json:"description" binding:"max=500"`
	IsPublic    *bool    `json:"isPublic"`
	Tags        []string `json:"tags"`
}

type UpdateTeamRequest struct {
	Name        *string   `json:"name" binding:"omitempty,min=2,max=64"`
	Description *string   `json:"description" binding:"omitempty,max=500"`
	IsPublic    *bool     `json:"isPublic"`
	Tags        *[]string `json:"tags"`
}

// AddTeamMemberRequest identifies the user by id or username.
type AddTeamMemberRequest struct {
	User string `json:"user" binding:"required"`
	Role string `json:"role" binding:"omitempty,oneof=admin member"` // default member
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin member"`
}

type JoinTeamRequest struct {
	Message string `json:"message" binding:"max=500"`
}

type HandleJoinRequest struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
}

// ListQuery selects which teams List returns.
type ListQuery struct {
	Scope string // "mine" (default) or "public"
	Name  string
	Limit int
}
