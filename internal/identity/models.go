package identity

import "time"

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"fullName" binding:"max=100"`
}

// LoginRequest accepts either a username or an email as Identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type UpdateProfileRequest struct {
	FullName *string   `json:"fullName" binding:"omitempty,max=100"`
	Bio      *string   `json:"bio" binding:"omitempty,max=500"`
	Avatar   *string   `json:"avatar" binding:"omitempty,max=500"`
	Location *string   `json:"location" binding:"omitempty,max=100"`
	Skills   *[]string `json:"skills"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=72"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

// PublicProfile is what other users may see.
type PublicProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Location  string    `json:"location,omitempty"`
	Skills    []string  `json:"skills,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
