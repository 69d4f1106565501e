package dto

import "time"

// WhitelistEntryDTO is one whitelist row in admin responses.
type WhitelistEntryDTO struct {
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	TokenLimit *int      `json:"token_limit,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddUserRequest is the admin direct-add body.
type AddUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=user admin"`
}

// EmailRequest carries a single target email (approve, reject, reset).
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SetRoleRequest changes a user's role.
type SetRoleRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=user admin"`
}

// StatusResponse is the generic success/message envelope for admin actions.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
