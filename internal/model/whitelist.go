package model

import "time"

// Roles a whitelist entry can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// WhitelistEntry is one row of the access whitelist. An entry with
// IsActive=false is a pending access request awaiting admin approval.
type WhitelistEntry struct {
	Email      string    `db:"email" json:"email"`
	Role       string    `db:"role" json:"role"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	TokenLimit *int      `db:"token_limit" json:"token_limit,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// WhitelistStatus is the answer to "may this email use the system?".
// The zero value is the fail-closed default: unknown, inactive, plain user.
type WhitelistStatus struct {
	Exists   bool   `json:"exists"`
	IsActive bool   `json:"is_active"`
	Role     string `json:"role"`
}

// Access request outcomes.
const (
	AccessStatusPending = "pending"
	AccessStatusActive  = "active"
	AccessStatusError   = "error"
)

// AccessRequestResult reports what happened to a request_access call.
type AccessRequestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
