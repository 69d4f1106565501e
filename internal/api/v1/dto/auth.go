package dto

// LoginRequest carries the email a visitor wants to log in with. Email
// syntax is validated by the access controller so a malformed address gets
// a proper outcome instead of a bare 400.
type LoginRequest struct {
	Email string `json:"email" validate:"required"`
}

// LoginResponse reports the login outcome. Token is only set when admitted.
type LoginResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}
