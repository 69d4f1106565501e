package service

import (
	"context"
	"regexp"

	"audiotour/internal/model"
	"audiotour/internal/session"

	"github.com/rs/zerolog"
)

// LoginOutcome classifies what happened to a login attempt.
type LoginOutcome string

const (
	// LoginAdmitted means the email is active and the session was set.
	LoginAdmitted LoginOutcome = "admitted"
	// LoginPending means the email has an unapproved access request.
	LoginPending LoginOutcome = "pending"
	// LoginInvalidFormat means the email failed syntax validation; no
	// storage call was made.
	LoginInvalidFormat LoginOutcome = "invalid_format"
	// LoginRequestCreated means the email was unknown and a fresh access
	// request was filed.
	LoginRequestCreated LoginOutcome = "request_created"
)

// LoginResult is the full answer to an AttemptLogin call.
type LoginResult struct {
	Outcome LoginOutcome `json:"outcome"`
	Message string       `json:"message"`
	IsAdmin bool         `json:"is_admin"`
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// AuthService bridges session state to the whitelist. It holds no business
// logic beyond orchestration: the whitelist decides, the session records.
type AuthService interface {
	// AttemptLogin validates the email, checks the whitelist, and on
	// admission marks the session authenticated.
	AttemptLogin(ctx context.Context, sess *session.Session, email string) LoginResult
	// Logout clears the session's identity markers.
	Logout(sess *session.Session)
}

type authService struct {
	whitelist WhitelistService
	logger    zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(whitelist WhitelistService, logger zerolog.Logger) AuthService {
	return &authService{
		whitelist: whitelist,
		logger:    logger.With().Str("service", "AuthService").Logger(),
	}
}

func (s *authService) AttemptLogin(ctx context.Context, sess *session.Session, email string) LoginResult {
	if !emailPattern.MatchString(email) {
		return LoginResult{
			Outcome: LoginInvalidFormat,
			Message: "Please enter a valid email address.",
		}
	}

	status := s.whitelist.CheckStatus(ctx, email)
	switch {
	case status.Exists && status.IsActive:
		isAdmin := status.Role == model.RoleAdmin
		sess.Set(email, isAdmin)
		s.logger.Info().Str("email", email).Bool("is_admin", isAdmin).Msg("User logged in")
		return LoginResult{
			Outcome: LoginAdmitted,
			Message: "Welcome back.",
			IsAdmin: isAdmin,
		}
	case status.Exists:
		return LoginResult{
			Outcome: LoginPending,
			Message: "Your account is pending approval. You will be notified once approved.",
		}
	default:
		result := s.whitelist.RequestAccess(ctx, email)
		return LoginResult{
			Outcome: LoginRequestCreated,
			Message: result.Message,
		}
	}
}

func (s *authService) Logout(sess *session.Session) {
	if sess == nil {
		return
	}
	s.logger.Info().Str("email", sess.UserEmail).Msg("User logged out")
	sess.Clear()
}
