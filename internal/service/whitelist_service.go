package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"audiotour/internal/model"
	"audiotour/internal/pubsub"
	"audiotour/internal/repository"

	"github.com/rs/zerolog"
)

// WhitelistService is the single source of truth for who may use the system
// and with what role. Lookup methods never surface storage errors; they fall
// back to the not-admitted default so an outage can never grant access.
type WhitelistService interface {
	CheckStatus(ctx context.Context, email string) model.WhitelistStatus
	RequestAccess(ctx context.Context, email string) model.AccessRequestResult
	Approve(ctx context.Context, email string) bool
	Reject(ctx context.Context, email string) bool
	Remove(ctx context.Context, email string) bool
	IsAdmin(ctx context.Context, email string) bool
	ListAll(ctx context.Context) ([]model.WhitelistEntry, error)
	ListPending(ctx context.Context) ([]model.WhitelistEntry, error)
	SetRole(ctx context.Context, email, role string) bool
	AddToWhitelist(ctx context.Context, email, role string) bool
}

type whitelistService struct {
	repo      repository.WhitelistRepository
	publisher pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewWhitelistService creates a new WhitelistService. publisher may be nil
// when admin notifications are disabled.
func NewWhitelistService(repo repository.WhitelistRepository, publisher pubsub.Publisher, topic string, logger zerolog.Logger) WhitelistService {
	return &whitelistService{
		repo:      repo,
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("service", "WhitelistService").Logger(),
	}
}

// CheckStatus reports whether the email exists, is active, and its role.
// Any lookup error yields the fail-closed zero status.
func (s *whitelistService) CheckStatus(ctx context.Context, email string) model.WhitelistStatus {
	entry, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Whitelist lookup failed, treating as not admitted")
		return model.WhitelistStatus{Exists: false, IsActive: false, Role: model.RoleUser}
	}
	if entry == nil {
		return model.WhitelistStatus{Exists: false, IsActive: false, Role: model.RoleUser}
	}
	return model.WhitelistStatus{Exists: true, IsActive: entry.IsActive, Role: entry.Role}
}

// RequestAccess creates a pending entry for a new email, or reports the
// current state when the email is already known. A lost insert race counts
// as "already pending".
func (s *whitelistService) RequestAccess(ctx context.Context, email string) model.AccessRequestResult {
	entry, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Access request lookup failed")
		return model.AccessRequestResult{
			Success: false,
			Message: "Could not process your request. Please try again.",
			Status:  model.AccessStatusError,
		}
	}
	if entry != nil {
		if entry.IsActive {
			return model.AccessRequestResult{
				Success: true,
				Message: "Your account is already active.",
				Status:  model.AccessStatusActive,
			}
		}
		return model.AccessRequestResult{
			Success: true,
			Message: "Your request is already pending approval.",
			Status:  model.AccessStatusPending,
		}
	}

	newEntry := &model.WhitelistEntry{Email: email, Role: model.RoleUser, IsActive: false}
	if err := s.repo.Insert(ctx, newEntry); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// A concurrent request won the insert race.
			return model.AccessRequestResult{
				Success: true,
				Message: "Your request is already pending approval.",
				Status:  model.AccessStatusPending,
			}
		}
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to create access request")
		return model.AccessRequestResult{
			Success: false,
			Message: "Could not create your access request. Please try again.",
			Status:  model.AccessStatusError,
		}
	}

	s.logger.Info().Str("email", email).Msg("Access request created")
	s.notifyAccessRequested(ctx, email)
	return model.AccessRequestResult{
		Success: true,
		Message: "Access request created. You will be notified once approved.",
		Status:  model.AccessStatusPending,
	}
}

// notifyAccessRequested publishes an admin notification. Best-effort: a
// publish failure never fails the request itself.
func (s *whitelistService) notifyAccessRequested(ctx context.Context, email string) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"event":        "access_requested",
		"email":        email,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal access request event")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("Failed to publish access request event")
	}
}

// Approve activates a pending entry. Approving an already-active entry is a
// no-op success; approving an unknown email fails.
func (s *whitelistService) Approve(ctx context.Context, email string) bool {
	entry, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Approve lookup failed")
		return false
	}
	if entry == nil {
		return false
	}
	if entry.IsActive {
		return true
	}
	ok, err := s.repo.SetActive(ctx, email, true)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to approve user")
		return false
	}
	if ok {
		s.logger.Info().Str("email", email).Msg("User approved")
	}
	return ok
}

// Reject deletes the entry. Idempotent.
func (s *whitelistService) Reject(ctx context.Context, email string) bool {
	return s.Remove(ctx, email)
}

// Remove deletes the entry unconditionally. Removing an unknown email
// succeeds.
func (s *whitelistService) Remove(ctx context.Context, email string) bool {
	if err := s.repo.Delete(ctx, email); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to remove whitelist entry")
		return false
	}
	s.logger.Info().Str("email", email).Msg("Whitelist entry removed")
	return true
}

// IsAdmin reports whether the email holds the admin role. Fail-closed.
func (s *whitelistService) IsAdmin(ctx context.Context, email string) bool {
	entry, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Admin check failed, treating as non-admin")
		return false
	}
	return entry != nil && entry.Role == model.RoleAdmin
}

func (s *whitelistService) ListAll(ctx context.Context) ([]model.WhitelistEntry, error) {
	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list whitelist entries")
		return nil, err
	}
	return entries, nil
}

func (s *whitelistService) ListPending(ctx context.Context) ([]model.WhitelistEntry, error) {
	entries, err := s.repo.ListPending(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list pending requests")
		return nil, err
	}
	return entries, nil
}

func (s *whitelistService) SetRole(ctx context.Context, email, role string) bool {
	if role != model.RoleUser && role != model.RoleAdmin {
		return false
	}
	ok, err := s.repo.SetRole(ctx, email, role)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Str("role", role).Msg("Failed to set role")
		return false
	}
	return ok
}

// AddToWhitelist is the admin direct-add: the entry is active immediately.
// Adding an email that already exists fails rather than overwriting it.
func (s *whitelistService) AddToWhitelist(ctx context.Context, email, role string) bool {
	if role != model.RoleUser && role != model.RoleAdmin {
		return false
	}
	entry := &model.WhitelistEntry{Email: email, Role: role, IsActive: true}
	if err := s.repo.Insert(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.logger.Warn().Str("email", email).Msg("Email already in whitelist")
			return false
		}
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to add email to whitelist")
		return false
	}
	s.logger.Info().Str("email", email).Str("role", role).Msg("Email added to whitelist")
	return true
}
