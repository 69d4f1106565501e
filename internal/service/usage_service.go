package service

import (
	"context"
	"fmt"
	"time"

	"audiotour/internal/model"
	"audiotour/internal/repository"

	"github.com/rs/zerolog"
)

// QuotaLimits are the process-wide monthly defaults, loaded once at startup.
type QuotaLimits struct {
	TokenLimit   int
	TTSCharLimit int
}

// UsageService enforces monthly per-resource quotas and records actual
// consumption. It is stateless: every decision re-reads current counters.
type UsageService interface {
	// GetStatus returns the month's usage and limits, creating the zeroed
	// record when absent. Read failures fail open (zero usage) so a
	// transient glitch never locks a user out.
	GetStatus(ctx context.Context, email string) model.UsageStatus
	// CanConsume is the pre-flight admission check. Admins are always
	// allowed. The returned status is the one the decision was based on.
	CanConsume(ctx context.Context, email string, tokensNeeded, ttsCharsNeeded int) (bool, model.UsageStatus)
	// AddUsage records actual consumption after the external call
	// completes. Calling twice double-counts; callers call exactly once
	// per consumption event.
	AddUsage(ctx context.Context, email string, tokensUsed, ttsCharsUsed int) error
	// GetAllUsage returns the current month's records for the admin panel.
	GetAllUsage(ctx context.Context) ([]model.UsageRecord, error)
	// UpdateTokenLimit sets a per-user monthly token limit override.
	UpdateTokenLimit(ctx context.Context, email string, limit int) bool
	// ResetUsage zeroes the user's counters for the current month.
	ResetUsage(ctx context.Context, email string) bool
}

type usageService struct {
	repo          repository.UsageRepository
	whitelistRepo repository.WhitelistRepository
	whitelist     WhitelistService
	limits        QuotaLimits
	logger        zerolog.Logger
	// nowFunc is swapped in tests to cross month boundaries.
	nowFunc func() time.Time
}

// NewUsageService creates a new UsageService with the given monthly defaults.
func NewUsageService(
	repo repository.UsageRepository,
	whitelistRepo repository.WhitelistRepository,
	whitelist WhitelistService,
	limits QuotaLimits,
	logger zerolog.Logger,
) UsageService {
	return &usageService{
		repo:          repo,
		whitelistRepo: whitelistRepo,
		whitelist:     whitelist,
		limits:        limits,
		logger:        logger.With().Str("service", "UsageService").Logger(),
		nowFunc:       time.Now,
	}
}

// currentMonth is the calendar-month key in UTC, e.g. "2026-08".
func (s *usageService) currentMonth() string {
	return s.nowFunc().UTC().Format("2006-01")
}

// tokenLimit resolves the token limit for the email: the per-user override
// when one is stored, the global default otherwise. Lookup failures fall
// back to the default.
func (s *usageService) tokenLimit(ctx context.Context, email string) int {
	entry, err := s.whitelistRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("Token limit lookup failed, using default")
		return s.limits.TokenLimit
	}
	if entry != nil && entry.TokenLimit != nil {
		return *entry.TokenLimit
	}
	return s.limits.TokenLimit
}

func (s *usageService) GetStatus(ctx context.Context, email string) model.UsageStatus {
	month := s.currentMonth()
	tokenLimit := s.tokenLimit(ctx, email)

	rec, err := s.repo.EnsureRecord(ctx, email, month)
	if err != nil {
		// Fail open: a read glitch must not lock the user out.
		s.logger.Error().Err(err).Str("email", email).Msg("Usage read failed, assuming zero usage")
		rec = &model.UsageRecord{Email: email, Month: month}
	}

	return model.UsageStatus{
		Email:             email,
		Month:             month,
		TokensUsed:        rec.TokensUsed,
		TTSCharsUsed:      rec.TTSCharsUsed,
		TokenLimit:        tokenLimit,
		TTSCharLimit:      s.limits.TTSCharLimit,
		TokensRemaining:   clampNonNegative(tokenLimit - rec.TokensUsed),
		TTSCharsRemaining: clampNonNegative(s.limits.TTSCharLimit - rec.TTSCharsUsed),
	}
}

func (s *usageService) CanConsume(ctx context.Context, email string, tokensNeeded, ttsCharsNeeded int) (bool, model.UsageStatus) {
	status := s.GetStatus(ctx, email)
	if s.whitelist.IsAdmin(ctx, email) {
		// Admins are observed, not limited.
		return true, status
	}
	allowed := status.TokensRemaining >= tokensNeeded && status.TTSCharsRemaining >= ttsCharsNeeded
	return allowed, status
}

func (s *usageService) AddUsage(ctx context.Context, email string, tokensUsed, ttsCharsUsed int) error {
	if tokensUsed == 0 && ttsCharsUsed == 0 {
		return nil
	}
	month := s.currentMonth()
	if err := s.repo.AddUsage(ctx, email, month, tokensUsed, ttsCharsUsed); err != nil {
		s.logger.Error().Err(err).Str("email", email).
			Int("tokens", tokensUsed).Int("tts_chars", ttsCharsUsed).
			Msg("Failed to record usage")
		return fmt.Errorf("recording usage for %s: %w", email, err)
	}
	return nil
}

func (s *usageService) GetAllUsage(ctx context.Context) ([]model.UsageRecord, error) {
	records, err := s.repo.ListByMonth(ctx, s.currentMonth())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list usage records")
		return nil, err
	}
	return records, nil
}

func (s *usageService) UpdateTokenLimit(ctx context.Context, email string, limit int) bool {
	if limit < 0 {
		return false
	}
	ok, err := s.whitelistRepo.SetTokenLimit(ctx, email, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to update token limit")
		return false
	}
	if ok {
		s.logger.Info().Str("email", email).Int("token_limit", limit).Msg("Token limit updated")
	}
	return ok
}

func (s *usageService) ResetUsage(ctx context.Context, email string) bool {
	if err := s.repo.Reset(ctx, email, s.currentMonth()); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to reset usage")
		return false
	}
	s.logger.Info().Str("email", email).Msg("Usage reset")
	return true
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
