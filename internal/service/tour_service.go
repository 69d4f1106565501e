package service

import (
	"context"
	"errors"
	"fmt"

	"audiotour/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrQuotaExceeded is returned when the pre-flight check denies a
// generation. The concrete error is a TourQuotaError carrying the usage
// snapshot the decision was based on.
var ErrQuotaExceeded = errors.New("monthly quota exceeded")

// TourQuotaError wraps ErrQuotaExceeded with the status at denial time.
type TourQuotaError struct {
	Status model.UsageStatus
}

func (e *TourQuotaError) Error() string { return ErrQuotaExceeded.Error() }

func (e *TourQuotaError) Unwrap() error { return ErrQuotaExceeded }

// TourService orchestrates tour generation: pre-flight quota checks around
// the text and speech calls, reconciliation of actual consumption, and
// audio persistence.
type TourService interface {
	GenerateTour(ctx context.Context, email string, req model.TourRequest) (*model.Tour, error)
}

type tourService struct {
	generator TourGenerator
	usage     UsageService
	audio     AudioStore
	// maxTokens is the completion ceiling, used as the pre-flight estimate
	// because the true token cost is unknown until the API returns.
	maxTokens int
	logger    zerolog.Logger
}

// NewTourService creates a new TourService.
func NewTourService(generator TourGenerator, usage UsageService, audio AudioStore, maxTokens int, logger zerolog.Logger) TourService {
	return &tourService{
		generator: generator,
		usage:     usage,
		audio:     audio,
		maxTokens: maxTokens,
		logger:    logger.With().Str("service", "TourService").Logger(),
	}
}

// GenerateTour runs the two-phase protocol twice: admit against an estimate,
// spend, then reconcile with the real figure. Text generation is estimated
// at the completion ceiling; synthesis cost is exact (the script length).
func (s *tourService) GenerateTour(ctx context.Context, email string, req model.TourRequest) (*model.Tour, error) {
	// 1. Pre-flight for text generation.
	allowed, status := s.usage.CanConsume(ctx, email, s.maxTokens, 0)
	if !allowed {
		s.logger.Info().Str("email", email).
			Int("tokens_remaining", status.TokensRemaining).
			Msg("Tour generation denied by token quota")
		return nil, &TourQuotaError{Status: status}
	}

	// 2. Generate the narration script.
	prompt := buildTourPrompt(req)
	script, tokensUsed, err := s.generator.GenerateText(ctx, systemMessageForMode(req.Mode), prompt, temperatureForMode(req.Mode))
	if err != nil {
		return nil, fmt.Errorf("generating tour script: %w", err)
	}

	// 3. Reconcile actual token cost. The script already exists, so a
	// bookkeeping failure must not fail the tour.
	if tokensUsed > 0 {
		if err := s.usage.AddUsage(ctx, email, tokensUsed, 0); err != nil {
			s.logger.Warn().Err(err).Str("email", email).Msg("Token usage not recorded")
		}
	}

	tour := &model.Tour{
		Email:      email,
		Script:     script,
		TokensUsed: tokensUsed,
	}

	// 4. Pre-flight for synthesis: the cost equals the script length.
	allowed, status = s.usage.CanConsume(ctx, email, 0, len(script))
	if !allowed {
		s.logger.Info().Str("email", email).
			Int("tts_chars_remaining", status.TTSCharsRemaining).
			Msg("Audio synthesis denied by TTS quota, returning text only")
		tour.AudioSkipped = true
		return tour, nil
	}

	// 5. Synthesize and persist the audio.
	audio, charsUsed, err := s.generator.SynthesizeSpeech(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("synthesizing tour audio: %w", err)
	}
	key := fmt.Sprintf("tours/%s.mp3", uuid.NewString())
	audioURL, err := s.audio.Store(ctx, key, audio)
	if err != nil {
		return nil, fmt.Errorf("storing tour audio: %w", err)
	}
	tour.AudioURL = audioURL

	// 6. Reconcile synthesis cost, again non-fatally.
	if charsUsed > 0 {
		tour.TTSCharsUsed = charsUsed
		if err := s.usage.AddUsage(ctx, email, 0, charsUsed); err != nil {
			s.logger.Warn().Err(err).Str("email", email).Msg("TTS usage not recorded")
		}
	}

	s.logger.Info().Str("email", email).Str("location", req.Location).
		Int("tokens", tokensUsed).Int("tts_chars", charsUsed).
		Msg("Tour generated")
	return tour, nil
}
