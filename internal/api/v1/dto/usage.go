package dto

// UsageStatusDTO is the month's consumption and limits for one user.
type UsageStatusDTO struct {
	Email             string `json:"email"`
	Month             string `json:"month"`
	TokensUsed        int    `json:"tokens_used"`
	TTSCharsUsed      int    `json:"tts_chars_used"`
	TokenLimit        int    `json:"token_limit"`
	TTSCharLimit      int    `json:"tts_char_limit"`
	TokensRemaining   int    `json:"tokens_remaining"`
	TTSCharsRemaining int    `json:"tts_chars_remaining"`
}

// UsageRecordDTO is one row of the admin usage overview.
type UsageRecordDTO struct {
	Email        string `json:"email"`
	Month        string `json:"month"`
	TokensUsed   int    `json:"tokens_used"`
	TTSCharsUsed int    `json:"tts_chars_used"`
}

// UpdateLimitRequest sets a per-user monthly token limit override.
type UpdateLimitRequest struct {
	Email      string `json:"email" validate:"required,email"`
	TokenLimit int    `json:"token_limit" validate:"gte=0"`
}
