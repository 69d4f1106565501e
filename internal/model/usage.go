package model

// UsageRecord is one month of consumption for one email. Rows are created
// lazily on first access within a month, seeded at zero, and kept for
// history after the month ends.
type UsageRecord struct {
	Email        string `db:"email" json:"email"`
	Month        string `db:"month" json:"month"`
	TokensUsed   int    `db:"tokens_used" json:"tokens_used"`
	TTSCharsUsed int    `db:"tts_chars_used" json:"tts_chars_used"`
}

// UsageStatus is a UsageRecord combined with the limits that apply to the
// user this month. Remaining values are clamped to zero, never negative.
type UsageStatus struct {
	Email             string `json:"email"`
	Month             string `json:"month"`
	TokensUsed        int    `json:"tokens_used"`
	TTSCharsUsed      int    `json:"tts_chars_used"`
	TokenLimit        int    `json:"token_limit"`
	TTSCharLimit      int    `json:"tts_char_limit"`
	TokensRemaining   int    `json:"tokens_remaining"`
	TTSCharsRemaining int    `json:"tts_chars_remaining"`
}
