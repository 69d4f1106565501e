package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"audiotour/internal/model"

	"github.com/rs/zerolog"
)

const (
	testTokenLimit   = 10000
	testTTSCharLimit = 100000
)

func newTestUsageService(t *testing.T, usageRepo *fakeUsageRepo, whitelistRepo *fakeWhitelistRepo) *usageService {
	t.Helper()
	whitelist := NewWhitelistService(whitelistRepo, nil, "access-requests", zerolog.Nop())
	svc := NewUsageService(usageRepo, whitelistRepo, whitelist, QuotaLimits{
		TokenLimit:   testTokenLimit,
		TTSCharLimit: testTTSCharLimit,
	}, zerolog.Nop())
	return svc.(*usageService)
}

func activeUser(repo *fakeWhitelistRepo, email, role string) {
	repo.entries[email] = &model.WhitelistEntry{Email: email, Role: role, IsActive: true}
}

func TestGetStatusCreatesZeroedRecord(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)

	status := svc.GetStatus(context.Background(), "user@example.com")
	if status.TokensUsed != 0 || status.TTSCharsUsed != 0 {
		t.Errorf("expected zero usage on fresh month, got %+v", status)
	}
	if status.TokensRemaining != testTokenLimit {
		t.Errorf("expected %d tokens remaining, got %d", testTokenLimit, status.TokensRemaining)
	}
	if status.TTSCharsRemaining != testTTSCharLimit {
		t.Errorf("expected %d tts chars remaining, got %d", testTTSCharLimit, status.TTSCharsRemaining)
	}
	if len(usageRepo.records) != 1 {
		t.Errorf("expected lazily created record, got %d records", len(usageRepo.records))
	}
}

func TestAddUsageReflectsInStatus(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	if err := svc.AddUsage(ctx, "user@example.com", 500, 0); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	status := svc.GetStatus(ctx, "user@example.com")
	if status.TokensUsed != 500 {
		t.Errorf("expected 500 tokens used, got %d", status.TokensUsed)
	}
	if status.TokensRemaining != testTokenLimit-500 {
		t.Errorf("expected %d tokens remaining, got %d", testTokenLimit-500, status.TokensRemaining)
	}
}

func TestCanConsumeBoundaries(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	limit := 1000
	whitelistRepo.entries["user@example.com"].TokenLimit = &limit
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	if err := svc.AddUsage(ctx, "user@example.com", 900, 0); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	allowed, status := svc.CanConsume(ctx, "user@example.com", 150, 0)
	if allowed {
		t.Error("expected request above remaining quota to be denied")
	}
	if status.TokensRemaining != 100 {
		t.Errorf("expected 100 tokens remaining in denial status, got %d", status.TokensRemaining)
	}

	allowed, _ = svc.CanConsume(ctx, "user@example.com", 50, 0)
	if !allowed {
		t.Error("expected request within remaining quota to be allowed")
	}

	// Exactly the remaining amount is allowed.
	allowed, _ = svc.CanConsume(ctx, "user@example.com", 100, 0)
	if !allowed {
		t.Error("expected request equal to remaining quota to be allowed")
	}
}

func TestCanConsumeChecksBothResources(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	if err := svc.AddUsage(ctx, "user@example.com", 0, testTTSCharLimit); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	allowed, _ := svc.CanConsume(ctx, "user@example.com", 10, 1)
	if allowed {
		t.Error("expected denial when the tts budget is exhausted even with tokens left")
	}
	allowed, _ = svc.CanConsume(ctx, "user@example.com", 10, 0)
	if !allowed {
		t.Error("expected approval when only tokens are requested")
	}
}

func TestRemainingClampedToZero(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	// Overdraft can happen when the optimistic estimate undershot.
	if err := svc.AddUsage(ctx, "user@example.com", testTokenLimit+999, 0); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	status := svc.GetStatus(ctx, "user@example.com")
	if status.TokensRemaining != 0 {
		t.Errorf("expected remaining clamped to 0, got %d", status.TokensRemaining)
	}
}

func TestAdminBypassesQuota(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "admin@example.com", model.RoleAdmin)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	if err := svc.AddUsage(ctx, "admin@example.com", testTokenLimit*10, testTTSCharLimit*10); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	allowed, status := svc.CanConsume(ctx, "admin@example.com", testTokenLimit, testTTSCharLimit)
	if !allowed {
		t.Error("expected admin to bypass quota regardless of usage")
	}
	// Usage is still observed.
	if status.TokensUsed != testTokenLimit*10 {
		t.Errorf("expected admin usage to be recorded, got %d", status.TokensUsed)
	}
}

func TestMonthlyIsolation(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	january := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	february := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	svc.nowFunc = func() time.Time { return january }
	if err := svc.AddUsage(ctx, "user@example.com", 5000, 0); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}
	if status := svc.GetStatus(ctx, "user@example.com"); status.TokensUsed != 5000 {
		t.Fatalf("expected 5000 tokens used in January, got %d", status.TokensUsed)
	}

	svc.nowFunc = func() time.Time { return february }
	status := svc.GetStatus(ctx, "user@example.com")
	if status.Month != "2026-02" {
		t.Errorf("expected month key 2026-02, got %q", status.Month)
	}
	if status.TokensUsed != 0 {
		t.Errorf("expected fresh month to start at zero, got %d", status.TokensUsed)
	}
}

func TestGetStatusFailsOpenOnReadError(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	usageRepo.failWith = errors.New("connection refused")
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)

	status := svc.GetStatus(context.Background(), "user@example.com")
	if status.TokensUsed != 0 || status.TokensRemaining != testTokenLimit {
		t.Errorf("expected fail-open zero-usage status, got %+v", status)
	}

	allowed, _ := svc.CanConsume(context.Background(), "user@example.com", 100, 100)
	if !allowed {
		t.Error("expected fail-open read path not to lock the user out")
	}
}

func TestAddUsageSurfacesWriteFailure(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	usageRepo.failWrites = errors.New("write timeout")
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)

	if err := svc.AddUsage(context.Background(), "user@example.com", 100, 0); err == nil {
		t.Error("expected write failure to be surfaced to the caller")
	}
}

func TestPerUserTokenLimitOverride(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	if !svc.UpdateTokenLimit(ctx, "user@example.com", 500) {
		t.Fatal("expected token limit update to succeed")
	}

	status := svc.GetStatus(ctx, "user@example.com")
	if status.TokenLimit != 500 {
		t.Errorf("expected override limit 500, got %d", status.TokenLimit)
	}
	// The TTS limit stays global.
	if status.TTSCharLimit != testTTSCharLimit {
		t.Errorf("expected global tts limit, got %d", status.TTSCharLimit)
	}

	if svc.UpdateTokenLimit(ctx, "ghost@example.com", 500) {
		t.Error("expected update for unknown email to fail")
	}
	if svc.UpdateTokenLimit(ctx, "user@example.com", -1) {
		t.Error("expected negative limit to be rejected")
	}
}

func TestResetUsage(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "user@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	if err := svc.AddUsage(ctx, "user@example.com", 1234, 5678); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}
	if !svc.ResetUsage(ctx, "user@example.com") {
		t.Fatal("expected reset to succeed")
	}

	status := svc.GetStatus(ctx, "user@example.com")
	if status.TokensUsed != 0 || status.TTSCharsUsed != 0 {
		t.Errorf("expected zeroed counters after reset, got %+v", status)
	}
}

func TestGetAllUsageReturnsCurrentMonth(t *testing.T) {
	usageRepo := newFakeUsageRepo()
	whitelistRepo := newFakeWhitelistRepo()
	activeUser(whitelistRepo, "a@example.com", model.RoleUser)
	activeUser(whitelistRepo, "b@example.com", model.RoleUser)
	svc := newTestUsageService(t, usageRepo, whitelistRepo)
	ctx := context.Background()

	if err := svc.AddUsage(ctx, "a@example.com", 10, 0); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}
	if err := svc.AddUsage(ctx, "b@example.com", 20, 0); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	records, err := svc.GetAllUsage(ctx)
	if err != nil {
		t.Fatalf("GetAllUsage failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 usage records, got %d", len(records))
	}
}
