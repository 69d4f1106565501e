package service

import (
	"context"
	"fmt"
	"time"

	"audiotour/internal/model"
	"audiotour/internal/repository"
)

// fakeWhitelistRepo is an in-memory WhitelistRepository. Setting failWith
// makes every call return that error, for fail-closed/fail-open tests.
type fakeWhitelistRepo struct {
	entries  map[string]*model.WhitelistEntry
	failWith error
}

func newFakeWhitelistRepo() *fakeWhitelistRepo {
	return &fakeWhitelistRepo{entries: make(map[string]*model.WhitelistEntry)}
}

func (f *fakeWhitelistRepo) GetByEmail(_ context.Context, email string) (*model.WhitelistEntry, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	e, ok := f.entries[email]
	if !ok {
		return nil, nil
	}
	copy := *e
	return &copy, nil
}

func (f *fakeWhitelistRepo) Insert(_ context.Context, entry *model.WhitelistEntry) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.entries[entry.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	entry.CreatedAt = time.Now().UTC()
	stored := *entry
	f.entries[entry.Email] = &stored
	return nil
}

func (f *fakeWhitelistRepo) SetActive(_ context.Context, email string, active bool) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	e, ok := f.entries[email]
	if !ok {
		return false, nil
	}
	e.IsActive = active
	return true, nil
}

func (f *fakeWhitelistRepo) SetRole(_ context.Context, email, role string) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	e, ok := f.entries[email]
	if !ok {
		return false, nil
	}
	e.Role = role
	return true, nil
}

func (f *fakeWhitelistRepo) SetTokenLimit(_ context.Context, email string, limit int) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	e, ok := f.entries[email]
	if !ok {
		return false, nil
	}
	l := limit
	e.TokenLimit = &l
	return true, nil
}

func (f *fakeWhitelistRepo) Delete(_ context.Context, email string) error {
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.entries, email)
	return nil
}

func (f *fakeWhitelistRepo) ListAll(_ context.Context) ([]model.WhitelistEntry, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.WhitelistEntry
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeWhitelistRepo) ListPending(_ context.Context) ([]model.WhitelistEntry, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.WhitelistEntry
	for _, e := range f.entries {
		if !e.IsActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

// fakeUsageRepo is an in-memory UsageRepository.
type fakeUsageRepo struct {
	records  map[string]*model.UsageRecord
	failWith error
	// failWrites makes only AddUsage fail, to exercise the non-fatal
	// write-path behavior separately from the fail-open read path.
	failWrites error
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{records: make(map[string]*model.UsageRecord)}
}

func usageKey(email, month string) string {
	return fmt.Sprintf("%s|%s", email, month)
}

func (f *fakeUsageRepo) EnsureRecord(_ context.Context, email, month string) (*model.UsageRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	key := usageKey(email, month)
	rec, ok := f.records[key]
	if !ok {
		rec = &model.UsageRecord{Email: email, Month: month}
		f.records[key] = rec
	}
	copy := *rec
	return &copy, nil
}

func (f *fakeUsageRepo) GetRecord(_ context.Context, email, month string) (*model.UsageRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	rec, ok := f.records[usageKey(email, month)]
	if !ok {
		return nil, nil
	}
	copy := *rec
	return &copy, nil
}

func (f *fakeUsageRepo) AddUsage(_ context.Context, email, month string, tokens, ttsChars int) error {
	if f.failWith != nil {
		return f.failWith
	}
	if f.failWrites != nil {
		return f.failWrites
	}
	key := usageKey(email, month)
	rec, ok := f.records[key]
	if !ok {
		rec = &model.UsageRecord{Email: email, Month: month}
		f.records[key] = rec
	}
	rec.TokensUsed += tokens
	rec.TTSCharsUsed += ttsChars
	return nil
}

func (f *fakeUsageRepo) ListByMonth(_ context.Context, month string) ([]model.UsageRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.UsageRecord
	for _, rec := range f.records {
		if rec.Month == month {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeUsageRepo) Reset(_ context.Context, email, month string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if rec, ok := f.records[usageKey(email, month)]; ok {
		rec.TokensUsed = 0
		rec.TTSCharsUsed = 0
	}
	return nil
}

// fakePublisher records published messages.
type fakePublisher struct {
	topics   []string
	payloads [][]byte
	failWith error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return fmt.Sprintf("msg-%d", len(f.topics)), nil
}
