package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/models"

	"github.com/jonboulle/clockwork"
)

const statsKey = "stats"

// UsageService keeps every chat's UsageRecord in one stats document keyed by
// the decimal chat id.
type UsageService struct {
	store    Store
	clock    clockwork.Clock
	cooldown time.Duration
	mu       sync.Mutex
}

func NewUsageService(store Store, clock clockwork.Clock, cooldown time.Duration) *UsageService {
	return &UsageService{store: store, clock: clock, cooldown: cooldown}
}

func (s *UsageService) load(ctx context.Context) (map[string]models.UsageRecord, error) {
	doc := make(map[string]models.UsageRecord)
	data, err := s.store.Get(ctx, statsKey)
	if errors.Is(err, ErrNotFound) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return doc, nil
}

func (s *UsageService) save(ctx context.Context, doc map[string]models.UsageRecord) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, statsKey, data); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// RecordRequestAttempt returns false, leaving last_request untouched, when the
// previous attempt is younger than the cooldown. Otherwise it stamps
// last_request with the current time and returns true.
func (s *UsageService) RecordRequestAttempt(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	now := s.clock.Now().UTC()
	id := strconv.FormatInt(chatID, 10)
	rec := doc[id]
	if rec.LastRequest != nil && now.Sub(*rec.LastRequest) < s.cooldown {
		return false, nil
	}
	rec.LastRequest = &now
	doc[id] = rec
	if err := s.save(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

// IncrementCounter adds delta to a counter, creating the record and its
// first_use stamp on first use. A zero delta only ensures the record exists.
func (s *UsageService) IncrementCounter(ctx context.Context, chatID int64, key string, delta int) error {
	if key != models.CounterSessions && key != models.CounterProcessed {
		return apperrors.NewValidationError(fmt.Sprintf("unknown counter %q", key))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	id := strconv.FormatInt(chatID, 10)
	rec := doc[id]
	switch key {
	case models.CounterSessions:
		rec.Sessions += delta
	case models.CounterProcessed:
		rec.Processed += delta
	}
	if rec.FirstUse == nil {
		now := s.clock.Now().UTC()
		rec.FirstUse = &now
	}
	doc[id] = rec
	return s.save(ctx, doc)
}

func (s *UsageService) Read(ctx context.Context, chatID int64) (models.UsageRecord, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return models.UsageRecord{}, err
	}
	return doc[strconv.FormatInt(chatID, 10)], nil
}

// All returns every known chat's record. Keys that are not numeric are skipped.
func (s *UsageService) All(ctx context.Context) (map[int64]models.UsageRecord, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.UsageRecord, len(doc))
	for k, v := range doc {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}
