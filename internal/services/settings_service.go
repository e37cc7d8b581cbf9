package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"video_uniquifier_bot/internal/models"
)

// SettingsService is the SettingsRepository over a Store. Callers serialise
// access per chat; see Dispatcher.
type SettingsService struct {
	store Store
}

func NewSettingsService(store Store) *SettingsService {
	return &SettingsService{store: store}
}

func settingsKey(chatID int64) string {
	return fmt.Sprintf("settings/%d", chatID)
}

// Load returns the stored settings merged over the defaults. A chat without a
// document gets the defaults.
func (s *SettingsService) Load(ctx context.Context, chatID int64) (models.ChatSettings, error) {
	data, err := s.store.Get(ctx, settingsKey(chatID))
	if errors.Is(err, ErrNotFound) {
		return models.DefaultChatSettings(), nil
	}
	if err != nil {
		return models.ChatSettings{}, fmt.Errorf("load settings for %d: %w", chatID, err)
	}
	return models.DecodeChatSettings(data)
}

func (s *SettingsService) Save(ctx context.Context, chatID int64, settings models.ChatSettings) error {
	data, err := json.MarshalIndent(settings.Clamp(), "", "  ")
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, settingsKey(chatID), data); err != nil {
		return fmt.Errorf("save settings for %d: %w", chatID, err)
	}
	return nil
}

// Mutate loads, applies fn, clamps and saves. The returned value is what was
// persisted.
func (s *SettingsService) Mutate(ctx context.Context, chatID int64, fn func(*models.ChatSettings)) (models.ChatSettings, error) {
	settings, err := s.Load(ctx, chatID)
	if err != nil {
		return models.ChatSettings{}, err
	}
	fn(&settings)
	settings = settings.Clamp()
	if err := s.Save(ctx, chatID, settings); err != nil {
		return models.ChatSettings{}, err
	}
	return settings, nil
}
