package services

import (
	"context"
	"errors"

	"video_uniquifier_bot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore keeps documents in the bot_records table.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a Store on top of an opened and migrated gorm handle
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec models.Record
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// Put upserts the row for key in a single statement
func (s *DBStore) Put(ctx context.Context, key string, value []byte) error {
	rec := models.Record{Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

func (s *DBStore) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Record{}).Where("key = ?", key).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
