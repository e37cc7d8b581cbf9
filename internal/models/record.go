package models

import "time"

// Record is one key/document row of the SQL-backed store.
type Record struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "bot_records"
}
