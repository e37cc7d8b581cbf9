package models

import "time"

// UsageRecord holds the per-chat counters and timestamps.
type UsageRecord struct {
	FirstUse    *time.Time `json:"first_use,omitempty"`
	LastRequest *time.Time `json:"last_request,omitempty"`
	Sessions    int        `json:"sessions"`
	Processed   int        `json:"processed"`
}

// Counter names accepted by UsageStats.IncrementCounter.
const (
	CounterSessions  = "sessions"
	CounterProcessed = "processed"
)

// UserSummary is the admin view of one known chat.
type UserSummary struct {
	ChatID   int64       `json:"chat_id"`
	Approved bool        `json:"approved"`
	Usage    UsageRecord `json:"usage"`
}
