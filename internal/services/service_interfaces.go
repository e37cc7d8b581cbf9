package services

import (
	"context"
	"io"
	"time"

	"video_uniquifier_bot/internal/models"
)

// Store is the key/document durable store behind every persisted record.
// Get returns ErrNotFound for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

type AccessRegistry interface {
	IsApproved(ctx context.Context, chatID int64) (bool, error)
	Approve(ctx context.Context, chatID int64) error
	Revoke(ctx context.Context, chatID int64) error
	List(ctx context.Context) ([]int64, error)
}

type UsageTracker interface {
	RecordRequestAttempt(ctx context.Context, chatID int64) (bool, error)
	IncrementCounter(ctx context.Context, chatID int64, key string, delta int) error
	Read(ctx context.Context, chatID int64) (models.UsageRecord, error)
	All(ctx context.Context) (map[int64]models.UsageRecord, error)
}

type SettingsRepository interface {
	Load(ctx context.Context, chatID int64) (models.ChatSettings, error)
	Save(ctx context.Context, chatID int64, settings models.ChatSettings) error
	Mutate(ctx context.Context, chatID int64, fn func(*models.ChatSettings)) (models.ChatSettings, error)
}

// GenerationClient talks to the remote text-to-image service.
type GenerationClient interface {
	DiscoverPipeline(ctx context.Context) (string, error)
	Submit(ctx context.Context, prompt, pipelineID string, count, width, height int) (string, error)
	Poll(ctx context.Context, jobUUID string, maxAttempts int, delay time.Duration) ([]string, error)
	DecodeResult(ctx context.Context, item string) ([]byte, error)
}

// ImageGenerator runs a whole generation request, reporting each item as it
// completes.
type ImageGenerator interface {
	Generate(ctx context.Context, chatID int64, prompt string, count int, onItem func(GenerationItem)) ([]string, error)
}

type PromptRefiner interface {
	Refine(ctx context.Context, prompt string) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, req CompositionRequest, outputPath string) error
}

// DurationProber returns the media duration in seconds, or 0 when it cannot
// be determined.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) float64
}

type ArtifactArchive interface {
	UploadFile(ctx context.Context, objectName string, content io.Reader) error
}

// Messenger is the outbound side of a chat transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error
	SendDocument(ctx context.Context, chatID int64, path string) error
	SendSticker(ctx context.Context, chatID int64, stickerID string) error
	AnswerCallback(ctx context.Context, callbackID string) error
	DownloadFile(ctx context.Context, file FileRef, dst string) error
	ChatName(ctx context.Context, chatID int64) (string, error)
}

// EventHandler consumes inbound chat events.
type EventHandler interface {
	Handle(ctx context.Context, ev Event)
}
