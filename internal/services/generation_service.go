package services

import (
	"context"
	"fmt"
	"time"

	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/metrics"

	"github.com/rs/zerolog/log"
)

type GenerationOptions struct {
	PollAttempts int
	PollDelay    time.Duration
	ImageSize    int
}

func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{PollAttempts: 20, PollDelay: 3 * time.Second, ImageSize: 512}
}

// GenerationItem is the outcome of one requested image. Exactly one of Path
// and Err is set.
type GenerationItem struct {
	Index int
	Path  string
	Data  []byte
	Err   error
}

// GenerationService runs the one-image-at-a-time generation loop.
type GenerationService struct {
	client  GenerationClient
	refiner PromptRefiner
	media   *MediaLibrary
	opts    GenerationOptions
}

// NewGenerationService wires the loop. refiner may be nil.
func NewGenerationService(client GenerationClient, refiner PromptRefiner, media *MediaLibrary, opts GenerationOptions) *GenerationService {
	return &GenerationService{client: client, refiner: refiner, media: media, opts: opts}
}

// Generate requests count images for prompt, one job per image. Each item's
// outcome is reported to onItem as soon as it is known; a failed or timed out
// item does not stop the rest. Only a failed pipeline discovery aborts the
// run. The returned paths are the successfully stored images in order.
func (g *GenerationService) Generate(ctx context.Context, chatID int64, prompt string, count int, onItem func(GenerationItem)) ([]string, error) {
	logger := log.With().Int64("chat_id", chatID).Logger()

	if g.refiner != nil {
		refined, err := g.refiner.Refine(ctx, prompt)
		if err != nil {
			logger.Warn().Err(err).Msg("prompt refinement failed, using original prompt")
		} else if refined != "" {
			logger.Debug().Str("prompt", prompt).Str("refined", refined).Msg("prompt refined")
			prompt = refined
		}
	}

	pipelineID, err := g.client.DiscoverPipeline(ctx)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	for i := 1; i <= count; i++ {
		item := g.generateOne(ctx, chatID, prompt, pipelineID, i)
		if item.Err != nil {
			logger.Warn().Err(item.Err).Int("item", i).Msg("generation item failed")
		} else {
			paths = append(paths, item.Path)
		}
		if onItem != nil {
			onItem(item)
		}
		if ctx.Err() != nil {
			return paths, ctx.Err()
		}
	}
	return paths, nil
}

func (g *GenerationService) generateOne(ctx context.Context, chatID int64, prompt, pipelineID string, index int) GenerationItem {
	item := GenerationItem{Index: index}

	jobUUID, err := g.client.Submit(ctx, prompt, pipelineID, 1, g.opts.ImageSize, g.opts.ImageSize)
	if err != nil {
		metrics.GenerationItemsTotal.WithLabelValues("error").Inc()
		item.Err = err
		return item
	}

	files, err := g.client.Poll(ctx, jobUUID, g.opts.PollAttempts, g.opts.PollDelay)
	if err != nil {
		metrics.GenerationItemsTotal.WithLabelValues("error").Inc()
		item.Err = err
		return item
	}
	if len(files) == 0 {
		metrics.GenerationItemsTotal.WithLabelValues("timeout").Inc()
		item.Err = apperrors.NewTimeoutSoft(fmt.Sprintf("image %d timed out", index))
		return item
	}

	data, err := g.client.DecodeResult(ctx, files[0])
	if err != nil {
		metrics.GenerationItemsTotal.WithLabelValues("error").Inc()
		item.Err = err
		return item
	}

	p, err := g.media.SaveGeneratedImage(chatID, index, data)
	if err != nil {
		metrics.GenerationItemsTotal.WithLabelValues("error").Inc()
		item.Err = fmt.Errorf("store image %d: %w", index, err)
		return item
	}

	metrics.GenerationItemsTotal.WithLabelValues("ok").Inc()
	item.Path = p
	item.Data = data
	return item
}
