package services

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strconv"

	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// probe returns the video duration when animation is on, 0 otherwise.
func (c *SessionController) probe(ctx context.Context, s models.ChatSettings) float64 {
	if !s.Animate || c.Prober == nil {
		return 0
	}
	return c.Prober.ProbeDuration(ctx, *s.VideoSource)
}

// runPreview renders one still frame with the first image and sends it as a
// photo.
func (c *SessionController) runPreview(ctx context.Context, chatID int64) {
	s, err := c.Settings.Load(ctx, chatID)
	if err != nil {
		c.report(ctx, chatID, err)
		c.sendMainMenu(ctx, chatID)
		return
	}
	if !s.HasMedia() {
		c.send(ctx, chatID, msgNeedMedia, nil)
		c.sendMainMenu(ctx, chatID)
		return
	}

	req := PlanComposition(s, s.ImageSources[0], c.probe(ctx, s), RenderPreview)
	out := c.Media.PreviewPath(chatID)
	if err := c.Renderer.Render(ctx, req, out); err != nil {
		c.send(ctx, chatID, msgRenderFailed(apperrors.UserMessage(err)), nil)
		c.sendMainMenu(ctx, chatID)
		return
	}
	data, err := os.ReadFile(out)
	if err != nil {
		c.report(ctx, chatID, err)
	} else if err := c.Messenger.SendPhoto(ctx, chatID, filepath.Base(out), data); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("send preview failed")
	}
	c.sendMainMenu(ctx, chatID)
}

// runRender produces VariantCount videos, each over a randomly picked image,
// and sends them one by one. A renderer failure ends the run; variants
// already sent stay delivered.
func (c *SessionController) runRender(ctx context.Context, chatID int64) {
	logger := zerolog.Ctx(ctx)
	s, err := c.Settings.Load(ctx, chatID)
	if err != nil {
		c.report(ctx, chatID, err)
		c.sendMainMenu(ctx, chatID)
		return
	}
	if !s.HasMedia() {
		c.send(ctx, chatID, msgNeedMedia, nil)
		c.sendMainMenu(ctx, chatID)
		return
	}

	c.send(ctx, chatID, msgRenderStarted, nil)
	if c.stickerID != "" {
		if err := c.Messenger.SendSticker(ctx, chatID, c.stickerID); err != nil {
			logger.Warn().Err(err).Msg("send sticker failed")
		}
	}
	if err := c.Usage.IncrementCounter(ctx, chatID, models.CounterSessions, 1); err != nil {
		logger.Warn().Err(err).Msg("count session failed")
	}

	runID := uuid.New().String()
	duration := c.probe(ctx, s)
	for i := 1; i <= s.VariantCount; i++ {
		req := PlanComposition(s, c.pickImage(s.ImageSources), duration, RenderVideo)
		out, err := c.Media.ResultPath(chatID, i, *s.VideoSource)
		if err != nil {
			c.report(ctx, chatID, err)
			break
		}
		if err := c.Renderer.Render(ctx, req, out); err != nil {
			logger.Error().Err(err).Int("variant", i).Msg("render failed")
			c.send(ctx, chatID, msgRenderFailed(apperrors.UserMessage(err)), nil)
			c.sendMainMenu(ctx, chatID)
			return
		}
		if err := c.Messenger.SendDocument(ctx, chatID, out); err != nil {
			logger.Warn().Err(err).Int("variant", i).Msg("send variant failed")
			continue
		}
		if err := c.Usage.IncrementCounter(ctx, chatID, models.CounterProcessed, 1); err != nil {
			logger.Warn().Err(err).Msg("count processed failed")
		}
		c.archive(ctx, chatID, runID, out)
	}

	logger.Info().Str("run_id", runID).Int("variants", s.VariantCount).Msg("render run finished")
	c.send(ctx, chatID, msgRenderDone, nil)
	c.sendMainMenu(ctx, chatID)
}

// archive uploads a delivered variant when an archive is configured. Failures
// are only logged.
func (c *SessionController) archive(ctx context.Context, chatID int64, runID, file string) {
	if c.Archive == nil {
		return
	}
	f, err := os.Open(file)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("open variant for archive failed")
		return
	}
	defer f.Close()
	object := path.Join("renders", strconv.FormatInt(chatID, 10), runID, filepath.Base(file))
	if err := c.Archive.UploadFile(ctx, object, f); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("object", object).Msg("archive upload failed")
	}
}
