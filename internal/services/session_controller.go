package services

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/metrics"
	"video_uniquifier_bot/internal/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	commandStart  = "start"
	commandCancel = "cancel"
)

// SessionControllerDeps are the collaborators of a SessionController.
// Archive may be nil.
type SessionControllerDeps struct {
	Messenger Messenger
	Access    AccessRegistry
	Usage     UsageTracker
	Settings  SettingsRepository
	Sessions  *ChatSessionService
	Media     *MediaLibrary
	Generator ImageGenerator
	Renderer  Renderer
	Prober    DurationProber
	Archive   ArtifactArchive
}

// SessionController drives the per-chat dialogue. It expects events of one
// chat to arrive one at a time (see Dispatcher).
type SessionController struct {
	SessionControllerDeps
	adminID   int64
	stickerID string
	pickImage func([]string) string
	handlers  map[ConversationState]stateHandler
}

func NewSessionController(deps SessionControllerDeps, adminID int64, stickerID string) *SessionController {
	return &SessionController{
		SessionControllerDeps: deps,
		adminID:               adminID,
		stickerID:             stickerID,
		pickImage:             randomImage,
		handlers:              stateTable(),
	}
}

func randomImage(images []string) string {
	return images[rand.Intn(len(images))]
}

// sender returns the identity that produced ev.
func sender(ev Event) int64 {
	if ev.SenderID != 0 {
		return ev.SenderID
	}
	return ev.ChatID
}

// Handle routes one inbound event through the access gate and the state
// machine. All failures are reported to the chat here.
func (c *SessionController) Handle(ctx context.Context, ev Event) {
	metrics.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()
	logger := log.With().Int64("chat_id", ev.ChatID).Str("event", ev.Kind.String()).Logger()
	ctx = logger.WithContext(ctx)

	if ev.Kind == EventCallback && ev.CallbackID != "" {
		if err := c.Messenger.AnswerCallback(ctx, ev.CallbackID); err != nil {
			logger.Debug().Err(err).Msg("answer callback failed")
		}
	}

	if ev.Kind == EventCallback && isAdminDecision(ev.Callback) {
		c.handleAdminDecision(ctx, ev)
		return
	}

	approved, err := c.isApproved(ctx, ev.ChatID)
	if err != nil {
		logger.Error().Err(err).Msg("access check failed")
		c.send(ctx, ev.ChatID, msgError(apperrors.UserMessage(err)), nil)
		return
	}
	if !approved {
		c.deny(ctx, ev)
		return
	}

	if ev.Kind == EventCommand {
		switch ev.Command {
		case commandStart:
			c.start(ctx, ev.ChatID)
			return
		case commandCancel:
			c.cancel(ctx, ev.ChatID)
			return
		}
	}

	sess, ok := c.Sessions.Get(ev.ChatID)
	if !ok {
		c.send(ctx, ev.ChatID, msgSendStart, nil)
		return
	}
	if ev.Kind == EventCallback && sess.State != StateMenu {
		sess = ChatSession{State: StateMenu}
	}

	handler, ok := c.handlers[sess.State]
	if !ok {
		logger.Error().Str("state", sess.State.String()).Msg("no handler for state")
		return
	}
	logger.Debug().Str("state", sess.State.String()).Msg("handling event")
	next := handler(c, ctx, &turn{ev: ev, session: sess})
	if next.State != sess.State {
		logger.Debug().Str("from", sess.State.String()).Str("to", next.State.String()).Msg("state transition")
	}
	c.Sessions.Set(ev.ChatID, next)
}

func (c *SessionController) isApproved(ctx context.Context, chatID int64) (bool, error) {
	if chatID == c.adminID {
		return true, nil
	}
	return c.Access.IsApproved(ctx, chatID)
}

// deny handles an event from a chat outside the approved set. Any active flow
// is dropped; /start files an approval request.
func (c *SessionController) deny(ctx context.Context, ev Event) {
	metrics.AccessDeniedTotal.Inc()
	zerolog.Ctx(ctx).Info().Err(apperrors.NewAccessDenied(ev.ChatID)).Msg("access denied")
	_ = c.Sessions.TerminateSession(ev.ChatID, AccessRevoked)
	if ev.Kind == EventCommand && ev.Command == commandStart {
		c.requestApproval(ctx, ev)
		return
	}
	c.send(ctx, ev.ChatID, msgAccessDenied, nil)
}

func (c *SessionController) requestApproval(ctx context.Context, ev Event) {
	logger := zerolog.Ctx(ctx)
	allowed, err := c.Usage.RecordRequestAttempt(ctx, ev.ChatID)
	if err != nil {
		logger.Error().Err(err).Msg("record approval request failed")
		c.send(ctx, ev.ChatID, msgError(apperrors.UserMessage(err)), nil)
		return
	}
	if !allowed {
		metrics.ApprovalRequestsTotal.WithLabelValues("rate_limited").Inc()
		logger.Info().Err(apperrors.NewRateLimited("approval request within cooldown")).Msg("approval request refused")
		c.send(ctx, ev.ChatID, msgRequestCooldown, nil)
		return
	}

	id := strconv.FormatInt(ev.ChatID, 10)
	kb := Keyboard{Row(
		Button{Text: "✅ Принять", Data: approvePrefix + id},
		Button{Text: "❌ Отклонить", Data: declinePrefix + id},
	)}
	if _, err := c.Messenger.SendText(ctx, c.adminID, msgNewRequest(ev.SenderName, ev.ChatID), kb); err != nil {
		metrics.ApprovalRequestsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("notify admin of approval request failed")
		c.send(ctx, ev.ChatID, msgError(apperrors.UserMessage(err)), nil)
		return
	}
	metrics.ApprovalRequestsTotal.WithLabelValues("sent").Inc()
	logger.Info().Msg("approval request sent to admin")
	c.send(ctx, ev.ChatID, msgRequestSent, nil)
}

func (c *SessionController) start(ctx context.Context, chatID int64) {
	c.send(ctx, chatID, msgWelcome, nil)
	if err := c.Usage.IncrementCounter(ctx, chatID, models.CounterSessions, 0); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("record first use failed")
	}
	c.Sessions.Set(chatID, ChatSession{State: StateMenu})
	c.sendMainMenu(ctx, chatID)
}

func (c *SessionController) cancel(ctx context.Context, chatID int64) {
	if err := c.Sessions.TerminateSession(chatID, UserInitiated); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("cancel without active flow")
	}
	c.send(ctx, chatID, msgCancelled, nil)
}

func isAdminDecision(data string) bool {
	_, _, ok := parseAdminDecision(data)
	return ok
}

func parseAdminDecision(data string) (action string, target int64, ok bool) {
	for _, prefix := range []string{approvePrefix, declinePrefix, revokePrefix} {
		if rest, found := strings.CutPrefix(data, prefix); found {
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return "", 0, false
			}
			return strings.TrimSuffix(prefix, "_"), id, true
		}
	}
	return "", 0, false
}

// handleAdminDecision applies an approve/decline/revoke control. The admin's
// own dialogue state is left untouched.
func (c *SessionController) handleAdminDecision(ctx context.Context, ev Event) {
	logger := zerolog.Ctx(ctx)
	if sender(ev) != c.adminID {
		logger.Warn().Int64("sender", sender(ev)).Str("callback", ev.Callback).Msg("admin control from non-admin ignored")
		return
	}
	action, target, _ := parseAdminDecision(ev.Callback)
	id := strconv.FormatInt(target, 10)

	var (
		text   string
		toggle Button
		err    error
	)
	if action == "approve" {
		err = c.ApproveChat(ctx, target)
		text = msgAdminGranted
		toggle = Button{Text: "❌ " + id, Data: revokePrefix + id}
	} else {
		err = c.RevokeChat(ctx, target)
		text = msgAdminRevoked
		toggle = Button{Text: "✅ " + id, Data: approvePrefix + id}
	}
	if err != nil {
		logger.Error().Err(err).Int64("target", target).Str("action", action).Msg("admin decision failed")
		c.send(ctx, ev.ChatID, msgError(apperrors.UserMessage(err)), nil)
		return
	}

	kb := Keyboard{Row(toggle)}
	if ev.MessageID != 0 {
		if err := c.Messenger.EditText(ctx, ev.ChatID, ev.MessageID, text, kb); err == nil {
			return
		}
	}
	c.send(ctx, ev.ChatID, text, kb)
}

// ApproveChat adds chatID to the approved set and tells the chat.
func (c *SessionController) ApproveChat(ctx context.Context, chatID int64) error {
	if err := c.Access.Approve(ctx, chatID); err != nil {
		return fmt.Errorf("approve chat %d: %w", chatID, err)
	}
	log.Info().Int64("target", chatID).Msg("chat approved")
	c.notifyBestEffort(ctx, chatID, msgAccessGranted)
	return nil
}

// RevokeChat removes chatID from the approved set, drops its active flow and
// tells the chat.
func (c *SessionController) RevokeChat(ctx context.Context, chatID int64) error {
	if err := c.Access.Revoke(ctx, chatID); err != nil {
		return fmt.Errorf("revoke chat %d: %w", chatID, err)
	}
	_ = c.Sessions.TerminateSession(chatID, AccessRevoked)
	log.Info().Int64("target", chatID).Msg("chat revoked")
	c.notifyBestEffort(ctx, chatID, msgAccessRefused)
	return nil
}

// notifyBestEffort sends text and only logs a failure.
func (c *SessionController) notifyBestEffort(ctx context.Context, chatID int64, text string) {
	if _, err := c.Messenger.SendText(ctx, chatID, text, nil); err != nil {
		log.Warn().Err(err).Int64("target", chatID).Msg("best-effort notice not delivered")
	}
}

func (c *SessionController) send(ctx context.Context, chatID int64, text string, kb Keyboard) {
	if _, err := c.Messenger.SendText(ctx, chatID, text, kb); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("send message failed")
	}
}

// report sends err to the chat as a truncated notice.
func (c *SessionController) report(ctx context.Context, chatID int64, err error) {
	zerolog.Ctx(ctx).Warn().Err(err).Msg("request failed")
	c.send(ctx, chatID, msgError(apperrors.UserMessage(err)), nil)
}

func (c *SessionController) backToMenu(ctx context.Context, chatID int64) ChatSession {
	c.sendMainMenu(ctx, chatID)
	return ChatSession{State: StateMenu}
}

func (c *SessionController) onMenu(ctx context.Context, t *turn) ChatSession {
	ev := t.ev
	if ev.Kind != EventCallback {
		return c.backToMenu(ctx, ev.ChatID)
	}

	switch data := ev.Callback; {
	case data == ActionToggleGeneration:
		s, err := c.Settings.Mutate(ctx, ev.ChatID, func(s *models.ChatSettings) {
			s.UseGenerationMode = !s.UseGenerationMode
		})
		if err != nil {
			c.report(ctx, ev.ChatID, err)
			return t.session
		}
		c.show(ctx, ev, msgMainMenu, c.mainMenuKeyboard(ev.ChatID, s))
	case data == ActionAddImages:
		s, err := c.Settings.Load(ctx, ev.ChatID)
		if err != nil {
			c.report(ctx, ev.ChatID, err)
			return t.session
		}
		if s.UseGenerationMode {
			c.send(ctx, ev.ChatID, msgAskPrompt, nil)
			return ChatSession{State: StateAwaitingGenerationPrompt}
		}
		c.send(ctx, ev.ChatID, msgAskImages, nil)
		return ChatSession{State: StateAwaitingImageUpload}
	case data == ActionAddVideo:
		c.send(ctx, ev.ChatID, msgAskVideo, nil)
		return ChatSession{State: StateAwaitingVideoUpload}
	case data == ActionOffsetX:
		c.send(ctx, ev.ChatID, msgAskOffsetX, nil)
		return ChatSession{State: StateAwaitingOffsetX}
	case data == ActionOffsetY:
		c.send(ctx, ev.ChatID, msgAskOffsetY, nil)
		return ChatSession{State: StateAwaitingOffsetY}
	case data == ActionPreview:
		c.runPreview(ctx, ev.ChatID)
	case data == ActionStart:
		c.runRender(ctx, ev.ChatID)
	case data == ActionSettings:
		c.showSettings(ctx, ev)
	case data == ActionStats:
		c.showStats(ctx, ev.ChatID)
	case data == ActionBackMain:
		c.showMainMenu(ctx, ev)
	case data == ActionAdminPanel:
		if ev.ChatID == c.adminID {
			c.showAdminPanel(ctx, ev)
		}
	case strings.HasPrefix(data, userCardPrefix):
		target, err := strconv.ParseInt(strings.TrimPrefix(data, userCardPrefix), 10, 64)
		if ev.ChatID == c.adminID && err == nil {
			c.showUserCard(ctx, ev, target)
		}
	default:
		c.adjustSetting(ctx, ev, data)
	}
	return ChatSession{State: StateMenu}
}

// adjustSetting applies a settings-panel action. Unknown actions do nothing.
func (c *SessionController) adjustSetting(ctx context.Context, ev Event, action string) {
	if !IsSettingsAction(action) {
		zerolog.Ctx(ctx).Debug().Str("action", action).Msg("unknown menu action ignored")
		return
	}
	s, err := c.Settings.Mutate(ctx, ev.ChatID, func(s *models.ChatSettings) {
		*s, _ = AdjustSettings(*s, action)
	})
	if err != nil {
		c.report(ctx, ev.ChatID, err)
		return
	}
	c.show(ctx, ev, msgSettings, settingsKeyboard(s))
}

func (c *SessionController) onGenerationPrompt(ctx context.Context, t *turn) ChatSession {
	ev := t.ev
	prompt := strings.TrimSpace(ev.Text)
	if ev.Kind != EventText || prompt == "" {
		c.send(ctx, ev.ChatID, msgAskPrompt, nil)
		return t.session
	}
	c.send(ctx, ev.ChatID, msgPromptSaved(prompt), nil)
	return ChatSession{State: StateAwaitingGenerationCount, Prompt: prompt}
}

func (c *SessionController) onGenerationCount(ctx context.Context, t *turn) ChatSession {
	ev := t.ev
	n, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if ev.Kind != EventText || err != nil || n < models.VariantCountMin || n > models.VariantCountMax {
		c.send(ctx, ev.ChatID, msgBadCount, nil)
		return t.session
	}
	if t.session.Prompt == "" {
		c.send(ctx, ev.ChatID, msgPromptMissing, nil)
		return c.backToMenu(ctx, ev.ChatID)
	}
	c.runGeneration(ctx, ev.ChatID, t.session.Prompt, n)
	return c.backToMenu(ctx, ev.ChatID)
}

func (c *SessionController) runGeneration(ctx context.Context, chatID int64, prompt string, n int) {
	logger := zerolog.Ctx(ctx)
	c.send(ctx, chatID, msgGenerating(n), nil)

	paths, err := c.Generator.Generate(ctx, chatID, prompt, n, func(item GenerationItem) {
		if item.Err != nil {
			if apperrors.IsType(item.Err, apperrors.ErrorTypeTimeoutSoft) {
				c.send(ctx, chatID, msgItemTimeout(item.Index), nil)
			} else {
				c.send(ctx, chatID, msgItemFailed(item.Index, apperrors.UserMessage(item.Err)), nil)
			}
			return
		}
		if err := c.Messenger.SendPhoto(ctx, chatID, fmt.Sprintf("gen_%d.png", item.Index), item.Data); err != nil {
			logger.Warn().Err(err).Int("item", item.Index).Msg("send generated image failed")
		}
	})
	if err != nil {
		logger.Error().Err(err).Msg("generation failed")
		c.send(ctx, chatID, msgGenerationFailed(apperrors.UserMessage(err)), nil)
		return
	}
	if len(paths) == 0 {
		c.send(ctx, chatID, msgNoImagesKept, nil)
		return
	}
	if _, err := c.Settings.Mutate(ctx, chatID, func(s *models.ChatSettings) {
		s.ImageSources = paths
	}); err != nil {
		c.report(ctx, chatID, err)
		return
	}
	logger.Info().Int("requested", n).Int("generated", len(paths)).Msg("generation finished")
}

func (c *SessionController) onVideoUpload(ctx context.Context, t *turn) ChatSession {
	ev := t.ev
	var (
		path  string
		err   error
		saved string
	)
	switch {
	case ev.Kind == EventFile && ev.File != nil:
		path, err = c.Media.SaveVideoUpload(ctx, c.Messenger, ev.ChatID, *ev.File)
		saved = msgVideoSaved
	case ev.Kind == EventText && strings.HasPrefix(strings.TrimSpace(ev.Text), "http"):
		path, err = c.Media.SaveVideoFromURL(ctx, ev.ChatID, ev.Text)
		saved = msgVideoURLSaved
	default:
		c.send(ctx, ev.ChatID, msgNeedVideo, nil)
		return t.session
	}
	if err != nil {
		c.report(ctx, ev.ChatID, err)
		return t.session
	}

	if _, err := c.Settings.Mutate(ctx, ev.ChatID, func(s *models.ChatSettings) {
		s.VideoSource = &path
	}); err != nil {
		c.report(ctx, ev.ChatID, err)
		return c.backToMenu(ctx, ev.ChatID)
	}
	c.send(ctx, ev.ChatID, saved, nil)
	return c.backToMenu(ctx, ev.ChatID)
}

func (c *SessionController) onImageUpload(ctx context.Context, t *turn) ChatSession {
	ev := t.ev
	if ev.Kind != EventFile || ev.File == nil {
		c.send(ctx, ev.ChatID, msgNeedImages, nil)
		return t.session
	}
	images, err := c.Media.SaveImageUpload(ctx, c.Messenger, ev.ChatID, *ev.File)
	if err != nil {
		c.report(ctx, ev.ChatID, err)
		return t.session
	}
	if len(images) == 0 {
		c.send(ctx, ev.ChatID, msgNeedImages, nil)
		return t.session
	}

	if _, err := c.Settings.Mutate(ctx, ev.ChatID, func(s *models.ChatSettings) {
		s.ImageSources = images
	}); err != nil {
		c.report(ctx, ev.ChatID, err)
		return c.backToMenu(ctx, ev.ChatID)
	}
	c.send(ctx, ev.ChatID, msgImagesSaved(len(images)), nil)
	return c.backToMenu(ctx, ev.ChatID)
}

func (c *SessionController) onOffsetX(ctx context.Context, t *turn) ChatSession {
	return c.setOffset(ctx, t, func(s *models.ChatSettings, v int) { s.OffsetX = v }, msgOffsetX)
}

func (c *SessionController) onOffsetY(ctx context.Context, t *turn) ChatSession {
	return c.setOffset(ctx, t, func(s *models.ChatSettings, v int) { s.OffsetY = v }, msgOffsetY)
}

func (c *SessionController) setOffset(ctx context.Context, t *turn, set func(*models.ChatSettings, int), confirm func(int) string) ChatSession {
	ev := t.ev
	v, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if ev.Kind != EventText || err != nil {
		c.send(ctx, ev.ChatID, msgNotANumber, nil)
		return t.session
	}
	if _, err := c.Settings.Mutate(ctx, ev.ChatID, func(s *models.ChatSettings) { set(s, v) }); err != nil {
		c.report(ctx, ev.ChatID, err)
		return c.backToMenu(ctx, ev.ChatID)
	}
	c.send(ctx, ev.ChatID, confirm(v), nil)
	return c.backToMenu(ctx, ev.ChatID)
}
