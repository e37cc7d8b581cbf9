package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"video_uniquifier_bot/internal/models"

	"github.com/rs/zerolog"
)

func (c *SessionController) mainMenuKeyboard(chatID int64, s models.ChatSettings) Keyboard {
	gen := "🎨 Генерация: ❌"
	if s.UseGenerationMode {
		gen = "🎨 Генерация: ✔️"
	}
	kb := Keyboard{
		Row(Button{Text: gen, Data: ActionToggleGeneration}),
		Row(Button{Text: "🎬 Видео", Data: ActionAddVideo}, Button{Text: "🖼️ Картинки", Data: ActionAddImages}),
		Row(Button{Text: "🔍 Предпросмотр", Data: ActionPreview}, Button{Text: "🚀 Старт", Data: ActionStart}),
		Row(Button{Text: "⚙️ Настройки", Data: ActionSettings}, Button{Text: "📊 Статистика", Data: ActionStats}),
	}
	if chatID == c.adminID {
		kb = append(kb, Row(Button{Text: msgAdminPanelButton, Data: ActionAdminPanel}))
	}
	return kb
}

func settingsKeyboard(s models.ChatSettings) Keyboard {
	animate := "✖"
	if s.Animate {
		animate = "✔"
	}
	plus := func(action string) Button { return Button{Text: "➕", Data: action} }
	return Keyboard{
		Row(Button{Text: fmt.Sprintf("Прозрачность: %d%% ➖", s.Alpha), Data: ActionAlphaMinus}, plus(ActionAlphaPlus)),
		Row(Button{Text: fmt.Sprintf("Изобр. масштаб: %d%% ➖", s.ImageScalePct), Data: ActionImgScaleMinus}, plus(ActionImgScalePlus)),
		Row(Button{Text: fmt.Sprintf("Видео масштаб: %d%% ➖", s.VideoScalePct), Data: ActionVidScaleMinus}, plus(ActionVidScalePlus)),
		Row(Button{Text: fmt.Sprintf("FPS: %d ➖", s.FPS), Data: ActionFPSMinus}, plus(ActionFPSPlus)),
		Row(Button{Text: fmt.Sprintf("Вариантов: %d ➖", s.VariantCount), Data: ActionCountMinus}, plus(ActionCountPlus)),
		Row(Button{Text: fmt.Sprintf("Aspect: %s ←", s.Aspect), Data: ActionAspectPrev}, Button{Text: "→", Data: ActionAspectNext}),
		Row(Button{Text: "Анимация: " + animate, Data: ActionAnimateToggle}),
		Row(
			Button{Text: fmt.Sprintf("Сдвиг X: %d", s.OffsetX), Data: ActionOffsetX},
			Button{Text: fmt.Sprintf("Сдвиг Y: %d", s.OffsetY), Data: ActionOffsetY},
		),
		Row(Button{Text: msgBackButton, Data: ActionBackMain}),
	}
}

// show replaces the message the event came from, or sends a new one when
// there is nothing to edit.
func (c *SessionController) show(ctx context.Context, ev Event, text string, kb Keyboard) {
	if ev.MessageID != 0 {
		err := c.Messenger.EditText(ctx, ev.ChatID, ev.MessageID, text, kb)
		if err == nil {
			return
		}
		zerolog.Ctx(ctx).Debug().Err(err).Msg("edit failed, sending new message")
	}
	c.send(ctx, ev.ChatID, text, kb)
}

func (c *SessionController) loadSettings(ctx context.Context, chatID int64) models.ChatSettings {
	s, err := c.Settings.Load(ctx, chatID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("load settings failed, showing defaults")
		return models.DefaultChatSettings()
	}
	return s
}

func (c *SessionController) sendMainMenu(ctx context.Context, chatID int64) {
	c.send(ctx, chatID, msgMainMenu, c.mainMenuKeyboard(chatID, c.loadSettings(ctx, chatID)))
}

func (c *SessionController) showMainMenu(ctx context.Context, ev Event) {
	c.show(ctx, ev, msgMainMenu, c.mainMenuKeyboard(ev.ChatID, c.loadSettings(ctx, ev.ChatID)))
}

func (c *SessionController) showSettings(ctx context.Context, ev Event) {
	c.show(ctx, ev, msgSettings, settingsKeyboard(c.loadSettings(ctx, ev.ChatID)))
}

func (c *SessionController) showStats(ctx context.Context, chatID int64) {
	u, err := c.Usage.Read(ctx, chatID)
	if err != nil {
		c.report(ctx, chatID, err)
		return
	}
	c.send(ctx, chatID, msgStats(u), nil)
	c.sendMainMenu(ctx, chatID)
}

// displayName asks the transport for a chat's name and falls back to its id.
func (c *SessionController) displayName(ctx context.Context, chatID int64) string {
	name, err := c.Messenger.ChatName(ctx, chatID)
	if err != nil || name == "" {
		return strconv.FormatInt(chatID, 10)
	}
	return name
}

// Users lists every chat known to the usage stats or the approved set.
func (c *SessionController) Users(ctx context.Context) ([]models.UserSummary, error) {
	usage, err := c.Usage.All(ctx)
	if err != nil {
		return nil, err
	}
	approved, err := c.Access.List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.UserSummary, len(usage))
	for id, u := range usage {
		byID[id] = &models.UserSummary{ChatID: id, Usage: u}
	}
	for _, id := range approved {
		if _, ok := byID[id]; !ok {
			byID[id] = &models.UserSummary{ChatID: id}
		}
		byID[id].Approved = true
	}

	users := make([]models.UserSummary, 0, len(byID))
	for _, u := range byID {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ChatID < users[j].ChatID })
	return users, nil
}

// User returns the admin view of one chat.
func (c *SessionController) User(ctx context.Context, chatID int64) (models.UserSummary, error) {
	u, err := c.Usage.Read(ctx, chatID)
	if err != nil {
		return models.UserSummary{}, err
	}
	approved, err := c.Access.IsApproved(ctx, chatID)
	if err != nil {
		return models.UserSummary{}, err
	}
	return models.UserSummary{ChatID: chatID, Approved: approved, Usage: u}, nil
}

func approvalMark(approved bool) string {
	if approved {
		return "✅"
	}
	return "❌"
}

func (c *SessionController) showAdminPanel(ctx context.Context, ev Event) {
	users, err := c.Users(ctx)
	if err != nil {
		c.report(ctx, ev.ChatID, err)
		return
	}
	kb := make(Keyboard, 0, len(users)+1)
	for _, u := range users {
		label := approvalMark(u.Approved) + " " + c.displayName(ctx, u.ChatID)
		kb = append(kb, Row(Button{Text: label, Data: userCardPrefix + strconv.FormatInt(u.ChatID, 10)}))
	}
	kb = append(kb, Row(Button{Text: msgBackButton, Data: ActionBackMain}))
	c.show(ctx, ev, msgAdminPanel, kb)
}

func (c *SessionController) showUserCard(ctx context.Context, ev Event, target int64) {
	u, err := c.User(ctx, target)
	if err != nil {
		c.report(ctx, ev.ChatID, err)
		return
	}
	id := strconv.FormatInt(target, 10)
	toggle := Button{Text: "✅ Выдать доступ", Data: approvePrefix + id}
	if u.Approved {
		toggle = Button{Text: "❌ Забрать доступ", Data: revokePrefix + id}
	}
	kb := Keyboard{
		Row(toggle),
		Row(Button{Text: msgBackButton, Data: ActionAdminPanel}),
	}
	c.show(ctx, ev, msgUserCard(c.displayName(ctx, target), target, u.Usage), kb)
}
