// Package telegram adapts the Telegram Bot API to the chat transport used by
// the session controller.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"video_uniquifier_bot/internal/services"
	"video_uniquifier_bot/internal/utils/retry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Bot is both the inbound update loop and the services.Messenger.
type Bot struct {
	api           *tgbotapi.BotAPI
	httpClient    *http.Client
	downloadRetry retry.Policy
}

func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("telegram bot authorised")
	return &Bot{
		api:           api,
		httpClient:    &http.Client{Timeout: 5 * time.Minute},
		downloadRetry: retry.Policy{MaxAttempts: 3, InitialBackoff: time.Second},
	}, nil
}

// Run long-polls for updates and hands each one to handler until ctx is done.
func (b *Bot) Run(ctx context.Context, handler services.EventHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := ToEvent(update)
			if !ok {
				continue
			}
			handler.Handle(ctx, ev)
		}
	}
}

func senderName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ToEvent converts an update into a chat event. Updates the bot does not act
// on report false.
func ToEvent(update tgbotapi.Update) (services.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		ev := services.Event{
			Kind:       services.EventCallback,
			Callback:   cq.Data,
			CallbackID: cq.ID,
		}
		if cq.From != nil {
			ev.SenderID = cq.From.ID
			ev.SenderName = senderName(cq.From)
			ev.ChatID = cq.From.ID
		}
		if cq.Message != nil {
			ev.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				ev.ChatID = cq.Message.Chat.ID
			}
		}
		return ev, ev.ChatID != 0
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return services.Event{}, false
	}
	ev := services.Event{ChatID: msg.Chat.ID, MessageID: msg.MessageID}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.SenderName = senderName(msg.From)
	}

	switch {
	case msg.IsCommand():
		ev.Kind = services.EventCommand
		ev.Command = msg.Command()
	case msg.Document != nil:
		ev.Kind = services.EventFile
		ev.File = &services.FileRef{ID: msg.Document.FileID, Name: msg.Document.FileName, Size: int64(msg.Document.FileSize)}
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = msg.Video.FileUniqueID + ".mp4"
		}
		ev.Kind = services.EventFile
		ev.File = &services.FileRef{ID: msg.Video.FileID, Name: name, Size: int64(msg.Video.FileSize)}
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		ev.Kind = services.EventFile
		ev.File = &services.FileRef{ID: largest.FileID, Name: largest.FileUniqueID + ".jpg", Size: int64(largest.FileSize)}
	case msg.Text != "":
		ev.Kind = services.EventText
		ev.Text = msg.Text
	default:
		return services.Event{}, false
	}
	return ev, true
}

func inlineKeyboard(kb services.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string, kb services.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = inlineKeyboard(kb)
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (b *Bot) EditText(ctx context.Context, chatID int64, messageID int, text string, kb services.Keyboard) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if len(kb) > 0 {
		markup := inlineKeyboard(kb)
		edit.ReplyMarkup = &markup
	}
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error {
	_, err := b.api.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data}))
	return err
}

func (b *Bot) SendDocument(ctx context.Context, chatID int64, path string) error {
	_, err := b.api.Send(tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path)))
	return err
}

func (b *Bot) SendSticker(ctx context.Context, chatID int64, stickerID string) error {
	_, err := b.api.Send(tgbotapi.NewSticker(chatID, tgbotapi.FileID(stickerID)))
	return err
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// DownloadFile fetches a Telegram-held file to dst.
func (b *Bot) DownloadFile(ctx context.Context, file services.FileRef, dst string) error {
	url, err := b.api.GetFileDirectURL(file.ID)
	if err != nil {
		return fmt.Errorf("resolve file %s: %w", file.ID, err)
	}
	_, err = retry.Do(ctx, b.downloadRetry, nil, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.fetch(ctx, url, dst)
	})
	return err
}

func (b *Bot) fetch(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("file download: status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (b *Bot) ChatName(ctx context.Context, chatID int64) (string, error) {
	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return "", err
	}
	if name := strings.TrimSpace(chat.FirstName + " " + chat.LastName); name != "" {
		return name, nil
	}
	if chat.Title != "" {
		return chat.Title, nil
	}
	return chat.UserName, nil
}
