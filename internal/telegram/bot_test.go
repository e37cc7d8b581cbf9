package telegram

import (
	"testing"

	"video_uniquifier_bot/internal/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func message(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		Chat:      &tgbotapi.Chat{ID: 42},
		From:      &tgbotapi.User{ID: 42, UserName: "alice"},
		Text:      text,
	}
}

func TestToEvent(t *testing.T) {
	t.Run("Command", func(t *testing.T) {
		msg := message("/start now")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}

		ev, ok := ToEvent(tgbotapi.Update{Message: msg})
		assert.True(t, ok)
		assert.Equal(t, services.EventCommand, ev.Kind)
		assert.Equal(t, "start", ev.Command)
		assert.Equal(t, int64(42), ev.ChatID)
		assert.Equal(t, "alice", ev.SenderName)
	})

	t.Run("Text", func(t *testing.T) {
		ev, ok := ToEvent(tgbotapi.Update{Message: message("https://example.com/v.mp4")})
		assert.True(t, ok)
		assert.Equal(t, services.EventText, ev.Kind)
		assert.Equal(t, "https://example.com/v.mp4", ev.Text)
	})

	t.Run("Document", func(t *testing.T) {
		msg := message("")
		msg.Document = &tgbotapi.Document{FileID: "doc-1", FileName: "pack.zip", FileSize: 2048}

		ev, ok := ToEvent(tgbotapi.Update{Message: msg})
		assert.True(t, ok)
		assert.Equal(t, services.EventFile, ev.Kind)
		assert.Equal(t, &services.FileRef{ID: "doc-1", Name: "pack.zip", Size: 2048}, ev.File)
	})

	t.Run("Video without a file name", func(t *testing.T) {
		msg := message("")
		msg.Video = &tgbotapi.Video{FileID: "vid-1", FileUniqueID: "u1", FileSize: 999}

		ev, ok := ToEvent(tgbotapi.Update{Message: msg})
		assert.True(t, ok)
		assert.Equal(t, "u1.mp4", ev.File.Name)
		assert.Equal(t, int64(999), ev.File.Size)
	})

	t.Run("Photo picks the largest size", func(t *testing.T) {
		msg := message("")
		msg.Photo = []tgbotapi.PhotoSize{
			{FileID: "small", FileUniqueID: "s", FileSize: 10},
			{FileID: "large", FileUniqueID: "l", FileSize: 1000},
		}

		ev, ok := ToEvent(tgbotapi.Update{Message: msg})
		assert.True(t, ok)
		assert.Equal(t, "large", ev.File.ID)
		assert.Equal(t, "l.jpg", ev.File.Name)
	})

	t.Run("Callback", func(t *testing.T) {
		ev, ok := ToEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: 1000, FirstName: "Admin"},
			Data:    "approve_42",
			Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: 1000}},
		}})
		assert.True(t, ok)
		assert.Equal(t, services.EventCallback, ev.Kind)
		assert.Equal(t, "approve_42", ev.Callback)
		assert.Equal(t, "cb-1", ev.CallbackID)
		assert.Equal(t, 5, ev.MessageID)
		assert.Equal(t, int64(1000), ev.SenderID)
		assert.Equal(t, "Admin", ev.SenderName)
	})

	t.Run("Ignored updates", func(t *testing.T) {
		_, ok := ToEvent(tgbotapi.Update{})
		assert.False(t, ok)

		_, ok = ToEvent(tgbotapi.Update{Message: message("")})
		assert.False(t, ok, "sticker or service message")
	})
}

func TestInlineKeyboard(t *testing.T) {
	markup := inlineKeyboard(services.Keyboard{
		services.Row(services.Button{Text: "A", Data: "a"}, services.Button{Text: "B", Data: "b"}),
		services.Row(services.Button{Text: "C", Data: "c"}),
	})

	assert.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "B", markup.InlineKeyboard[0][1].Text)
	assert.Equal(t, "c", *markup.InlineKeyboard[1][0].CallbackData)
}
