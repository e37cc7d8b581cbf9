package services

import (
	"fmt"
	"time"

	"video_uniquifier_bot/internal/models"
)

// Chat texts.
const (
	msgWelcome          = "✨ Добро пожаловать!"
	msgMainMenu         = "✨ Главное меню:"
	msgSettings         = "⚙️ Настройки:"
	msgAdminPanel       = "🛠️ Админ панель:"
	msgAccessDenied     = "❌ Доступ забран администратором. Чтобы подать новую заявку, используйте /start"
	msgRequestSent      = "🟣 Заявка отправлена администратору. Ожидайте."
	msgRequestCooldown  = "⏳ Вы уже подавали заявку недавно, повторить можно через час."
	msgAccessGranted    = "🎉 Вам открыт доступ к уникализатору! Напишите /start"
	msgAccessRefused    = "⚠️ Администратор отклонил ваш запрос. Доступ запрещён.\nЕсли есть вопрос, напишите разработчику."
	msgAdminGranted     = "✅ Доступ выдан."
	msgAdminRevoked     = "❌ Доступ забран."
	msgCancelled        = "❌ Отмена."
	msgSendStart        = "Напишите /start, чтобы открыть меню."
	msgAskPrompt        = "📋 Введите текстовый промт для генерации картинки:"
	msgAskVideo         = "Отправьте видео (<20MB) или ссылку:"
	msgAskImages        = "Отправьте картинки или ZIP:"
	msgAskOffsetX       = "Введите смещение X:"
	msgAskOffsetY       = "Введите смещение Y:"
	msgNotANumber       = "❌ Введите число"
	msgBadCount         = "❌ Введите целое число от 1 до 10."
	msgNeedMedia        = "❌ Загрузите видео и изображения."
	msgVideoSaved       = "✅ Видео сохранено."
	msgVideoURLSaved    = "✅ URL видео сохранено."
	msgNeedVideo        = "❌ Отправьте видеофайл или ссылку http(s)."
	msgNeedImages       = "❌ Ошибка: нет файла"
	msgRenderStarted    = "🚀 Начинаю уникализацию видео и изображений…"
	msgRenderDone       = "✅ Уникализация завершена."
	msgPromptMissing    = "❌ Промт не найден. Начните заново (/start)."
	msgNoImagesKept     = "⚠️ Не удалось сгенерировать ни одного изображения, текущие картинки сохранены."
	msgBackButton       = "🔙 Назад"
	msgAdminPanelButton = "🛠️ Админ панель"
)

func msgNewRequest(name string, chatID int64) string {
	if name == "" {
		name = fmt.Sprint(chatID)
	}
	return fmt.Sprintf("Новый запрос от @%s (id=%d)", name, chatID)
}

func msgPromptSaved(prompt string) string {
	return fmt.Sprintf("Промт сохранён:\n«%s»\n\nСколько изображений сгенерировать? (введите число)", prompt)
}

func msgGenerating(n int) string {
	return fmt.Sprintf("⏳ Генерирую %d изображений…", n)
}

func msgItemTimeout(i int) string {
	return fmt.Sprintf("❌ Таймаут на изображении %d.", i)
}

func msgItemFailed(i int, reason string) string {
	return fmt.Sprintf("❌ Ошибка генерации изображения %d: %s", i, reason)
}

func msgGenerationFailed(reason string) string {
	return "❌ Ошибка генерации: " + reason
}

func msgRenderFailed(reason string) string {
	return "❌ Ошибка рендера: " + reason
}

func msgError(reason string) string {
	return "❌ " + reason
}

func msgImagesSaved(n int) string {
	return fmt.Sprintf("✅ %d изображений загружено.", n)
}

func msgOffsetX(x int) string { return fmt.Sprintf("Сдвиг X: %d", x) }
func msgOffsetY(y int) string { return fmt.Sprintf("Сдвиг Y: %d", y) }

func formatFirstUse(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func msgStats(u models.UsageRecord) string {
	return fmt.Sprintf("📊 Статистика:\n- Зарегистрирован: %s\n- Сессий: %d\n- Видео: %d",
		formatFirstUse(u.FirstUse), u.Sessions, u.Processed)
}

func msgUserCard(name string, chatID int64, u models.UsageRecord) string {
	return fmt.Sprintf("Статистика %s (id=%d):\n- Зарегистрирован: %s\n- Сессий: %d\n- Видео: %d",
		name, chatID, formatFirstUse(u.FirstUse), u.Sessions, u.Processed)
}
