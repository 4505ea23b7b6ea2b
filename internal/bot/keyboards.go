package bot

import (
	"context"
	"log/slog"
	"strings"

	"sumibot/internal/ratelimiter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackSummarize = "summarize"
	callbackCopy      = "copy"
	callbackHistory   = "history"
	callbackReset     = "reset"
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	_, err := sendMessage(ctx, b.rateLimiter, b.log, chatID, text, keyboard)
	return err
}

// sendMessage sends MarkdownV2 text. A nil keyboard sends no reply markup.
func sendMessage(
	ctx context.Context,
	api ratelimiter.API,
	log *slog.Logger,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) (tgbotapi.Message, error) {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	message := tgbotapi.NewMessage(chatID, normalizedText)

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if keyboard != nil {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	return api.Send(message)
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("🗂 History", callbackHistory)},
	}
}

// getFileKeyboard is shown while a file is stored and can be (re)uploaded.
func getFileKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("📤 Upload & Summarize", callbackSummarize)},
		{tgbotapi.NewInlineKeyboardButtonData("🗑 Reset", callbackReset)},
	}
}

func getSummaryKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("📋 Copy", callbackCopy),
			tgbotapi.NewInlineKeyboardButtonData("🗂 History", callbackHistory),
		},
	}
}
