package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.Message.Chat == nil {
		return b.callbackAnswer(callback, "")
	}

	chatID := callback.Message.Chat.ID
	userID := callback.From.ID

	switch strings.TrimSpace(callback.Data) {
	case callbackSummarize:
		return b.handleSummarize(ctx, chatID, userID, callback)
	case callbackCopy:
		return b.handleCopy(ctx, chatID, callback)
	case callbackHistory:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleHistory(ctx, chatID, userID)
		})
	case callbackReset:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleReset(ctx, chatID)
		})
	default:
		return b.callbackAnswer(callback, "")
	}
}

func (b *Bot) callbackAnswer(callback *tgbotapi.CallbackQuery, text string) error {
	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return nil
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if err := b.callbackAnswer(callback, ""); err != nil {
		errs = append(errs, b.errorCallbackAnswer(callback, err))
	}

	err := fn()
	if err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, failedCallbackToast)); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
