package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"sumibot/internal/ratelimiter"
	"sumibot/internal/upload"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// chatView renders controller states into one chat and serves as its
// clipboard.
type chatView struct {
	chatID int64
	api    ratelimiter.API
	log    *slog.Logger

	mu            sync.Mutex
	busyMessageID int
}

func newChatView(chatID int64, api ratelimiter.API, log *slog.Logger) *chatView {
	return &chatView{
		chatID: chatID,
		api:    api,
		log:    log,
	}
}

// render is the controller observer. Failures are logged because the state
// transition has already happened.
func (v *chatView) render(ctx context.Context, state upload.State) {
	if err := v.renderState(ctx, state); err != nil {
		v.log.ErrorContext(ctx, "Failed to render state",
			"error", err,
			"chatID", v.chatID,
			"phase", state.Phase().String())
	}
}

func (v *chatView) renderState(ctx context.Context, state upload.State) error {
	switch state.Phase() {
	case upload.PhaseIdle:
		v.clearBusy(ctx)
		return v.send(ctx, idleText, getMenuKeyboard())

	case upload.PhaseFileSelected:
		file, _ := state.File()
		return v.send(ctx, fileSelectedText(file), getFileKeyboard())

	case upload.PhaseUploading:
		return v.showBusy(ctx)

	case upload.PhaseSucceeded:
		v.clearBusy(ctx)

		file, _ := state.File()
		summary, _ := state.Summary()

		var errs []error

		messages := summaryMessages(file, summary)
		for i, message := range messages {
			var keyboard [][]tgbotapi.InlineKeyboardButton
			if i == len(messages)-1 {
				keyboard = getSummaryKeyboard()
			}

			errs = append(errs, v.send(ctx, message, keyboard))
		}

		return errors.Join(errs...)

	case upload.PhaseFailed:
		var keyboard [][]tgbotapi.InlineKeyboardButton
		if _, ok := state.File(); ok {
			keyboard = getFileKeyboard()
		}

		v.clearBusy(ctx)
		return v.send(ctx, errorText(state.ErrorMessage()), keyboard)
	}

	return nil
}

// Copy sends the summary as code blocks.
func (v *chatView) Copy(ctx context.Context, text string) error {
	var errs []error

	for _, message := range copyMessages(text) {
		errs = append(errs, v.send(ctx, message, nil))
	}

	return errors.Join(errs...)
}

func (v *chatView) showBusy(ctx context.Context) error {
	message, err := sendMessage(ctx, v.api, v.log, v.chatID, busyText, nil)
	if err != nil {
		return fmt.Errorf("send busy message: %w", err)
	}

	v.mu.Lock()
	v.busyMessageID = message.MessageID
	v.mu.Unlock()

	return nil
}

// clearBusy removes the busy message if one is shown. It is safe to call more
// than once.
func (v *chatView) clearBusy(ctx context.Context) {
	v.mu.Lock()
	messageID := v.busyMessageID
	v.busyMessageID = 0
	v.mu.Unlock()

	if messageID == 0 {
		return
	}

	if _, err := v.api.Request(tgbotapi.NewDeleteMessage(v.chatID, messageID)); err != nil {
		v.log.WarnContext(ctx, "Failed to delete busy message",
			"error", err,
			"chatID", v.chatID,
			"messageID", messageID)
	}
}

func (v *chatView) send(
	ctx context.Context,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	if _, err := sendMessage(ctx, v.api, v.log, v.chatID, text, keyboard); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}
