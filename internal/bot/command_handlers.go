package bot

import (
	"context"
	"errors"
	"fmt"

	"sumibot/internal/domain"
	"sumibot/internal/upload"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleSummarize starts an upload for the chat. The callback is nil when the
// request came from a command.
func (b *Bot) handleSummarize(
	ctx context.Context,
	chatID int64,
	userID int64,
	callback *tgbotapi.CallbackQuery,
) error {
	sess := b.sessions.get(chatID)

	// The upload outlives the update, it has no deadline of its own.
	uploadCtx := context.WithoutCancel(ctx)

	state, done, err := sess.ctrl.StartUpload(uploadCtx)
	if errors.Is(err, upload.ErrUploadInProgress) {
		b.log.InfoContext(ctx, "Upload is already in flight",
			"chatID", chatID,
			"userID", userID)

		if callback != nil {
			return b.callbackAnswer(callback, alreadyBusyToast)
		}

		return b.sendMessageWithKeyboard(ctx, chatID, alreadyBusyText, nil)
	}
	if err != nil {
		return fmt.Errorf("start upload: %w", err)
	}

	var errs []error
	if callback != nil {
		errs = append(errs, b.callbackAnswer(callback, ""))
	}

	if state.Phase() != upload.PhaseUploading {
		return errors.Join(errs...)
	}

	b.uploads.Add(1)
	go func() {
		defer b.uploads.Done()

		if err := b.awaitOutcome(uploadCtx, chatID, userID, sess, done); err != nil {
			b.log.ErrorContext(uploadCtx, "Failed to finish upload",
				"error", err,
				"chatID", chatID,
				"userID", userID)
		}
	}()

	return errors.Join(errs...)
}

func (b *Bot) awaitOutcome(
	ctx context.Context,
	chatID int64,
	userID int64,
	sess *session,
	done <-chan upload.Outcome,
) error {
	return b.withSpinner(ctx, chatID, tgbotapi.ChatTyping, func() error {
		outcome := <-done

		// A stale outcome is never rendered, so the busy message is still up.
		sess.view.clearBusy(ctx)

		b.log.InfoContext(ctx, "Upload is done",
			"attemptID", outcome.AttemptID,
			"chatID", chatID,
			"userID", userID,
			"fileName", outcome.File.Name,
			"phase", outcome.State.Phase().String(),
			"stale", outcome.Stale,
			"failed", outcome.Err != nil,
			"durationMS", outcome.Duration.Milliseconds())

		return b.recordOutcome(ctx, chatID, userID, outcome)
	})
}

func (b *Bot) recordOutcome(ctx context.Context, chatID int64, userID int64, outcome upload.Outcome) error {
	if b.history == nil || outcome.AttemptID == "" {
		return nil
	}

	record := &domain.SummaryRecord{
		ID:         outcome.AttemptID,
		UserID:     userID,
		ChatID:     chatID,
		FileName:   outcome.File.Name,
		FileSize:   outcome.File.Size,
		Status:     domain.AttemptStatusSucceeded,
		Summary:    outcome.Summary,
		DurationMS: outcome.Duration.Milliseconds(),
		CreatedAt:  b.now(),
	}

	if outcome.Err != nil {
		record.Status = domain.AttemptStatusFailed
		record.Error = outcome.Err.Error()
	}

	if outcome.Stale {
		record.Status = domain.AttemptStatusStale
	}

	if err := b.history.AddSummary(ctx, record); err != nil {
		return fmt.Errorf("add summary: %w", err)
	}

	return nil
}

func (b *Bot) handleCopy(ctx context.Context, chatID int64, callback *tgbotapi.CallbackQuery) error {
	copied, err := b.sessions.get(chatID).ctrl.CopySummary(ctx)
	if err != nil {
		if callback != nil {
			return b.errorCallbackAnswer(callback, fmt.Errorf("copy summary: %w", err))
		}

		return errors.Join(
			fmt.Errorf("copy summary: %w", err),
			b.sendMessageWithKeyboard(ctx, chatID, failedText, nil),
		)
	}

	if callback != nil {
		if !copied {
			return b.callbackAnswer(callback, nothingToCopyToast)
		}

		return b.callbackAnswer(callback, "")
	}

	if !copied {
		return b.sendMessageWithKeyboard(ctx, chatID, nothingToCopyText, b.menuKeyboard)
	}

	return nil
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, userID int64) error {
	if b.history == nil {
		return b.sendMessageWithKeyboard(ctx, chatID, emptyHistoryText, nil)
	}

	records, err := b.history.GetUserSummaries(ctx, userID, historyLimit)
	if err != nil {
		errs := []error{fmt.Errorf("get user summaries: %w", err)}

		if sendErr := b.sendMessageWithKeyboard(ctx, chatID, failedText, nil); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, historyText(records, b.now()), nil)
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) error {
	b.sessions.get(chatID).ctrl.Reset(ctx)
	return nil
}
