package bot

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"sumibot/internal/domain"
	"sumibot/internal/ratelimiter"
	"sumibot/internal/summarizer"
	"sumibot/internal/upload"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	updateProcessingTimeout   = 60 * time.Second
	uploadsShutdownTimeout    = 10 * time.Second

	BotUpdateTimeout = 60
)

// History stores resolved upload attempts.
type History interface {
	AddSummary(ctx context.Context, record *domain.SummaryRecord) error
	GetUserSummaries(ctx context.Context, userID int64, limit int) ([]domain.SummaryRecord, error)
}

type Bot struct {
	api          *tgbotapi.BotAPI
	rateLimiter  ratelimiter.API
	files        fileURLResolver
	httpClient   *http.Client
	linkClient   *http.Client
	summarizer   summarizer.Summarizer
	history      History
	sessions     *Sessions
	allowedUsers []int64
	maxFileSize  int64
	menuKeyboard [][]tgbotapi.InlineKeyboardButton
	uploads      sync.WaitGroup
	now          func() time.Time
	log          *slog.Logger
}

func New(
	token string,
	s summarizer.Summarizer,
	history History,
	allowedUsers []int64,
	maxFileSize int64,
	log *slog.Logger,
) (*Bot, error) {
	token = strings.TrimSpace(token)

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(ratelimiter.New(api, log), api, s, history, allowedUsers, maxFileSize, log)
	b.api = api

	return b, nil
}

func newBot(
	rateLimiter ratelimiter.API,
	files fileURLResolver,
	s summarizer.Summarizer,
	history History,
	allowedUsers []int64,
	maxFileSize int64,
	log *slog.Logger,
) *Bot {
	b := &Bot{
		rateLimiter:  rateLimiter,
		files:        files,
		httpClient:   &http.Client{},
		linkClient:   newLinkClient(),
		summarizer:   s,
		history:      history,
		allowedUsers: allowedUsers,
		maxFileSize:  maxFileSize,
		menuKeyboard: getMenuKeyboard(),
		now:          time.Now,
		log:          log,
	}

	b.sessions = newSessions(b.newSession)

	return b
}

func (b *Bot) newSession(chatID int64) *session {
	log := b.log.With("chatID", chatID)
	view := newChatView(chatID, b.rateLimiter, log)

	ctrl := upload.New(b.summarizer, view, log,
		upload.WithObserver(view.render),
		upload.WithMaxFileSize(b.maxFileSize),
		upload.WithClock(b.now))

	return &session{ctrl: ctrl, view: view}
}

// Sessions exposes the per-chat registry for sweeping and health reporting.
func (b *Bot) Sessions() *Sessions {
	return b.sessions
}

func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		default:
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		if ctx.Err() != nil {
			return
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		time.Sleep(time.Duration(backoffSeconds) * time.Second)

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		chatID, chatType := chatContext(update.Message.Chat)

		if update.Message.From == nil {
			return
		}

		userID := update.Message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", chatID,
				"username", update.Message.From.UserName,
				"chatType", chatType)

			return
		}

		if err := b.handleMessage(updateCtx, update.Message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"chatType", chatType,
				"messageID", update.Message.MessageID)
		}

	case update.CallbackQuery != nil:
		chatID := callbackChatID(update.CallbackQuery)

		if !b.userAllowed(update.CallbackQuery.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", update.CallbackQuery.From.ID,
				"chatID", chatID,
				"username", update.CallbackQuery.From.UserName,
				"data", update.CallbackQuery.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, update.CallbackQuery); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", update.CallbackQuery.From.ID,
				"data", update.CallbackQuery.Data,
				"messageID", callbackMessageID(update.CallbackQuery))
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func chatContext(chat *tgbotapi.Chat) (int64, string) {
	if chat == nil {
		return 0, ""
	}

	return chat.ID, chat.Type
}

func callbackChatID(cb *tgbotapi.CallbackQuery) int64 {
	if cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *tgbotapi.CallbackQuery) int {
	if cb != nil && cb.Message != nil {
		return cb.Message.MessageID
	}

	return 0
}

// Stop waits a bounded time for uploads in flight so their outcomes are
// rendered and recorded, then stops outgoing traffic.
func (b *Bot) Stop() {
	done := make(chan struct{})
	go func() {
		b.uploads.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(uploadsShutdownTimeout):
		b.log.Warn("Uploads are still in flight after shutdown timeout",
			"timeout", uploadsShutdownTimeout)
	}

	if rl, ok := b.rateLimiter.(*ratelimiter.RateLimiter); ok {
		rl.Stop()
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
