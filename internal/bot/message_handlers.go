package bot

import (
	"context"
	"fmt"
	"strings"

	"sumibot/internal/upload"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	if message.Document != nil {
		return b.handleDocument(ctx, chatID, message.Document)
	}

	if message.IsCommand() {
		return b.handleCommand(ctx, message.Command(), chatID, userID)
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}

	return b.handleRandomText(ctx, text, chatID)
}

func (b *Bot) handleCommand(ctx context.Context, command string, chatID int64, userID int64) error {
	switch command {
	case "start", "help", "menu":
		return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
	case "summarize":
		return b.handleSummarize(ctx, chatID, userID, nil)
	case "copy":
		return b.handleCopy(ctx, chatID, nil)
	case "history":
		return b.handleHistory(ctx, chatID, userID)
	case "reset":
		return b.handleReset(ctx, chatID)
	default:
		return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
	}
}

// handleDocument stores the document as the chat's pick. Its content is
// downloaded only when it is uploaded.
func (b *Bot) handleDocument(ctx context.Context, chatID int64, document *tgbotapi.Document) error {
	file := upload.File{
		Name:      strings.TrimSpace(document.FileName),
		MediaType: document.MimeType,
		Size:      int64(document.FileSize),
		Source: &telegramFileSource{
			files:       b.files,
			client:      b.httpClient,
			fileID:      document.FileID,
			maxFileSize: b.maxFileSize,
		},
	}

	state := b.sessions.get(chatID).ctrl.SelectFile(ctx, file)

	b.log.InfoContext(ctx, "Document is picked",
		"chatID", chatID,
		"fileName", file.Name,
		"mediaType", file.MediaType,
		"size", file.Size,
		"phase", state.Phase().String())

	return nil
}

// handleRandomText picks the first https link in text.
func (b *Bot) handleRandomText(ctx context.Context, text string, chatID int64) error {
	links, err := findLinks(text)
	if err != nil {
		return fmt.Errorf("find links: %w", err)
	}

	if len(links) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID, notAFileText, b.menuKeyboard)
	}

	file := linkFile(links[0], b.linkClient, b.maxFileSize)

	state := b.sessions.get(chatID).ctrl.SelectFile(ctx, file)

	b.log.InfoContext(ctx, "Link is picked",
		"chatID", chatID,
		"fileName", file.Name,
		"mediaType", file.MediaType,
		"linkCount", len(links),
		"phase", state.Phase().String())

	return nil
}
