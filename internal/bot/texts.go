package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"sumibot/internal/domain"
	"sumibot/internal/markdown"
	"sumibot/internal/upload"

	"github.com/dustin/go-humanize"
)

// Raw text is split before escaping; escaping at most doubles a chunk and the
// result must stay under the 4096 byte message limit.
const (
	summaryChunkSize       = 1800
	historySnippetRunes    = 120
	historyLimit           = 5
	unknownFileNameDisplay = "document.pdf"
)

const welcomeText = `🤖 *Welcome to Sumibot\!*

I summarize PDF documents\. To get a summary:

– Send me a PDF file or an https link to one
– Press *📤 Upload & Summarize* or use /summarize
– Copy the summary with *📋 Copy* or /copy

Other commands:

– /history shows your last summaries
– /reset clears the current file`

const (
	busyText            = "⏳ *Summarizing\\.\\.\\.*"
	alreadyBusyText     = "⏳ Already summarizing\\.\\.\\."
	alreadyBusyToast    = "⏳ Already summarizing..."
	idleText            = "🗑 Cleared\\. Send me a PDF to summarize\\."
	nothingToCopyText   = "✖️ There is no summary to copy yet\\."
	nothingToCopyToast  = "✖️ There is no summary to copy yet."
	notAFileText        = "✖️ Send me a PDF document or an https link to a PDF\\."
	emptyHistoryText    = "✖️ History is empty\\."
	failedText          = "❌ Failed\\."
	failedCallbackToast = "❌ Failed."
)

func displayName(file upload.File) string {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		return unknownFileNameDisplay
	}

	return name
}

func fileSelectedText(file upload.File) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("📄 *%s* is selected", markdown.EscapeV2(displayName(file))))

	if file.Size > 0 {
		text.WriteString(fmt.Sprintf(" \\(%s\\)", markdown.EscapeV2(humanize.IBytes(uint64(file.Size)))))
	}

	text.WriteString("\\.\n\nPress *📤 Upload & Summarize* to get its summary\\.")

	return text.String()
}

func errorText(message string) string {
	return "❌ " + markdown.EscapeV2(message)
}

// summaryMessages renders a summary as one or more messages. Only the first
// one carries the header.
func summaryMessages(file upload.File, summary string) []string {
	chunks := markdown.Split(summary, summaryChunkSize)
	messages := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		text := markdown.EscapeV2(chunk)
		if i == 0 {
			text = fmt.Sprintf("📝 *Summary of %s:*\n\n%s", markdown.EscapeV2(displayName(file)), text)
		}

		messages = append(messages, text)
	}

	return messages
}

// copyMessages renders a summary as code blocks, which clients copy on tap.
func copyMessages(summary string) []string {
	chunks := markdown.Split(summary, summaryChunkSize)
	messages := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		messages = append(messages, markdown.CodeBlockV2(chunk))
	}

	return messages
}

func historyText(records []domain.SummaryRecord, now time.Time) string {
	if len(records) == 0 {
		return emptyHistoryText
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("🗂 *Last %d summaries:*\n", len(records)))

	for i, record := range records {
		name := record.FileName
		if strings.TrimSpace(name) == "" {
			name = unknownFileNameDisplay
		}

		text.WriteString(fmt.Sprintf("\n%d\\. %s *%s* \\(%s\\)\n",
			i+1,
			statusIcon(record.Status),
			markdown.EscapeV2(name),
			markdown.EscapeV2(humanize.RelTime(record.CreatedAt, now, "ago", "from now"))))

		switch record.Status {
		case domain.AttemptStatusSucceeded:
			text.WriteString(markdown.EscapeV2(snippet(record.Summary, historySnippetRunes)))
		case domain.AttemptStatusFailed:
			text.WriteString(markdown.EscapeV2(snippet(record.Error, historySnippetRunes)))
		case domain.AttemptStatusStale:
			text.WriteString("_discarded, the file was replaced_")
		}

		text.WriteString("\n")
	}

	return text.String()
}

func statusIcon(status domain.AttemptStatus) string {
	switch status {
	case domain.AttemptStatusSucceeded:
		return "✅"
	case domain.AttemptStatusFailed:
		return "❌"
	default:
		return "⏭"
	}
}

// snippet collapses whitespace and cuts s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)

	return strings.TrimSpace(string(runes[:n])) + "..."
}
