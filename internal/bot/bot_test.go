package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sumibot/internal/domain"
	"sumibot/internal/summarizer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChatID = int64(42)
	testUserID = int64(7)
)

type fakeAPI struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	deleted  []int
	answers  []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, m)
	}

	return tgbotapi.Message{MessageID: len(f.messages)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch m := c.(type) {
	case tgbotapi.DeleteMessageConfig:
		f.deleted = append(f.deleted, m.MessageID)
	case tgbotapi.CallbackConfig:
		f.answers = append(f.answers, m.Text)
	}

	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	texts := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		texts = append(texts, m.Text)
	}

	return texts
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}

	return texts[len(texts)-1]
}

type fakeFiles struct {
	url string
	err error
}

func (f fakeFiles) GetFileDirectURL(string) (string, error) {
	return f.url, f.err
}

type stubSummarizer struct {
	mu      sync.Mutex
	calls   int
	got     string
	summary string
	err     error
	release chan struct{}
}

func (s *stubSummarizer) Summarize(_ context.Context, input summarizer.Input) (string, error) {
	content, err := io.ReadAll(input.Content)
	if err != nil {
		return "", &summarizer.NetworkError{Err: err}
	}

	s.mu.Lock()
	s.calls++
	s.got = string(content)
	s.mu.Unlock()

	if s.release != nil {
		<-s.release
	}

	return s.summary, s.err
}

func (s *stubSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

type memoryHistory struct {
	mu      sync.Mutex
	records []domain.SummaryRecord
	err     error
}

func (h *memoryHistory) AddSummary(_ context.Context, record *domain.SummaryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, *record)
	return nil
}

func (h *memoryHistory) GetUserSummaries(_ context.Context, userID int64, limit int) ([]domain.SummaryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return nil, h.err
	}

	var records []domain.SummaryRecord
	for i := len(h.records) - 1; i >= 0 && len(records) < limit; i-- {
		if h.records[i].UserID == userID {
			records = append(records, h.records[i])
		}
	}

	return records, nil
}

func (h *memoryHistory) all() []domain.SummaryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]domain.SummaryRecord(nil), h.records...)
}

type testBot struct {
	*Bot
	api     *fakeAPI
	history *memoryHistory
}

func newTestBot(t *testing.T, s summarizer.Summarizer, files fileURLResolver, allowedUsers ...int64) *testBot {
	t.Helper()

	api := &fakeAPI{}
	history := &memoryHistory{}

	b := newBot(api, files, s, history, allowedUsers, 20*1024*1024, slog.New(slog.DiscardHandler))
	t.Cleanup(b.uploads.Wait)

	return &testBot{Bot: b, api: api, history: history}
}

func documentUpdate(name, mimeType string) *tgbotapi.Update {
	return &tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: testUserID},
			Chat:      &tgbotapi.Chat{ID: testChatID, Type: "private"},
			Document: &tgbotapi.Document{
				FileID:   "file-id",
				FileName: name,
				MimeType: mimeType,
				FileSize: 4,
			},
		},
	}
}

func textUpdate(text string) *tgbotapi.Update {
	update := &tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 2,
			From:      &tgbotapi.User{ID: testUserID},
			Chat:      &tgbotapi.Chat{ID: testChatID, Type: "private"},
			Text:      text,
		},
	}

	if strings.HasPrefix(text, "/") {
		command := strings.Fields(text)[0]
		update.Message.Entities = []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(command)},
		}
	}

	return update
}

func callbackUpdate(data string) *tgbotapi.Update {
	return &tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "callback-id",
			From: &tgbotapi.User{ID: testUserID},
			Message: &tgbotapi.Message{
				MessageID: 3,
				Chat:      &tgbotapi.Chat{ID: testChatID, Type: "private"},
			},
			Data: data,
		},
	}
}

func pdfServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF")
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestDocumentUploadAndSummarize(t *testing.T) {
	srv := pdfServer(t)
	stub := &stubSummarizer{summary: "This report covers Q3 results."}
	b := newTestBot(t, stub, fakeFiles{url: srv.URL + "/file/report.pdf"})
	ctx := context.Background()

	b.handleUpdate(ctx, documentUpdate("report.pdf", "application/pdf"))
	assert.Contains(t, b.api.lastText(), "report\\.pdf")
	assert.Zero(t, stub.callCount())

	b.handleUpdate(ctx, callbackUpdate(callbackSummarize))
	b.uploads.Wait()

	assert.Equal(t, 1, stub.callCount())
	assert.Equal(t, "%PDF", stub.got)

	texts := b.api.texts()
	assert.Contains(t, texts, busyText)
	assert.Contains(t, b.api.lastText(), "This report covers Q3 results\\.")
	assert.Len(t, b.api.deleted, 1)

	records := b.history.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.AttemptStatusSucceeded, records[0].Status)
	assert.Equal(t, "report.pdf", records[0].FileName)
	assert.Equal(t, testUserID, records[0].UserID)
	assert.Equal(t, testChatID, records[0].ChatID)
	assert.NotEmpty(t, records[0].ID)
}

func TestNonPDFDocumentIsRejected(t *testing.T) {
	stub := &stubSummarizer{}
	b := newTestBot(t, stub, fakeFiles{})

	b.handleUpdate(context.Background(), documentUpdate("notes.txt", "text/plain"))

	assert.Equal(t, "❌ Please upload a valid PDF file\\.", b.api.lastText())
}

func TestSummarizeWithoutFile(t *testing.T) {
	stub := &stubSummarizer{}
	b := newTestBot(t, stub, fakeFiles{})

	b.handleUpdate(context.Background(), textUpdate("/summarize"))
	b.uploads.Wait()

	assert.Equal(t, "❌ Please select a PDF file to upload\\.", b.api.lastText())
	assert.Zero(t, stub.callCount())
	assert.Empty(t, b.history.all())
}

func TestServerErrorIsShownAndRecorded(t *testing.T) {
	srv := pdfServer(t)
	stub := &stubSummarizer{err: &summarizer.ServerError{StatusCode: 500, Message: "bad file"}}
	b := newTestBot(t, stub, fakeFiles{url: srv.URL})
	ctx := context.Background()

	b.handleUpdate(ctx, documentUpdate("report.pdf", "application/pdf"))
	b.handleUpdate(ctx, textUpdate("/summarize"))
	b.uploads.Wait()

	assert.Equal(t, "❌ bad file", b.api.lastText())

	records := b.history.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.AttemptStatusFailed, records[0].Status)
	assert.Equal(t, "bad file", records[0].Error)
}

func TestSecondSummarizeWhileBusyIsRejected(t *testing.T) {
	srv := pdfServer(t)
	stub := &stubSummarizer{summary: "done", release: make(chan struct{})}
	b := newTestBot(t, stub, fakeFiles{url: srv.URL})
	ctx := context.Background()

	b.handleUpdate(ctx, documentUpdate("report.pdf", "application/pdf"))
	b.handleUpdate(ctx, callbackUpdate(callbackSummarize))

	require.Eventually(t, func() bool { return stub.callCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	b.handleUpdate(ctx, callbackUpdate(callbackSummarize))
	assert.Contains(t, b.api.answers, alreadyBusyToast)

	close(stub.release)
	b.uploads.Wait()

	assert.Equal(t, 1, stub.callCount())
}

func TestCopySummary(t *testing.T) {
	srv := pdfServer(t)
	stub := &stubSummarizer{summary: "copy `me`"}
	b := newTestBot(t, stub, fakeFiles{url: srv.URL})
	ctx := context.Background()

	b.handleUpdate(ctx, textUpdate("/copy"))
	assert.Equal(t, nothingToCopyText, b.api.lastText())

	b.handleUpdate(ctx, documentUpdate("report.pdf", "application/pdf"))
	b.handleUpdate(ctx, textUpdate("/summarize"))
	b.uploads.Wait()

	b.handleUpdate(ctx, callbackUpdate(callbackCopy))
	assert.Equal(t, "```\ncopy \\`me\\`\n```", b.api.lastText())
}

func TestResetDuringUploadDiscardsOutcome(t *testing.T) {
	srv := pdfServer(t)
	stub := &stubSummarizer{summary: "late", release: make(chan struct{})}
	b := newTestBot(t, stub, fakeFiles{url: srv.URL})
	ctx := context.Background()

	b.handleUpdate(ctx, documentUpdate("report.pdf", "application/pdf"))
	b.handleUpdate(ctx, textUpdate("/summarize"))
	require.Eventually(t, func() bool { return stub.callCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	b.handleUpdate(ctx, textUpdate("/reset"))
	close(stub.release)
	b.uploads.Wait()

	assert.Equal(t, idleText, b.api.lastText())

	records := b.history.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.AttemptStatusStale, records[0].Status)
}

func TestHistoryCommand(t *testing.T) {
	b := newTestBot(t, &stubSummarizer{}, fakeFiles{})
	ctx := context.Background()

	b.handleUpdate(ctx, textUpdate("/history"))
	assert.Equal(t, emptyHistoryText, b.api.lastText())

	b.history.err = errors.New("database is locked")
	b.handleUpdate(ctx, textUpdate("/history"))
	assert.Equal(t, failedText, b.api.lastText())
}

func TestLinkPick(t *testing.T) {
	b := newTestBot(t, &stubSummarizer{}, fakeFiles{})
	ctx := context.Background()

	b.handleUpdate(ctx, textUpdate("please summarize https://example.com/papers/q3%20report.pdf thanks"))
	assert.Contains(t, b.api.lastText(), "q3 report\\.pdf")

	b.handleUpdate(ctx, textUpdate("just text"))
	assert.Equal(t, notAFileText, b.api.lastText())
}

func TestUserNotAllowed(t *testing.T) {
	b := newTestBot(t, &stubSummarizer{}, fakeFiles{}, 1000)

	b.handleUpdate(context.Background(), textUpdate("/start"))

	assert.Empty(t, b.api.texts())
}

func TestUpdateBackoffSeconds(t *testing.T) {
	assert.Equal(t, 6, updateBackoffSeconds(3))
	assert.Equal(t, 60, updateBackoffSeconds(48))
	assert.Equal(t, 60, updateBackoffSeconds(60))
}
