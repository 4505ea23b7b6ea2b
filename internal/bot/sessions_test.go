package bot

import (
	"context"
	"testing"
	"time"

	"sumibot/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsGetReusesChatSession(t *testing.T) {
	b := newTestBot(t, &stubSummarizer{}, fakeFiles{})

	first := b.sessions.get(1)
	assert.Same(t, first, b.sessions.get(1))
	assert.NotSame(t, first, b.sessions.get(2))
	assert.Equal(t, 2, b.Sessions().Len())
}

func TestSessionsSweep(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	b := newTestBot(t, &stubSummarizer{}, fakeFiles{})
	b.now = func() time.Time { return now }

	b.sessions.get(1)

	now = now.Add(30 * time.Minute)
	b.sessions.get(2)

	assert.Equal(t, 1, b.sessions.Sweep(now, time.Hour/2))
	assert.Equal(t, 1, b.sessions.Len())

	assert.Zero(t, b.sessions.Sweep(now, time.Hour))
}

func TestSessionsSweepKeepsBusySessions(t *testing.T) {
	srv := pdfServer(t)
	stub := &stubSummarizer{summary: "done", release: make(chan struct{})}
	b := newTestBot(t, stub, fakeFiles{url: srv.URL})

	sess := b.sessions.get(testChatID)
	sess.ctrl.SelectFile(context.Background(), upload.File{
		Name:      "report.pdf",
		MediaType: upload.PDFMediaType,
		Source:    upload.BytesSource("%PDF"),
	})

	_, done, err := sess.ctrl.StartUpload(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return stub.callCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	assert.Zero(t, b.sessions.Sweep(time.Now().Add(48*time.Hour), time.Hour))

	close(stub.release)
	<-done

	assert.Equal(t, 1, b.sessions.Sweep(time.Now().Add(48*time.Hour), time.Hour))
}
