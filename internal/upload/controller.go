package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sumibot/internal/summarizer"

	"github.com/google/uuid"
)

// Clipboard receives copied summaries.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Observer is notified after every state transition, in transition order.
// It must not call back into the Controller.
type Observer func(ctx context.Context, state State)

// Outcome describes one resolved upload attempt.
type Outcome struct {
	AttemptID string
	File      File
	// State is the controller state right after the attempt resolved.
	State    State
	Summary  string
	Err      error
	Duration time.Duration
	// Stale is set when the file was re-picked or reset while the upload was
	// in flight. The outcome was discarded and State is the newer state.
	Stale bool
}

type Option func(*Controller)

func WithObserver(observer Observer) Option {
	return func(c *Controller) {
		c.observer = observer
	}
}

// WithMaxFileSize rejects picks whose declared size exceeds n bytes.
func WithMaxFileSize(n int64) Option {
	return func(c *Controller) {
		c.maxFileSize = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller owns the state of one upload surface and drives the summary
// request. At most one upload is in flight at a time.
type Controller struct {
	summarizer  summarizer.Summarizer
	clipboard   Clipboard
	observer    Observer
	maxFileSize int64
	now         func() time.Time
	log         *slog.Logger

	mu         sync.Mutex
	state      State
	busy       bool
	generation uint64
	lastActive time.Time

	// notifyMu keeps observer calls in transition order without holding mu.
	notifyMu sync.Mutex
}

func New(
	s summarizer.Summarizer,
	clipboard Clipboard,
	log *slog.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		summarizer: s,
		clipboard:  clipboard,
		now:        time.Now,
		log:        log,
		state:      idleState(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.lastActive = c.now()

	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.busy
}

func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastActive
}

// SelectFile validates and stores a pick. An invalid pick clears any stored
// file and leaves the controller in Failed with a *ValidationError.
func (c *Controller) SelectFile(ctx context.Context, file File) State {
	c.mu.Lock()
	c.lastActive = c.now()
	c.generation++

	if !IsPDF(file.MediaType) {
		c.log.DebugContext(ctx, "File is rejected",
			"fileName", file.Name,
			"mediaType", file.MediaType)

		return c.commitLocked(ctx, failedState(nil, &ValidationError{Message: MessageInvalidPDF}))
	}

	if c.maxFileSize > 0 && file.Size > c.maxFileSize {
		c.log.DebugContext(ctx, "File is rejected",
			"fileName", file.Name,
			"size", file.Size,
			"maxFileSize", c.maxFileSize)

		return c.commitLocked(ctx, failedState(nil, tooLargeError(c.maxFileSize)))
	}

	return c.commitLocked(ctx, fileSelectedState(file))
}

// RequestUpload uploads the selected file and blocks until the summary
// endpoint resolves. It returns ErrUploadInProgress without side effects when
// another upload is in flight. Every other failure is reported through the
// resulting Failed state, never as the returned error.
func (c *Controller) RequestUpload(ctx context.Context) (Outcome, error) {
	a, err := c.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}

	if a.resolved {
		return a.outcome, nil
	}

	return c.resolve(ctx, a), nil
}

// StartUpload is the non-blocking form of RequestUpload. It returns the state
// right after the request was accepted and a channel that delivers exactly one
// Outcome. When no file is selected the channel is already filled.
func (c *Controller) StartUpload(ctx context.Context) (State, <-chan Outcome, error) {
	a, err := c.begin(ctx)
	if err != nil {
		return State{}, nil, err
	}

	done := make(chan Outcome, 1)

	if a.resolved {
		done <- a.outcome
		close(done)

		return a.started, done, nil
	}

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				c.log.ErrorContext(ctx, "Upload panicked",
					"panic", fmt.Sprint(r),
					"fileName", a.file.Name)

				done <- c.finish(ctx, a, Outcome{
					AttemptID: uuid.NewString(),
					File:      a.file,
					Err:       errors.New(MessageUploadFailed),
				})
			}
		}()

		done <- c.resolve(ctx, a)
	}()

	return a.started, done, nil
}

type attempt struct {
	file       File
	generation uint64
	started    State
	// resolved is set when the request failed validation and no upload runs.
	resolved bool
	outcome  Outcome
	// released is guarded by Controller.mu.
	released bool
}

func (c *Controller) begin(ctx context.Context) (*attempt, error) {
	c.mu.Lock()

	if c.busy {
		c.mu.Unlock()
		return nil, ErrUploadInProgress
	}

	c.lastActive = c.now()

	file, ok := c.state.File()
	if !ok {
		err := &ValidationError{Message: MessageNoFile}
		state := c.commitLocked(ctx, failedState(nil, err))

		return &attempt{
			started:  state,
			resolved: true,
			outcome:  Outcome{State: state, Err: err},
		}, nil
	}

	c.busy = true
	generation := c.generation
	state := c.commitLocked(ctx, uploadingState(file))

	return &attempt{file: file, generation: generation, started: state}, nil
}

// resolve runs the upload of an accepted attempt and releases the busy guard
// on every path, panics included.
func (c *Controller) resolve(ctx context.Context, a *attempt) Outcome {
	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if !a.released {
			c.busy = false
			a.released = true
		}
	}()

	outcome := Outcome{
		AttemptID: uuid.NewString(),
		File:      a.file,
	}

	start := c.now()
	outcome.Summary, outcome.Err = c.upload(ctx, a.file)
	outcome.Duration = c.now().Sub(start)

	return c.finish(ctx, a, outcome)
}

// finish commits the outcome of an attempt unless the file was re-picked or
// reset in the meantime.
func (c *Controller) finish(ctx context.Context, a *attempt, outcome Outcome) Outcome {
	c.mu.Lock()
	if !a.released {
		c.busy = false
		a.released = true
	}
	c.lastActive = c.now()

	if c.generation != a.generation {
		outcome.Stale = true
		outcome.State = c.snapshotLocked()
		c.mu.Unlock()

		c.log.InfoContext(ctx, "Stale upload outcome is discarded",
			"attemptID", outcome.AttemptID,
			"fileName", a.file.Name,
			"phase", outcome.State.Phase().String(),
			"failed", outcome.Err != nil)

		return outcome
	}

	if outcome.Err != nil {
		outcome.State = c.commitLocked(ctx, failedState(&a.file, outcome.Err))
	} else {
		outcome.State = c.commitLocked(ctx, succeededState(a.file, outcome.Summary))
	}

	return outcome
}

// CopySummary copies the current summary to the clipboard. It reports false
// and does nothing when no summary is present.
func (c *Controller) CopySummary(ctx context.Context) (bool, error) {
	c.mu.Lock()
	c.lastActive = c.now()
	summary, ok := c.state.Summary()
	c.mu.Unlock()

	if !ok {
		return false, nil
	}

	if c.clipboard == nil {
		return false, errors.New("clipboard is not configured")
	}

	if err := c.clipboard.Copy(ctx, summary); err != nil {
		return false, fmt.Errorf("copy summary: %w", err)
	}

	return true, nil
}

// Reset returns to Idle. An upload in flight keeps running but its outcome
// becomes stale.
func (c *Controller) Reset(ctx context.Context) State {
	c.mu.Lock()
	c.lastActive = c.now()
	c.generation++

	return c.commitLocked(ctx, idleState())
}

func (c *Controller) upload(ctx context.Context, file File) (string, error) {
	if file.Source == nil {
		return "", &summarizer.NetworkError{Err: errors.New("file content is unavailable")}
	}

	content, err := file.Source.Open(ctx)
	if err != nil {
		return "", &summarizer.NetworkError{Err: fmt.Errorf("open file: %w", err)}
	}
	defer func() {
		if err = content.Close(); err != nil {
			c.log.WarnContext(ctx, "Failed to close file content",
				"error", err,
				"fileName", file.Name)
		}
	}()

	return c.summarizer.Summarize(ctx, summarizer.Input{
		FileName: file.Name,
		Content:  content,
	})
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.busy = c.busy
	return s
}

// commitLocked must be called with mu held and returns with it released.
func (c *Controller) commitLocked(ctx context.Context, next State) State {
	c.state = next
	snapshot := c.snapshotLocked()

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	if c.observer != nil {
		c.observer(ctx, snapshot)
	}

	return snapshot
}
