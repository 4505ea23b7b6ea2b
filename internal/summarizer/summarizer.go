package summarizer

import (
	"context"
	"io"
)

// Input describes the payload for a summary request.
type Input struct {
	// FileName is sent as the filename of the uploaded part.
	FileName string
	// Content streams the raw PDF bytes.
	Content io.Reader
}

// Summarizer produces a single summary for a given document.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
