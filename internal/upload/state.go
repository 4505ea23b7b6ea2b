package upload

import (
	"bytes"
	"context"
	"io"
	"mime"
	"strings"
)

const PDFMediaType = "application/pdf"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFileSelected
	PhaseUploading
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFileSelected:
		return "fileSelected"
	case PhaseUploading:
		return "uploading"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source opens the content of a selected file. It is called once per upload
// attempt, so implementations may download lazily.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// BytesSource serves content already held in memory.
type BytesSource []byte

func (b BytesSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// File is a user pick: declared metadata plus a handle to its content.
type File struct {
	Name      string
	MediaType string
	// Size is the declared size in bytes, 0 when unknown.
	Size   int64
	Source Source
}

// IsPDF reports whether the declared media type is application/pdf.
// Parameters and letter case are ignored.
func IsPDF(mediaType string) bool {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return false
	}

	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}

	return parsed == PDFMediaType
}

// State is a tagged variant:
//
//	Idle | FileSelected(file) | Uploading(file) | Succeeded(file, summary) | Failed(file?, err)
//
// Only Succeeded carries a summary and only Failed carries an error.
type State struct {
	phase   Phase
	file    *File
	summary string
	err     error
	busy    bool
}

func idleState() State {
	return State{phase: PhaseIdle}
}

func fileSelectedState(f File) State {
	return State{phase: PhaseFileSelected, file: &f}
}

func uploadingState(f File) State {
	return State{phase: PhaseUploading, file: &f}
}

func succeededState(f File, summary string) State {
	return State{phase: PhaseSucceeded, file: &f, summary: summary}
}

func failedState(f *File, err error) State {
	return State{phase: PhaseFailed, file: f, err: err}
}

func (s State) Phase() Phase {
	return s.phase
}

func (s State) File() (File, bool) {
	if s.file == nil {
		return File{}, false
	}
	return *s.file, true
}

func (s State) Summary() (string, bool) {
	if s.phase != PhaseSucceeded {
		return "", false
	}
	return s.summary, true
}

func (s State) Err() error {
	if s.phase != PhaseFailed {
		return nil
	}
	return s.err
}

// ErrorMessage is the text shown to the user for a Failed state.
func (s State) ErrorMessage() string {
	if s.phase != PhaseFailed {
		return ""
	}

	if s.err == nil || s.err.Error() == "" {
		return MessageUploadFailed
	}

	return s.err.Error()
}

// Busy reports whether an upload was in flight when the snapshot was taken.
// It can be true outside PhaseUploading when a new file was picked meanwhile.
func (s State) Busy() bool {
	return s.busy
}
