package upload

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

const (
	MessageInvalidPDF   = "Please upload a valid PDF file."
	MessageNoFile       = "Please select a PDF file to upload."
	MessageUploadFailed = "Failed to upload and summarize the PDF."
)

var ErrUploadInProgress = errors.New("upload is already in progress")

// ValidationError is a user input problem detected before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func tooLargeError(maxFileSize int64) *ValidationError {
	return &ValidationError{
		Message: fmt.Sprintf("The file is too large (max %s).", humanize.IBytes(uint64(maxFileSize))),
	}
}
