package summarizer

import "fmt"

const (
	fallbackServerMessage    = "Network response was not ok"
	malformedResponseMessage = "Failed to upload and summarize the PDF."
)

// NetworkError means the endpoint could not be reached or the exchange broke
// before a response was read.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError means the endpoint answered but the answer is a failure: either a
// non-2xx status or a 2xx body without a usable reply.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

func (e *ServerError) String() string {
	return fmt.Sprintf("server error (status = %d): %s", e.StatusCode, e.Message)
}
