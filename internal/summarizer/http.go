package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "http://localhost:8000/upload-pdf"
	FormFieldName   = "pdf"

	defaultFileName      = "document.pdf"
	pdfContentType       = "application/pdf"
	maxResponseBodyBytes = 1 << 20
)

//nolint:gochecknoglobals // Immutable replacer, same escaping as mime/multipart.
var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// HTTPSummarizer uploads a PDF to the summary endpoint as multipart form data
// and returns the endpoint's reply.
type HTTPSummarizer struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPSummarizer builds a new summarizer instance. A zero timeout means the
// request runs without a deadline.
func NewHTTPSummarizer(
	endpoint string,
	timeout time.Duration,
	log *slog.Logger,
) (*HTTPSummarizer, error) {
	endpoint = strings.TrimSpace(endpoint)

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute http(s) URL (endpoint = %s)", endpoint)
	}

	return &HTTPSummarizer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}, nil
}

func (s *HTTPSummarizer) Endpoint() string {
	return s.endpoint
}

// Summarize performs exactly one upload and returns the reply verbatim, even
// when it is empty. Failures are *NetworkError when no response was received
// and *ServerError otherwise.
func (s *HTTPSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	if input.Content == nil {
		return "", &NetworkError{Err: errors.New("input content is empty")}
	}

	body, contentType, err := buildMultipartBody(input)
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("read content: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			s.log.WarnContext(ctx, "Failed to close response body",
				"error", err,
				"endpoint", s.endpoint)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}

	reply, ok := parseReply(raw)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := fallbackServerMessage
		if ok && reply != "" {
			message = reply
		}

		return "", &ServerError{StatusCode: resp.StatusCode, Message: message}
	}

	if !ok {
		s.log.WarnContext(ctx, "Summary response has no reply",
			"statusCode", resp.StatusCode,
			"bodyLen", len(raw),
			"endpoint", s.endpoint)

		return "", &ServerError{StatusCode: resp.StatusCode, Message: malformedResponseMessage}
	}

	return reply, nil
}

func buildMultipartBody(input Input) (*bytes.Buffer, string, error) {
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		fileName = defaultFileName
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name="%s"; filename="%s"`,
		FormFieldName,
		quoteEscaper.Replace(fileName),
	))
	header.Set("Content-Type", pdfContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create part: %w", err)
	}

	if _, err = io.Copy(part, input.Content); err != nil {
		return nil, "", fmt.Errorf("copy content: %w", err)
	}

	if err = w.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// parseReply extracts a string "reply" field. ok is false when the body is not
// JSON, the field is absent, or it is not a string.
func parseReply(raw []byte) (string, bool) {
	var body struct {
		Reply *string `json:"reply"`
	}

	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false
	}

	if body.Reply == nil {
		return "", false
	}

	return *body.Reply, true
}
