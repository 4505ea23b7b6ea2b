package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"sumibot/internal/upload"

	"mvdan.cc/xurls/v2"
)

const linkDialTimeout = 10 * time.Second

var errNonPublicHost = errors.New("host is not a public address")

// fileURLResolver is the subset of *tgbotapi.BotAPI used to locate uploaded
// documents.
type fileURLResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

// telegramFileSource downloads a document only when it is uploaded.
type telegramFileSource struct {
	files       fileURLResolver
	client      *http.Client
	fileID      string
	maxFileSize int64
}

func (s *telegramFileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	link, err := s.files.GetFileDirectURL(s.fileID)
	if err != nil {
		return nil, fmt.Errorf("get file URL: %w", redactURL(err))
	}

	return openURL(ctx, s.client, link, s.maxFileSize)
}

type linkSource struct {
	client      *http.Client
	link        string
	maxFileSize int64
}

func (s *linkSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return openURL(ctx, s.client, s.link, s.maxFileSize)
}

func openURL(ctx context.Context, client *http.Client, link string, maxFileSize int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", redactURL(err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", redactURL(err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	if maxFileSize <= 0 {
		return resp.Body, nil
	}

	if resp.ContentLength > maxFileSize {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download file: size %d exceeds %d bytes", resp.ContentLength, maxFileSize)
	}

	return http.MaxBytesReader(nil, resp.Body, maxFileSize), nil
}

// redactURL drops the URL from transport errors. Telegram file URLs carry the
// bot token.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}

	return err
}

// findLinks returns the https links in text, in order of appearance.
func findLinks(text string) ([]string, error) {
	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	var links []string

	for _, match := range httpsURLRe.FindAllString(text, -1) {
		u, parseErr := url.Parse(match)
		if parseErr != nil || u.Host == "" || !publicHost(u.Hostname()) {
			continue
		}

		links = append(links, match)
	}

	return links, nil
}

// linkFile describes a link as a pick. The media type comes from the path
// extension, so links that do not end in .pdf are rejected by the controller.
func linkFile(link string, client *http.Client, maxFileSize int64) upload.File {
	name := ""
	mediaType := ""

	if u, err := url.Parse(link); err == nil {
		name = path.Base(u.Path)
		if unescaped, unescapeErr := url.PathUnescape(name); unescapeErr == nil {
			name = unescaped
		}

		ext := strings.ToLower(path.Ext(u.Path))
		if ext == ".pdf" {
			mediaType = upload.PDFMediaType
		} else if ext != "" {
			mediaType = mime.TypeByExtension(ext)
		}
	}

	if name == "." || name == "/" {
		name = ""
	}

	return upload.File{
		Name:      name,
		MediaType: mediaType,
		Source: &linkSource{
			client:      client,
			link:        link,
			maxFileSize: maxFileSize,
		},
	}
}

// newLinkClient returns the client used for user supplied links. It refuses to
// connect to loopback, private and link-local addresses, redirects included.
func newLinkClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: linkDialTimeout,
		Control: dialPublicOnly,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{Transport: transport}
}

// dialPublicOnly runs after name resolution, so address is always an IP.
func dialPublicOnly(network string, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("split host port: %w", err)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}

	if !publicAddr(addr) {
		return fmt.Errorf("dial %s %s: %w", network, address, errNonPublicHost)
	}

	return nil
}

// publicHost rejects hosts that are known to be local without resolving them.
func publicHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return false
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return true
	}

	return publicAddr(addr)
}

func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()

	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsInterfaceLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified()
}
