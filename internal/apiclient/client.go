// Package apiclient is the HTTP adapter the harness uses to talk to the
// platform under test.
//
// Every request goes through Client.Send, which returns a uniform Response
// for any HTTP status. Only failures to complete the exchange (refused
// connections, timeouts, DNS errors, cancelled contexts) are reported as
// errors, always as *TransportError.
package apiclient

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
	"strings"
	"time"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// ErrAmbiguousBody is returned when a request carries both a JSON and a
// multipart body. It is a programming error and is detected before any I/O.
var ErrAmbiguousBody = errors.New("request has both JSON and multipart body")

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Multipart describes a single-file multipart/form-data upload.
type Multipart struct {
	Field       string // form field name, "file" when empty
	FileName    string
	ContentType string // part content type, application/octet-stream when empty
	Data        []byte
}

// Request is the payload and credentials of one call.
// At most one of JSON and Multipart may be set.
type Request struct {
	JSON      any
	Multipart *Multipart
	Token     string // sent as "Authorization: Bearer <token>" when non-empty
}

// Response is the uniform result of a completed HTTP exchange.
type Response struct {
	Status int
	// Body is the decoded JSON document, nil when the payload is not JSON.
	Body any
	// Raw always holds the response text.
	Raw    string
	Header http.Header
}

// IsJSON reports whether the response body decoded as JSON.
func (r *Response) IsJSON() bool {
	return r.Body != nil
}

// Client sends requests to a single base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client (tests use the one from
// httptest.Server).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request tracing at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for baseURL (e.g. "http://localhost:3000/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send performs one request. A non-2xx status is not an error.
func (c *Client) Send(ctx context.Context, method, path string, req Request) (*Response, error) {
	if req.JSON != nil && req.Multipart != nil {
		return nil, ErrAmbiguousBody
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("http exchange",
		"method", method,
		"path", path,
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
	)

	return &Response{
		Status: httpResp.StatusCode,
		Body:   decodeJSON(raw),
		Raw:    string(raw),
		Header: httpResp.Header,
	}, nil
}

func encodeBody(req Request) (io.Reader, string, error) {
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	case req.Multipart != nil:
		return encodeMultipart(req.Multipart)
	default:
		return nil, "", nil
	}
}

func encodeMultipart(m *Multipart) (io.Reader, string, error) {
	field := m.Field
	if field == "" {
		field = "file"
	}
	partType := m.ContentType
	if partType == "" {
		partType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, m.FileName))
	header.Set("Content-Type", partType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(m.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// decodeJSON returns the decoded document or nil when raw is not JSON.
func decodeJSON(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil
	}
	return doc
}
