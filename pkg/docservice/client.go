package docservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-formtree/pkg/visualmodel"
)

// Encodings accepted by the document service.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"

	defaultTimeout = 30 * time.Second
	maxReportBytes = 4 << 20
)

var (
	// ErrNilModel reports a submission without a visual model.
	ErrNilModel = errors.New("docservice: visual model is nil")
	// ErrEndpoint reports a missing or malformed service URL.
	ErrEndpoint = errors.New("docservice: invalid endpoint")
)

// StatusError reports a response the client cannot interpret as either a
// generated document or a validation report.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Body == "" {
		return fmt.Sprintf("docservice: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("docservice: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Issue is one entry of a validation report.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a submission: either the generated document or
// the validation report that rejected the notice.
type Result struct {
	Document    []byte
	ContentType string
	Report      map[string][]string
}

// Rejected reports whether the service answered with a validation report.
func (r Result) Rejected() bool {
	return r.Document == nil && len(r.Report) > 0
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds each submission. Zero keeps the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithEncoding selects how the visual model is sent: EncodingJSON (default)
// or EncodingCBOR.
func WithEncoding(encoding string) Option {
	return func(c *Client) {
		c.encoding = strings.ToLower(strings.TrimSpace(encoding))
	}
}

// WithHeader adds a header sent with every submission.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(http.Header)
		}
		c.headers.Add(key, value)
	}
}

// Client submits visual models to a document service endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
	timeout  time.Duration
	encoding string
	headers  http.Header
}

// New constructs a client posting to endpoint, an absolute http(s) URL.
func New(endpoint string, options ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEndpoint, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrEndpoint, endpoint)
	}

	c := &Client{endpoint: parsed.String()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	c.applyDefaults()
	if c.encoding != EncodingJSON && c.encoding != EncodingCBOR {
		return nil, fmt.Errorf("docservice: unsupported encoding %q", c.encoding)
	}
	return c, nil
}

func (c *Client) applyDefaults() {
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.encoding == "" {
		c.encoding = EncodingJSON
	}
}

// Endpoint returns the service URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Submit posts the visual model. A 2xx answer carries the generated document.
// A 400 or 422 answer carries a validation report, returned in Result with a
// nil error. Any other status is a *StatusError.
func (c *Client) Submit(ctx context.Context, model *visualmodel.Node) (Result, error) {
	if model == nil {
		return Result{}, ErrNilModel
	}
	body, contentType, err := c.encode(model)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("docservice: build request: %w", err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/xml, application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("docservice: submit: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return Result{}, fmt.Errorf("docservice: read response: %w", err)
	}
	c.logger.Debug("notice submitted",
		"endpoint", c.endpoint,
		"status", resp.StatusCode,
		"bytes", len(payload),
		"elapsed", time.Since(started),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Document: payload, ContentType: resp.Header.Get("Content-Type")}, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		report, err := DecodeReport(payload)
		if err != nil {
			return Result{}, &StatusError{StatusCode: resp.StatusCode, Body: snippet(payload)}
		}
		return Result{Report: report, ContentType: resp.Header.Get("Content-Type")}, nil
	default:
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Body: snippet(payload)}
	}
}

func (c *Client) encode(model *visualmodel.Node) ([]byte, string, error) {
	if c.encoding == EncodingCBOR {
		data, err := visualmodel.EncodeCBOR(model)
		return data, contentTypeCBOR, err
	}
	data, err := visualmodel.EncodeJSON(model)
	return data, contentTypeJSON, err
}

// DecodeReport parses a validation report. Three shapes are accepted:
//
//	{"errors": {"<path>": ["message", ...]}}
//	{"issues": [{"path": "...", "message": "..."}]}
//	{"<path>": ["message", ...]}
//
// Issues without a path are reported under the empty key, which MapReport
// treats as document-level.
func DecodeReport(data []byte) (map[string][]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("docservice: empty report")
	}

	var envelope struct {
		Errors map[string]json.RawMessage `json:"errors"`
		Issues []Issue                    `json:"issues"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("docservice: decode report: %w", err)
	}

	report := make(map[string][]string)
	if len(envelope.Issues) > 0 {
		for _, issue := range envelope.Issues {
			key := issue.Path
			if key == "" {
				key = issue.Field
			}
			report[key] = append(report[key], issue.Message)
		}
		return report, nil
	}

	entries := envelope.Errors
	if entries == nil {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("docservice: decode report: %w", err)
		}
	}
	for key, raw := range entries {
		messages, err := decodeMessages(raw)
		if err != nil {
			return nil, fmt.Errorf("docservice: decode report %q: %w", key, err)
		}
		report[key] = append(report[key], messages...)
	}
	if len(report) == 0 {
		return nil, errors.New("docservice: empty report")
	}
	return report, nil
}

func decodeMessages(raw json.RawMessage) ([]string, error) {
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []string{one}, nil
}

// IsXML reports whether the content type of a generated document is XML.
func IsXML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml")
}

func snippet(payload []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(payload))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
