package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultHTTPTimeout        = 30 * time.Second
	defaultMaxResponseBodyLen = 16 << 20
)

var ErrResponseTooLarge = errors.New("blob: response body exceeds configured limit")

// HTTPOption configures an HTTPStore.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	timeout       time.Duration
	transport     http.RoundTripper
	headers       http.Header
	maxBodyLen    int64
	traceRequests bool
}

// WithHTTPTimeout sets the per request timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.timeout = timeout
	}
}

// WithHTTPTransport replaces the default otelhttp instrumented transport.
func WithHTTPTransport(transport http.RoundTripper) HTTPOption {
	return func(c *httpConfig) {
		c.transport = transport
	}
}

// WithHTTPHeader adds a header sent with every download, e.g. an api key.
func WithHTTPHeader(name, value string) HTTPOption {
	return func(c *httpConfig) {
		c.headers.Add(name, value)
	}
}

// WithMaxBodyLen caps the size of a downloaded object.
func WithMaxBodyLen(limit int64) HTTPOption {
	return func(c *httpConfig) {
		c.maxBodyLen = limit
	}
}

// WithHTTPTraceRequests logs every request and its outcome at debug level.
func WithHTTPTraceRequests() HTTPOption {
	return func(c *httpConfig) {
		c.traceRequests = true
	}
}

// HTTPStore downloads objects with GET {baseURL}/{path}. It suits public
// object storage endpoints and CDNs fronting the translation bucket.
type HTTPStore struct {
	baseURL    string
	client     *http.Client
	headers    http.Header
	maxBodyLen int64
}

// NewHTTPStore creates a store rooted at baseURL.
func NewHTTPStore(baseURL string, opts ...HTTPOption) *HTTPStore {
	cfg := &httpConfig{
		timeout:    defaultHTTPTimeout,
		transport:  otelhttp.NewTransport(http.DefaultTransport),
		headers:    http.Header{},
		maxBodyLen: defaultMaxResponseBodyLen,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	transport := cfg.transport
	if cfg.traceRequests {
		transport = &tracingTransport{next: transport}
	}

	return &HTTPStore{
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.timeout,
		},
		headers:    cfg.headers,
		maxBodyLen: cfg.maxBodyLen,
	}
}

// Download fetches the object at path.
func (s *HTTPStore) Download(ctx context.Context, path string) ([]byte, error) {
	endpoint, err := url.JoinPath(s.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("blob: build url for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: new request for %s: %w", path, err)
	}
	req.Header = s.headers.Clone()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob: download %s: %w", path, err)
	}
	defer util.CloseAndLogOnError(ctx, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("blob: download %s: HTTP %d", path, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if s.maxBodyLen > 0 {
		reader = io.LimitReader(resp.Body, s.maxBodyLen+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", path, err)
	}

	if s.maxBodyLen > 0 && int64(len(data)) > s.maxBodyLen {
		return nil, fmt.Errorf("%w: %s", ErrResponseTooLarge, path)
	}

	return data, nil
}

type tracingTransport struct {
	next http.RoundTripper
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := util.Log(req.Context()).WithFields(map[string]any{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := t.next.RoundTrip(req)
	log = log.WithField("duration", time.Since(start).String())
	if err != nil {
		log.WithError(err).Debug("object request failed")
		return resp, err
	}

	log.WithField("status", resp.StatusCode).Debug("object request completed")
	return resp, nil
}
