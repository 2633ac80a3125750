// Package render talks to the local rendering service that turns a source
// document, addressed by its URL path, into published HTML.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/klauern/ifcsync/internal/logging"
)

// Defaults for Options.
const (
	DefaultBaseURL      = "http://127.0.0.1:5050"
	DefaultProbeTimeout = 2 * time.Second
	DefaultFetchTimeout = 30 * time.Second
	DefaultPollInterval = time.Second
	DefaultAttempts     = 10
	DefaultUserAgent    = "ifcsync/1.0"
)

// ErrUnavailable is returned when the service cannot be reached or started.
var ErrUnavailable = errors.New("render service unavailable")

// ErrEmptyBody is returned when the service answers 200 with no content.
var ErrEmptyBody = errors.New("render service returned an empty page")

// HTTPError is returned for any non-200 response.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("render service returned HTTP %d for %s", e.Status, e.URL)
}

// Page is a rendered document.
type Page struct {
	URL   string
	Body  []byte
	Title string
}

// Service is what the sync engine needs from the rendering service.
type Service interface {
	// EnsureReachable probes the service, starting it if needed.
	EnsureReachable(ctx context.Context) bool
	// Fetch returns the rendered page for a URL path.
	Fetch(ctx context.Context, urlPath string) (*Page, error)
}

// Launcher starts the rendering service in the background.
type Launcher interface {
	Start(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	ProbeTimeout time.Duration
	FetchTimeout time.Duration
	PollInterval time.Duration
	Attempts     int
	UserAgent    string
	Launcher     Launcher
	Logger       *slog.Logger
}

// DefaultOptions returns options for a service on localhost.
func DefaultOptions() Options {
	return Options{
		BaseURL:      DefaultBaseURL,
		ProbeTimeout: DefaultProbeTimeout,
		FetchTimeout: DefaultFetchTimeout,
		PollInterval: DefaultPollInterval,
		Attempts:     DefaultAttempts,
		UserAgent:    DefaultUserAgent,
	}
}

// Client implements Service over HTTP.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client. Zero option fields fall back to defaults.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{opts: opts, http: &http.Client{}, logger: logger}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.opts.BaseURL
}

// Probe reports whether the service answers. 200 and 404 both count as up.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	resp, err := c.get(ctx, c.opts.BaseURL+"/")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound
}

// EnsureReachable probes the service and, when it is down, starts it with
// the configured launcher and polls until it answers or attempts run out.
func (c *Client) EnsureReachable(ctx context.Context) bool {
	if c.Probe(ctx) {
		return true
	}
	if c.opts.Launcher == nil {
		c.logger.Warn("render service down and no launcher configured", logging.URL(c.opts.BaseURL))
		return false
	}

	c.logger.Info("starting render service", logging.URL(c.opts.BaseURL))
	if err := c.opts.Launcher.Start(ctx); err != nil {
		c.logger.Warn("failed to start render service", logging.Err(err))
		return false
	}

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for i := 0; i < c.opts.Attempts; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		if c.Probe(ctx) {
			c.logger.Info("render service is up", logging.Count(i+1))
			return true
		}
	}

	c.logger.Warn("render service did not come up",
		logging.URL(c.opts.BaseURL), logging.Count(c.opts.Attempts))
	return false
}

// Fetch retrieves the rendered page at urlPath. There are no retries.
func (c *Client) Fetch(ctx context.Context, urlPath string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	target := c.opts.BaseURL + urlPath
	resp, err := c.get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{URL: target, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBody, target)
	}

	return &Page{URL: urlPath, Body: body, Title: Title(body)}, nil
}

// Title extracts the text of the first <title> element, or "".
func Title(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	return c.http.Do(req)
}
