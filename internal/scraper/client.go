// Package scraper fetches web pages for the knowledge base.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/metrics"
	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/pkg/logger"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultMaxBodyBytes = 5 << 20
)

type Kind string

const (
	KindInvalidURL Kind = "invalid_url"
	KindTimeout    Kind = "timeout"
	KindHTTPStatus Kind = "http_status"
	KindConnect    Kind = "connect"
)

var (
	ErrInvalidURL   = errors.New("invalid URL format")
	ErrFetchTimeout = errors.New("website took too long to respond")
	ErrFetchStatus  = errors.New("website returned an error")
	ErrFetchConnect = errors.New("unable to connect to the website")
)

var kindSentinels = map[Kind]error{
	KindInvalidURL: ErrInvalidURL,
	KindTimeout:    ErrFetchTimeout,
	KindHTTPStatus: ErrFetchStatus,
	KindConnect:    ErrFetchConnect,
}

// FetchError describes why a page could not be fetched. errors.Is matches it
// against the sentinel for its Kind.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("%v: HTTP %d %s", ErrFetchStatus, e.StatusCode, http.StatusText(e.StatusCode))
	case KindInvalidURL:
		return fmt.Sprintf("%v: %q", ErrInvalidURL, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", kindSentinels[e.Kind], e.Err)
	}
	return kindSentinels[e.Kind].Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

type Page struct {
	URL        string
	StatusCode int
	HTML       string
}

type Client struct {
	httpClient *http.Client
	cfg        Config
	log        *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg: cfg,
		log: logger.Named("scraper"),
	}
}

// NormalizeURL trims raw and defaults the scheme to https. Only http and
// https URLs with a host are accepted.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &FetchError{Kind: KindInvalidURL, URL: raw}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &FetchError{Kind: KindInvalidURL, URL: raw, Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &FetchError{Kind: KindInvalidURL, URL: raw}
	}

	return u.String(), nil
}

func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	start := time.Now()
	page, err := c.fetch(ctx, rawURL)
	metrics.ScrapeDuration.Observe(time.Since(start).Seconds())

	outcome := "ok"
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		outcome = string(fetchErr.Kind)
	}
	metrics.ScrapeTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		c.log.Warn("Website fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}

	c.log.Info("Website fetched",
		zap.String("url", page.URL),
		zap.Int("bytes", len(page.HTML)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return page, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalidURL, URL: target, Err: err}
	}

	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: KindHTTPStatus, URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(target, err)
	}

	return &Page{
		URL:        target,
		StatusCode: resp.StatusCode,
		HTML:       string(body),
	}, nil
}

// Scrape fetches a page and runs the structural analysis on it.
func (c *Client) Scrape(ctx context.Context, rawURL string) (*normalize.PageAnalysis, error) {
	page, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return normalize.Analyze(page.HTML, page.URL), nil
}

func classifyTransportError(target string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimeout, URL: target, Err: err}
	}
	return &FetchError{Kind: KindConnect, URL: target, Err: err}
}
