// CLAUDE:SUMMARY Publisher web API client: daily metadata lookup (date -> puzzle id) and authenticated PDF download.
// Package publisher talks to the crossword publisher's web API.
//
// Two endpoints are used: the daily metadata document, which maps a calendar
// date to an opaque puzzle identifier, and the puzzle rendering endpoint,
// which serves the printable PDF for that identifier. Both require the
// subscriber's session cookie. Neither call is retried.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/dailydrop/civildate"
	"github.com/hazyhaar/dailydrop/safeguard"
)

// ErrTransport marks network or stream failures on a publisher call.
var ErrTransport = errors.New("publisher: transport error")

// ErrParse marks a metadata response that could not be decoded into an id.
var ErrParse = errors.New("publisher: parse error")

// ErrUpstreamStatus marks a non-200 reply from a publisher endpoint.
var ErrUpstreamStatus = errors.New("publisher: upstream status")

// StatusError carries the status code of a non-200 publisher reply.
type StatusError struct {
	Op         string // "resolve" or "download"
	StatusCode int
	Body       string // short snippet, resolve only
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("publisher: %s: http %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("publisher: %s: http %d", e.Op, e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrUpstreamStatus) match.
func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// PuzzleID is the publisher's opaque identifier for one day's puzzle.
type PuzzleID string

// Config configures the publisher client.
type Config struct {
	BaseURL      string        `yaml:"base_url"`      // Default: https://www.nytimes.com
	MetadataPath string        `yaml:"metadata_path"` // %s receives YYYY-MM-DD
	DocumentPath string        `yaml:"document_path"` // %s receives the puzzle id
	Variant      string        `yaml:"variant"`       // raw query, e.g. "southpaw=true"; "-" disables
	Referer      string        `yaml:"referer"`
	Cookie       string        `yaml:"-"` // session credential, env only
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`   // Default: 60s.
	MaxBytes     int64         `yaml:"max_bytes"` // Max document size. Default: 20MB.
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.nytimes.com"
	}
	if c.MetadataPath == "" {
		c.MetadataPath = "/svc/crosswords/v6/puzzle/daily/%s.json"
	}
	if c.DocumentPath == "" {
		c.DocumentPath = "/svc/crosswords/v2/puzzle/%s.pdf"
	}
	if c.Variant == "" {
		c.Variant = "southpaw=true"
	}
	if c.Referer == "" {
		c.Referer = "https://www.nytimes.com/crosswords/archive/daily"
	}
	if c.UserAgent == "" {
		c.UserAgent = "dailydrop/1.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 20 * 1024 * 1024
	}
}

// Validate checks the fields Defaults cannot supply.
func (c *Config) Validate() error {
	if c.Cookie == "" {
		return fmt.Errorf("publisher: session cookie is required")
	}
	if err := safeguard.ValidateHeaderValue(c.Cookie); err != nil {
		return fmt.Errorf("publisher: cookie: %w", err)
	}
	if err := safeguard.ValidateEndpoint(c.BaseURL); err != nil {
		return fmt.Errorf("publisher: base_url: %w", err)
	}
	if strings.Count(c.MetadataPath, "%s") != 1 || strings.Count(c.DocumentPath, "%s") != 1 {
		return fmt.Errorf("publisher: metadata_path and document_path need exactly one %%s")
	}
	return nil
}

// Client performs the two publisher calls.
type Client struct {
	http   *http.Client
	config Config
	logger *slog.Logger
}

// New creates a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	cfg.Defaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, config: cfg, logger: logger}
}

// MetadataURL returns the daily metadata URL for date.
func (c *Client) MetadataURL(date civildate.Date) string {
	return c.config.BaseURL + fmt.Sprintf(c.config.MetadataPath, date.String())
}

// DocumentURL returns the PDF URL for id, including the rendering variant.
func (c *Client) DocumentURL(id PuzzleID) string {
	u := c.config.BaseURL + fmt.Sprintf(c.config.DocumentPath, url.PathEscape(string(id)))
	if c.config.Variant != "" && c.config.Variant != "-" {
		u += "?" + c.config.Variant
	}
	return u
}

// ResolveID looks up the puzzle identifier published for date.
func (c *Client) ResolveID(ctx context.Context, date civildate.Date) (PuzzleID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.MetadataURL(date), nil)
	if err != nil {
		return "", fmt.Errorf("publisher: resolve: new request: %w", err)
	}
	req.Header.Set("Cookie", c.config.Cookie)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: resolve: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Op: "resolve", StatusCode: resp.StatusCode, Body: safeguard.Snippet(resp.Body)}
	}

	body, err := safeguard.LimitedReadAll(resp.Body, safeguard.MaxErrorBody*256)
	if err != nil {
		if errors.Is(err, safeguard.ErrTooLarge) {
			return "", fmt.Errorf("%w: resolve: %w", ErrParse, err)
		}
		return "", fmt.Errorf("%w: resolve: read body: %w", ErrTransport, err)
	}

	id, err := parseID(body)
	if err != nil {
		return "", err
	}
	c.logger.Info("publisher: resolved puzzle", "date", date.String(), "puzzle_id", string(id))
	return id, nil
}

// parseID extracts the "id" field, accepting a JSON number or string.
func parseID(body []byte) (PuzzleID, error) {
	var doc struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: json decode: %w", ErrParse, err)
	}
	if len(doc.ID) == 0 || string(doc.ID) == "null" {
		return "", fmt.Errorf("%w: missing id field", ErrParse)
	}

	var s string
	if err := json.Unmarshal(doc.ID, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: empty id", ErrParse)
		}
		return PuzzleID(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(doc.ID, &n); err != nil {
		return "", fmt.Errorf("%w: id is neither string nor number: %s", ErrParse, doc.ID)
	}
	return PuzzleID(n.String()), nil
}

// Download fetches the PDF bytes for id into memory.
// A non-200 reply returns a *StatusError without consuming the body.
func (c *Client) Download(ctx context.Context, id PuzzleID) ([]byte, error) {
	if err := safeguard.ValidateSegment(string(id)); err != nil {
		return nil, fmt.Errorf("%w: download: puzzle id: %w", ErrParse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DocumentURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("publisher: download: new request: %w", err)
	}
	req.Header.Set("Referer", c.config.Referer)
	req.Header.Set("Cookie", c.config.Cookie)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "download", StatusCode: resp.StatusCode}
	}

	data, err := safeguard.LimitedReadAll(resp.Body, c.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: download: read body: %w", ErrTransport, err)
	}
	return data, nil
}
