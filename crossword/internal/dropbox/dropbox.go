// CLAUDE:SUMMARY Dropbox content API client: single-shot overwrite upload with oauth2 token sources and content-hash verification.
// Package dropbox uploads documents to a Dropbox account.
//
// Only the single-request upload endpoint is used (files up to 150 MB).
// Credentials are a long-lived access token or an app key/secret plus a
// refresh token, exchanged through golang.org/x/oauth2.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/oauth2"

	"github.com/hazyhaar/dailydrop/safeguard"
)

// ErrStorageWrite marks any failure to get an upload acknowledged.
var ErrStorageWrite = errors.New("dropbox: storage write failed")

// ErrHashMismatch is returned when the acknowledged content hash differs
// from the hash of the bytes sent. It is always wrapped with ErrStorageWrite.
var ErrHashMismatch = errors.New("dropbox: content hash mismatch")

// ErrNoCredentials is returned by Config.Validate without usable credentials.
var ErrNoCredentials = errors.New("dropbox: access token or client id/secret/refresh token required")

// Dropbox OAuth2 endpoints.
const (
	AuthURL  = "https://www.dropbox.com/oauth2/authorize"
	TokenURL = "https://api.dropboxapi.com/oauth2/token"
)

// MaxUploadBytes is the single-request upload limit.
const MaxUploadBytes = 150 * 1024 * 1024

// APIError is a non-200 reply from the content API.
type APIError struct {
	StatusCode int
	Summary    string // error_summary, or a body snippet
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox: upload: http %d: %s", e.StatusCode, e.Summary)
}

// Unwrap lets errors.Is(err, ErrStorageWrite) match.
func (e *APIError) Unwrap() error { return ErrStorageWrite }

// FileMetadata is the subset of the upload reply that dailydrop uses.
type FileMetadata struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PathDisplay    string `json:"path_display"`
	Rev            string `json:"rev"`
	Size           int64  `json:"size"`
	ContentHash    string `json:"content_hash"`
	ServerModified string `json:"server_modified"`
}

// Config configures the Dropbox client.
type Config struct {
	ContentURL   string        `yaml:"content_url"` // Default: https://content.dropboxapi.com
	TokenURL     string        `yaml:"token_url"`   // Default: TokenURL
	Timeout      time.Duration `yaml:"timeout"`     // Default: 120s.
	AccessToken  string        `yaml:"-"`
	ClientID     string        `yaml:"-"`
	ClientSecret string        `yaml:"-"`
	RefreshToken string        `yaml:"-"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.ContentURL == "" {
		c.ContentURL = "https://content.dropboxapi.com"
	}
	if c.TokenURL == "" {
		c.TokenURL = TokenURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
}

// refreshable reports whether the refresh-token triple is complete.
func (c *Config) refreshable() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Validate checks credentials and endpoints.
func (c *Config) Validate() error {
	if !c.refreshable() && c.AccessToken == "" {
		return ErrNoCredentials
	}
	if err := safeguard.ValidateEndpoint(c.ContentURL); err != nil {
		return fmt.Errorf("dropbox: content_url: %w", err)
	}
	if err := safeguard.ValidateEndpoint(c.TokenURL); err != nil {
		return fmt.Errorf("dropbox: token_url: %w", err)
	}
	return nil
}

// TokenSource returns the credential source: a refreshing source when the
// triple is set, else the static access token. ctx carries the HTTP client
// used for refreshes (oauth2.HTTPClient) and must outlive the source.
func (c *Config) TokenSource(ctx context.Context) oauth2.TokenSource {
	if c.refreshable() {
		oc := &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthURL,
				TokenURL: c.TokenURL,
			},
		}
		return oc.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken})
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"})
}

// Client performs uploads.
type Client struct {
	http   *http.Client
	config Config
	logger *slog.Logger
}

// New creates a Client. base supplies the transport for both uploads and
// token refreshes; nil means http.DefaultClient.
func New(ctx context.Context, cfg Config, base *http.Client, logger *slog.Logger) *Client {
	cfg.Defaults()
	if base == nil {
		base = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	hc := oauth2.NewClient(ctx, cfg.TokenSource(ctx))
	hc.Timeout = cfg.Timeout
	return &Client{http: hc, config: cfg, logger: logger}
}

// ValidatePath checks that p is an absolute Dropbox file path.
func ValidatePath(p string) error {
	if !strings.HasPrefix(p, "/") || p == "/" || strings.HasSuffix(p, "/") {
		return fmt.Errorf("dropbox: path %q must be absolute and name a file", p)
	}
	if strings.ContainsAny(p, "\r\n") {
		return fmt.Errorf("dropbox: path %q contains a line break", p)
	}
	return nil
}

type uploadArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

// Upload writes contents to path, overwriting any existing file.
func (c *Client) Upload(ctx context.Context, path string, contents []byte) (*FileMetadata, error) {
	if err := ValidatePath(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if len(contents) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds single upload limit", ErrStorageWrite, len(contents))
	}

	arg, err := headerJSON(uploadArg{Path: path, Mode: "overwrite", Mute: true})
	if err != nil {
		return nil, fmt.Errorf("%w: encode arg: %w", ErrStorageWrite, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.ContentURL+"/2/files/upload", bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %w", ErrStorageWrite, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", arg)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	body, err := safeguard.LimitedReadAll(resp.Body, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("%w: read reply: %w", ErrStorageWrite, err)
	}
	var meta FileMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode reply: %w", ErrStorageWrite, err)
	}

	local := ContentHash(contents)
	switch {
	case meta.ContentHash == "":
		c.logger.Warn("dropbox: reply has no content hash", "path", path)
	case meta.ContentHash != local:
		return nil, fmt.Errorf("%w: %w: local %s, remote %s",
			ErrStorageWrite, ErrHashMismatch, local, meta.ContentHash)
	}
	return &meta, nil
}

func newAPIError(resp *http.Response) *APIError {
	snippet := safeguard.Snippet(resp.Body)
	var reply struct {
		ErrorSummary string `json:"error_summary"`
	}
	if json.Unmarshal([]byte(snippet), &reply) == nil && reply.ErrorSummary != "" {
		snippet = reply.ErrorSummary
	}
	return &APIError{StatusCode: resp.StatusCode, Summary: snippet}
}

// headerJSON marshals v with every non-ASCII rune escaped, as HTTP header
// values must be ASCII.
func headerJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, r := range string(raw) {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}
	return b.String(), nil
}
