// Package safeguard holds the input checks shared by the dailydrop clients:
// bounded body reads, URL path segment validation, header value checks, and
// endpoint URL sanity.
package safeguard

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// MaxErrorBody caps how much of an error response body is read for logging.
const MaxErrorBody int64 = 4 << 10

// ErrTooLarge is returned when a body exceeds its read limit.
var ErrTooLarge = errors.New("safeguard: body exceeds limit")

// ErrUnsafeScheme is returned when an endpoint URL is not http or https.
var ErrUnsafeScheme = errors.New("safeguard: only http and https schemes are allowed")

// ErrHeaderInjection is returned when a header value carries CR or LF.
var ErrHeaderInjection = errors.New("safeguard: header value contains a line break")

// LimitedReadAll reads at most maxBytes from r. A body one byte longer than
// the limit yields ErrTooLarge.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// Snippet reads up to MaxErrorBody of r as trimmed text, for error messages.
func Snippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, MaxErrorBody))
	return strings.TrimSpace(string(data))
}

// ValidateSegment rejects tokens that are unsafe to template into a URL path
// segment. Allows alphanumeric, underscore, hyphen; dots only inside.
func ValidateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("safeguard: segment must not be empty")
	}
	if len(s) > 128 {
		return fmt.Errorf("safeguard: segment too long (max 128)")
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return fmt.Errorf("safeguard: segment %q must not start or end with a dot", s)
	}
	for _, r := range s {
		if !isSegmentChar(r) {
			return fmt.Errorf("safeguard: invalid character %q in segment", r)
		}
	}
	return nil
}

// ValidateHeaderValue rejects values that would split an HTTP header.
func ValidateHeaderValue(v string) error {
	if strings.ContainsAny(v, "\r\n") {
		return ErrHeaderInjection
	}
	return nil
}

// ValidateEndpoint checks that rawURL is an absolute http(s) URL with a host.
// Loopback hosts are allowed: endpoints come from operator configuration.
func ValidateEndpoint(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safeguard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	if u.Host == "" {
		return fmt.Errorf("safeguard: URL %q has no host", rawURL)
	}
	return nil
}

func isSegmentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
