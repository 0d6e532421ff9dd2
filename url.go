package web2pdf

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL trims raw and prepends "https://" when it has no http(s) scheme.
// Returns ErrEmptyURL for a blank input.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw, nil
}

// DecodeURL percent-decodes a normalized URL once more before navigation.
// The query parameter was already unescaped by the HTTP layer, so this
// turns a doubly encoded value such as "example.com%2Fa%2520b" into
// "https://example.com/a b". A '+' is kept as is; only %XX sequences are
// decoded, and a malformed sequence returns ErrInvalidURL.
func DecodeURL(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if strings.TrimSpace(decoded) == "" {
		return "", ErrEmptyURL
	}
	return decoded, nil
}
