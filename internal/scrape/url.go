package scrape

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that raw is a fetchable http(s) resource locator.
// Validation happens before any process is spawned, so a bad URL is never
// misreported as a timeout or process failure.
func ValidateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("url is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}
