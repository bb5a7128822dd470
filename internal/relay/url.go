package relay

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for input that is not an Instagram post URL. Its
// message is shown to callers verbatim.
var ErrInvalidURL = errors.New("Provide a valid Instagram post URL.") //nolint:revive,stylecheck // user-facing text

var (
	schemePattern    = regexp.MustCompile(`(?i)^https?://`)
	httpPattern      = regexp.MustCompile(`(?i)^http://`)
	instagramPattern = regexp.MustCompile(`(?i)instagram\.com/`)
	postPathPattern  = regexp.MustCompile(`/(?:p|reel)/[^/]+$`)
)

// ValidateURL trims raw and checks that it is an http(s) Instagram URL.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !schemePattern.MatchString(trimmed) || !instagramPattern.MatchString(trimmed) {
		return "", ErrInvalidURL
	}
	return trimmed, nil
}

// NormalizeURL upgrades the scheme to https, strips angle brackets, and adds a
// trailing slash to /p/<id> and /reel/<id> paths. Unparseable URLs are returned
// after the string rewrites only.
func NormalizeURL(raw string) string {
	normalized := httpPattern.ReplaceAllString(raw, "https://")
	normalized = strings.NewReplacer("<", "", ">", "").Replace(normalized)

	u, err := url.Parse(normalized)
	if err != nil {
		return normalized
	}
	if !postPathPattern.MatchString(u.EscapedPath()) {
		return normalized
	}
	u.Path += "/"
	if u.RawPath != "" {
		u.RawPath += "/"
	}
	return u.String()
}

// ProxyURLs returns the read-only proxy variants for target, http first.
func ProxyURLs(proxyBase, target string) []string {
	hostAndPath := schemePattern.ReplaceAllString(target, "")
	return []string{
		proxyBase + "http://" + hostAndPath,
		proxyBase + "https://" + hostAndPath,
	}
}

// MirrorURL maps target onto mirrorHost, keeping path and query.
func MirrorURL(mirrorHost, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("build mirror url: %w", err)
	}
	mirror := "https://" + mirrorHost + u.EscapedPath()
	if u.RawQuery != "" {
		mirror += "?" + u.RawQuery
	}
	return mirror, nil
}
