package ingest

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/VertyyBird/Reddit-Archiver/internal/model"
)

var redditIDRe = regexp.MustCompile(`(?i)/comments/([^/]+)/`)

// CanonicalPostURL normalizes a reddit permalink: https scheme, default
// host, no query/fragment, no trailing slash.
func CanonicalPostURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := u.Host
	if host == "" {
		host = "www.reddit.com"
	}
	path := strings.TrimRight(u.Path, "/")
	return (&url.URL{Scheme: "https", Host: host, Path: path}).String()
}

// VariantURL rewrites a canonical post URL onto the host serving the given
// view variant (www.reddit.com or old.reddit.com).
func VariantURL(canonical string, v model.Variant) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return canonical
	}
	host := "www.reddit.com"
	if v == model.VariantOld {
		host = "old.reddit.com"
	}
	return (&url.URL{Scheme: "https", Host: host, Path: u.Path}).String()
}

// ExtractRedditID pulls the stable post identity out of a permalink path.
// Returns "" when the URL does not contain one.
func ExtractRedditID(postURL string) string {
	m := redditIDRe.FindStringSubmatch(postURL)
	if m == nil {
		return ""
	}
	return m[1]
}
