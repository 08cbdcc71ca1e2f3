package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	wipLinkRe    = regexp.MustCompile(`(?i)(https?://archive\.[a-z]+/wip/[A-Za-z0-9]+)`)
	resultLinkRe = regexp.MustCompile(`(?i)(https?://archive\.[a-z]+/[A-Za-z0-9]+)`)
)

// ArchiveToday submits URLs to an archive.today-style mirror. Unlike
// Wayback there is no later verification: a result link in the response is
// the whole success signal, decided at submission time.
type ArchiveToday struct {
	client    *http.Client
	baseURL   string // e.g. https://archive.vn
	userAgent string
}

// NewArchiveToday builds an archive.today client against the given mirror.
func NewArchiveToday(baseURL, userAgent string, timeout time.Duration) *ArchiveToday {
	return &ArchiveToday{
		client:    newHTTPClient(timeout),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
	}
}

// Submit form-posts target to the mirror's submit endpoint. Success is a
// redirect Location pointing at the stored copy, or a recognizable result
// link inside the body. A challenge page (captcha/Cloudflare markers)
// is a block, not a success, no matter the status code.
func (a *ArchiveToday) Submit(ctx context.Context, target string) SubmitResult {
	form := url.Values{"url": {target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/submit/",
		strings.NewReader(form.Encode()))
	if err != nil {
		return SubmitResult{Err: fmt.Sprintf("Archive.today request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return SubmitResult{Err: fmt.Sprintf("Archive.today transport: %v", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		if loc := strings.TrimSpace(resp.Header.Get("Location")); loc != "" {
			if strings.HasPrefix(loc, "/") {
				return SubmitResult{Accepted: true, Link: a.baseURL + loc}
			}
			return SubmitResult{Accepted: true, Link: loc}
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return SubmitResult{Err: fmt.Sprintf("Archive.today read body: %v", err)}
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "captcha") || strings.Contains(lower, "cloudflare") {
		return SubmitResult{Err: "Archive.today blocked (captcha/Cloudflare)"}
	}

	// A /wip/ link means the capture is in progress; prefer it over the
	// generic pattern, which would also match unrelated archive links.
	if m := wipLinkRe.FindSubmatch(body); m != nil {
		return SubmitResult{Accepted: true, Link: string(m[1])}
	}
	if m := resultLinkRe.FindSubmatch(body); m != nil {
		return SubmitResult{Accepted: true, Link: string(m[1])}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SubmitResult{Accepted: true}
	}
	return SubmitResult{Err: fmt.Sprintf("Archive.today HTTP %d", resp.StatusCode)}
}
