package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Wayback submits URLs to the Wayback Machine's save endpoint and checks
// snapshot availability. Capture is asynchronous on the service side, so a
// submission that reports no link may still succeed minutes later; the
// availability check is how that is confirmed.
type Wayback struct {
	client          *http.Client
	baseURL         string // e.g. https://web.archive.org
	availabilityURL string // e.g. https://archive.org/wayback/available
	userAgent       string
}

// NewWayback builds a Wayback client. Base URLs are parameters so tests
// can point the client at local servers.
func NewWayback(baseURL, availabilityURL, userAgent string, timeout time.Duration) *Wayback {
	return &Wayback{
		client:          newHTTPClient(timeout),
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		availabilityURL: availabilityURL,
		userAgent:       userAgent,
	}
}

// Submit requests a capture of target. The save endpoint signals the
// stored copy's location through a Content-Location or Location header; a
// plain 2xx without either still counts as accepted, just with no link yet.
func (w *Wayback) Submit(ctx context.Context, target string) SubmitResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/save/"+target, nil)
	if err != nil {
		return SubmitResult{Err: fmt.Sprintf("Wayback request: %v", err)}
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return SubmitResult{Err: fmt.Sprintf("Wayback transport: %v", err)}
	}
	defer resp.Body.Close()

	if loc := strings.TrimSpace(resp.Header.Get("Content-Location")); loc != "" {
		return SubmitResult{Accepted: true, Link: w.absolute(loc)}
	}
	if loc := strings.TrimSpace(resp.Header.Get("Location")); loc != "" {
		if strings.HasPrefix(loc, "/") {
			return SubmitResult{Accepted: true, Link: w.baseURL + loc}
		}
		if strings.Contains(loc, "web.archive.org") || strings.HasPrefix(loc, w.baseURL) {
			return SubmitResult{Accepted: true, Link: loc}
		}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SubmitResult{Accepted: true}
	}
	return SubmitResult{Err: fmt.Sprintf("Wayback HTTP %d", resp.StatusCode)}
}

func (w *Wayback) absolute(loc string) string {
	if strings.HasPrefix(loc, "/") {
		return w.baseURL + loc
	}
	return loc
}

// availabilityResponse mirrors the JSON shape of the availability API.
type availabilityResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// CheckAvailability asks whether a snapshot of target exists at or after
// sinceTS (TS14). An answer of "no snapshot" is reported through
// Available=false with an empty Err.
func (w *Wayback) CheckAvailability(ctx context.Context, target, sinceTS string) AvailabilityResult {
	q := url.Values{}
	q.Set("url", target)
	if sinceTS != "" {
		q.Set("timestamp", sinceTS)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.availabilityURL+"?"+q.Encode(), nil)
	if err != nil {
		return AvailabilityResult{Err: fmt.Sprintf("Wayback available request: %v", err)}
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return AvailabilityResult{Err: fmt.Sprintf("Wayback available transport: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AvailabilityResult{Err: fmt.Sprintf("Wayback available HTTP %d", resp.StatusCode)}
	}

	var payload availabilityResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return AvailabilityResult{Err: fmt.Sprintf("Wayback available decode: %v", err)}
	}

	closest := payload.ArchivedSnapshots.Closest
	return AvailabilityResult{
		Available: closest.Available,
		Link:      closest.URL,
		Timestamp: closest.Timestamp,
		Status:    closest.Status,
	}
}
