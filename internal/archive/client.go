// Package archive implements clients for the external web-archival
// services: the Wayback Machine and archive.today. Both clients are
// stateless request/response translators; every expected outcome,
// including failure, is part of the returned value rather than an error.
package archive

import (
	"net/http"
	"time"
)

// SubmitResult is the outcome of one capture submission.
// Accepted means the service took the request; Link is the archived copy's
// URL when the response revealed one. Err carries a human-readable failure
// description and is empty on success. A failed submission never carries a
// link.
type SubmitResult struct {
	Accepted bool
	Link     string
	Err      string
}

// AvailabilityResult is the outcome of one Wayback availability check.
// Available=false with an empty Err means the service answered but knows
// no snapshot yet; that is a normal outcome, not a failure.
type AvailabilityResult struct {
	Available bool
	Link      string
	Timestamp string // TS14 of the closest snapshot
	Status    string // HTTP status the snapshot recorded
	Err       string
}

// newHTTPClient builds the client both services share. Redirects are not
// followed: a redirect response is itself the success signal and its
// Location header is the payload.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// maxBodyBytes caps how much of a response body the clients will scan for
// result-link patterns.
const maxBodyBytes = 1 << 20
