// Package transport provides the outbound request interceptor for the
// session engine.
//
// The RoundTripper stamps every request with the live access token at send
// time, detects authorization failures, and drives the refresh protocol: a
// single token exchange shared by all concurrently failing requests, one
// replay of the original request with the renewed token, and a typed
// session-expired error when the exchange itself fails.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pulsefit/authkit-go/metrics"
)

// TokenSource supplies the live access token and performs the refresh
// exchange. authkit.Engine satisfies this interface.
type TokenSource interface {
	// Token returns the current access token, or "" when logged out.
	Token() string

	// Refresh exchanges the refresh token for a new access token. stale is
	// the token the failing request went out with; implementations return
	// the current token without a new exchange when it already differs.
	Refresh(ctx context.Context, stale string) (string, error)
}

// SessionExpiredError is returned to the original caller when a 401 response
// triggered a refresh and the refresh exchange failed. The session has been
// cleared by the time the caller sees it; the request must not be retried.
type SessionExpiredError struct {
	// Status is the status of the response that triggered the refresh.
	Status int
	// Err is the refresh failure.
	Err error
}

// Error implements the error interface.
func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("transport: session expired (original status %d): %v", e.Status, e.Err)
}

// Unwrap returns the refresh failure.
func (e *SessionExpiredError) Unwrap() error { return e.Err }

// RoundTripper wraps a base http.RoundTripper with the refresh protocol.
type RoundTripper struct {
	base    http.RoundTripper
	source  TokenSource
	exempt  []string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// compile-time check
var _ http.RoundTripper = (*RoundTripper)(nil)

// Option configures the RoundTripper.
type Option func(*RoundTripper)

// WithExemptPaths marks request paths whose 401 responses never trigger a
// refresh. Login, social-login and refresh endpoints must be listed here or
// a credential failure would recurse into the refresh protocol; in the
// refresh endpoint's case that recursion re-enters the in-flight exchange
// and deadlocks. Paths are matched by suffix so the exemption holds when
// the API is mounted under a path prefix.
func WithExemptPaths(paths ...string) Option {
	return func(t *RoundTripper) {
		t.exempt = append(t.exempt, paths...)
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *RoundTripper) { t.logger = l }
}

// WithMetrics sets the metrics sink for replay and refresh-wait tracking.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *RoundTripper) { t.metrics = m }
}

// New creates a RoundTripper around base (http.DefaultTransport when nil).
func New(base http.RoundTripper, source TokenSource, opts ...Option) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &RoundTripper{
		base:    base,
		source:  source,
		logger:  slog.Default(),
		metrics: metrics.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// RoundTrip sends the request with the current access token attached. On a
// 401 from a non-exempt path it refreshes the token (sharing one exchange
// with every other request failing in the same window) and replays the
// request exactly once. The replay's own response is terminal, whatever its
// status. Transport-level errors pass through untouched: they never trigger
// a refresh.
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	stale := t.source.Token()

	first := req.Clone(req.Context())
	if stale != "" {
		first.Header.Set("Authorization", "Bearer "+stale)
	}

	resp, err := t.base.RoundTrip(first)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode != http.StatusUnauthorized || t.isExempt(req.URL.Path) {
		return resp, nil
	}

	// A consumed body without GetBody cannot be replayed; the 401 stands.
	if req.Body != nil && req.GetBody == nil {
		t.logger.Debug("401 on non-replayable request", "path", req.URL.Path)
		return resp, nil
	}

	t.metrics.RefreshWaiterAdd(1)
	token, refreshErr := t.source.Refresh(req.Context(), stale)
	t.metrics.RefreshWaiterAdd(-1)

	drain(resp)

	if refreshErr != nil {
		return nil, &SessionExpiredError{Status: http.StatusUnauthorized, Err: refreshErr}
	}

	replay := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, fmt.Errorf("transport: rewinding request body: %w", bodyErr)
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+token)

	t.logger.Debug("replaying request with renewed token", "path", req.URL.Path)
	t.metrics.RecordReplay()
	return t.base.RoundTrip(replay)
}

// isExempt reports whether path ends with one of the exempt paths. Suffix
// matching keeps auth endpoints exempt regardless of where the API is
// mounted ("/auth/refresh" also covers "/api/auth/refresh").
func (t *RoundTripper) isExempt(path string) bool {
	for _, p := range t.exempt {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// drain consumes and closes a response body so the underlying connection can
// be reused.
func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
