package authkit

import (
	"context"
	"fmt"
)

// Refresh exchanges the refresh token for a new pair and returns the new
// access token. It implements the single-flight half of the refresh protocol:
// when N concurrent requests all hit a 401 inside the same refresh window,
// exactly one exchange reaches the server and the other N-1 wait for its
// result. This matters because the platform rotates refresh tokens: a second
// exchange with the same token would be rejected.
//
// stale is the access token the failing request was sent with. If the session
// already holds a different token, some other caller finished a refresh in
// the meantime and that token is returned as-is.
//
// On exchange failure the session is force-cleared and subscribers are told
// it expired; the returned error carries CodeSessionExpired.
func (e *Engine) Refresh(ctx context.Context, stale string) (string, error) {
	if tok := e.Token(); tok != "" && tok != stale {
		return tok, nil
	}

	v, err, _ := e.refresh.Do("refresh", func() (interface{}, error) {
		// Re-check under the flight: a previous flight may have landed
		// between the caller's check and this one.
		if tok := e.Token(); tok != "" && tok != stale {
			return tok, nil
		}

		e.mu.RLock()
		var refreshToken string
		if e.pair != nil {
			refreshToken = e.pair.RefreshToken
		}
		e.mu.RUnlock()

		if refreshToken == "" {
			err := &APIError{Code: CodeSessionExpired, Message: "no refresh token"}
			e.expire(ctx, err)
			e.metrics.RecordRefresh(false)
			return nil, err
		}

		pair, err := e.backend.Refresh(ctx, refreshToken)
		if err != nil {
			e.expire(ctx, err)
			e.metrics.RecordRefresh(false)
			return nil, &APIError{
				Code:    CodeSessionExpired,
				Message: fmt.Sprintf("refresh exchange failed: %v", err),
			}
		}

		id := e.install(ctx, *pair, SessionRenewed)
		e.metrics.RecordRefresh(true)
		e.auditEvent("refresh", "success", id.ID, "")
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
