package authkit

import (
	"context"
	"fmt"
)

// Bootstrap populates the session from the persisted token pair. It runs once
// at process start, never touches the network, and leaves the session empty
// when no pair is stored or the access token carries no subject claim.
func (e *Engine) Bootstrap(ctx context.Context) error {
	pair, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("authkit: bootstrap: %w", err)
	}
	if pair == nil {
		return nil
	}

	id := DecodeIdentity(pair.AccessToken)
	e.mu.Lock()
	e.pair = pair
	if id.ID != "" {
		e.identity = &id
		e.role = RoleUnresolved
	}
	e.mu.Unlock()

	if id.ID != "" {
		e.logger.Debug("session restored from store", "user_id", id.ID)
	}
	return nil
}

// Login exchanges credentials for a session. The outcome is always a
// classified LoginResult; no error escapes unclassified.
func (e *Engine) Login(ctx context.Context, email, password string) LoginResult {
	pair, err := e.backend.Login(ctx, email, password)
	if err != nil {
		res := e.classifyAuthError(err, email)
		e.metrics.RecordLogin(res.Code.String())
		e.auditEvent("login", "failure", "", res.Message)
		return res
	}

	id := e.install(ctx, *pair, SessionStarted)
	e.metrics.RecordLogin("success")
	e.auditEvent("login", "success", id.ID, "")
	return LoginResult{OK: true}
}

// SocialLogin is Login with a provider token instead of credentials.
func (e *Engine) SocialLogin(ctx context.Context, provider, token string) LoginResult {
	pair, err := e.backend.SocialLogin(ctx, provider, token)
	if err != nil {
		res := e.classifyAuthError(err, "")
		e.metrics.RecordLogin(res.Code.String())
		e.auditEvent("social_login", "failure", "", res.Message)
		return res
	}

	id := e.install(ctx, *pair, SessionStarted)
	e.metrics.RecordLogin("success")
	e.auditEvent("social_login", "success", id.ID, provider)
	return LoginResult{OK: true}
}

// Logout notifies the server on a best-effort basis, then unconditionally
// clears the stored pair and the in-memory identity. Logging out while
// already logged out is a no-op; logout succeeds locally even when offline.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.RLock()
	var refreshToken, userID string
	if e.pair != nil {
		refreshToken = e.pair.RefreshToken
	}
	if e.identity != nil {
		userID = e.identity.ID
	}
	e.mu.RUnlock()

	if refreshToken != "" {
		if err := e.backend.Logout(ctx, refreshToken); err != nil {
			e.logger.Debug("server logout failed, clearing locally", "error", err)
		}
	}

	e.auditEvent("logout", "success", userID, "")
	return e.clearLocal(ctx, SessionEnded)
}

// expire is the forced-logout path taken when a refresh exchange fails.
// The refresh token is already dead server-side, so only local state is
// cleared; subscribers see SessionExpired rather than SessionEnded.
func (e *Engine) expire(ctx context.Context, cause error) {
	e.mu.RLock()
	var userID string
	if e.identity != nil {
		userID = e.identity.ID
	}
	e.mu.RUnlock()

	e.logger.Warn("session expired", "error", cause)
	e.auditEvent("refresh", "failure", userID, cause.Error())
	if err := e.clearLocal(ctx, SessionExpired); err != nil {
		e.logger.Warn("clearing expired session", "error", err)
	}
}

// clearLocal wipes the store and the in-memory session, then notifies
// subscribers. Both tokens are always cleared together.
func (e *Engine) clearLocal(ctx context.Context, evt SessionEventType) error {
	err := e.store.Clear(ctx)

	e.mu.Lock()
	e.pair = nil
	e.identity = nil
	e.role = RoleAnonymous
	e.mu.Unlock()

	e.notify(SessionEvent{Type: evt, Session: e.Session()})

	if err != nil {
		return fmt.Errorf("authkit: clearing token store: %w", err)
	}
	return nil
}

// install persists the pair, decodes the identity and replaces the session
// wholesale. The returned Identity is the decoded record.
func (e *Engine) install(ctx context.Context, pair TokenPair, evt SessionEventType) Identity {
	if err := e.store.Save(ctx, pair); err != nil {
		// The in-memory session is still valid for this process run.
		e.logger.Warn("persisting token pair", "error", err)
	}

	id := DecodeIdentity(pair.AccessToken)

	e.mu.Lock()
	e.pair = &pair
	if id.ID != "" {
		e.identity = &id
		e.role = RoleUnresolved
	} else {
		e.identity = nil
		e.role = RoleAnonymous
	}
	e.mu.Unlock()

	e.notify(SessionEvent{Type: evt, Session: e.Session()})
	return id
}

// classifyAuthError converts a Backend error from login or social login into
// a LoginResult per the platform taxonomy.
func (e *Engine) classifyAuthError(err error, email string) LoginResult {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return LoginResult{Code: CodeNetwork, Message: err.Error()}
	}

	res := LoginResult{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Fields:  apiErr.Fields,
	}
	if apiErr.Code == CodeEmailUnverified {
		res.UnverifiedEmail = apiErr.UnverifiedEmail
		if res.UnverifiedEmail == "" {
			res.UnverifiedEmail = email
		}
	}
	return res
}
