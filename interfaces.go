package authkit

import "context"

// TokenStore persists the token pair across process restarts.
// Implementations: store/ (file, Redis, in-memory). A store holds exactly two
// string values and clears them together, never individually. Stores do not
// validate token shape; garbage surfaces later as a claim-decode miss.
type TokenStore interface {
	// Save durably replaces the stored pair.
	Save(ctx context.Context, pair TokenPair) error

	// Load returns the stored pair, or (nil, nil) when none is present.
	Load(ctx context.Context) (*TokenPair, error)

	// Clear removes both tokens. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Backend is the remote authentication collaborator.
// Implementations: httpapi/ (REST), fake/ (testing). Errors returned from
// Login and SocialLogin should be *APIError so the engine can classify them.
type Backend interface {
	// Login exchanges credentials for a token pair.
	Login(ctx context.Context, email, password string) (*TokenPair, error)

	// SocialLogin exchanges a provider token for a token pair.
	SocialLogin(ctx context.Context, provider, token string) (*TokenPair, error)

	// Refresh exchanges the refresh token for a new pair. Any failure is
	// treated by the engine as unconditional session termination.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// Logout invalidates the refresh token server-side. Best effort; the
	// engine clears local state regardless of the outcome.
	Logout(ctx context.Context, refreshToken string) error

	// IsAdmin asks the server whether the current identity is an admin.
	// Called with the current access token attached by the interceptor.
	IsAdmin(ctx context.Context) (bool, error)
}

// TokenSource supplies the live access token to the request interceptor and
// performs the single-flight refresh exchange on its behalf. The Engine is
// the canonical implementation.
type TokenSource interface {
	// Token returns the current access token, or "" when logged out.
	Token() string

	// Refresh exchanges the refresh token for a new access token. stale is
	// the access token the failing request was sent with; if the session
	// already holds a newer token, that token is returned without spending
	// the refresh token again.
	Refresh(ctx context.Context, stale string) (string, error)
}

// BackendFactory builds a Backend wired to the engine's token source.
// It exists because HTTP backends route their calls through an interceptor
// that needs the engine back as its TokenSource.
type BackendFactory func(src TokenSource) Backend
