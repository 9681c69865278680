// Package fake provides an in-memory Backend and token minting helpers for
// testing session engine behavior without network calls.
package fake

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	authkit "github.com/pulsefit/authkit-go"
)

// MintToken builds a JWT-shaped token carrying the identity claims with a
// placeholder signature. The engine's decoder never verifies signatures, so
// minted tokens behave exactly like server-issued ones in tests.
func MintToken(id authkit.Identity) string {
	return mintToken(id, "")
}

func mintToken(id authkit.Identity, jti string) string {
	claims := map[string]any{
		"sub":       id.ID,
		"email":     id.Email,
		"firstName": id.FirstName,
		"lastName":  id.LastName,
		"isTrainer": id.Trainer,
	}
	if jti != "" {
		claims["jti"] = jti
	}
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("fake"))
}

type account struct {
	password   string
	identity   authkit.Identity
	unverified bool
}

// Backend is an in-memory authkit.Backend with rotating refresh tokens.
type Backend struct {
	mu       sync.Mutex
	accounts map[string]*account         // email -> account
	social   map[string]authkit.Identity // provider+"/"+token -> identity
	admins   map[string]bool             // userID -> is admin
	refresh  map[string]authkit.Identity // live refresh token -> identity
	current  authkit.Identity            // identity of the last issued pair

	refreshCalls   int
	adminCalls     int
	failRefresh    bool
	failAdminCheck bool
}

// compile-time check
var _ authkit.Backend = (*Backend)(nil)

// Option configures the fake backend.
type Option func(*Backend)

// WithAccount adds a credential account.
func WithAccount(email, password string, id authkit.Identity) Option {
	return func(b *Backend) {
		b.accounts[email] = &account{password: password, identity: id}
	}
}

// WithUnverifiedAccount adds an account whose email is not verified; login
// is rejected with the email-unverified code.
func WithUnverifiedAccount(email, password string, id authkit.Identity) Option {
	return func(b *Backend) {
		b.accounts[email] = &account{password: password, identity: id, unverified: true}
	}
}

// WithSocialAccount maps a provider token to an identity.
func WithSocialAccount(provider, token string, id authkit.Identity) Option {
	return func(b *Backend) {
		b.social[provider+"/"+token] = id
	}
}

// WithAdmin flags a user ID as admin.
func WithAdmin(userID string) Option {
	return func(b *Backend) {
		b.admins[userID] = true
	}
}

// New creates a fake backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		accounts: make(map[string]*account),
		social:   make(map[string]authkit.Identity),
		admins:   make(map[string]bool),
		refresh:  make(map[string]authkit.Identity),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Login checks credentials and issues a pair.
func (b *Backend) Login(_ context.Context, email, password string) (*authkit.TokenPair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[email]
	if !ok || acct.password != password {
		return nil, &authkit.APIError{
			Code:    authkit.CodeBadCredentials,
			Status:  401,
			Message: "Invalid credentials",
		}
	}
	if acct.unverified {
		return nil, &authkit.APIError{
			Code:            authkit.CodeEmailUnverified,
			Status:          401,
			Message:         "Email not verified",
			UnverifiedEmail: email,
		}
	}
	return b.issue(acct.identity), nil
}

// SocialLogin checks the provider token and issues a pair.
func (b *Backend) SocialLogin(_ context.Context, provider, token string) (*authkit.TokenPair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.social[provider+"/"+token]
	if !ok {
		return nil, &authkit.APIError{
			Code:    authkit.CodeBadCredentials,
			Status:  401,
			Message: "Social login failed",
		}
	}
	return b.issue(id), nil
}

// Refresh rotates the refresh token: the presented token is consumed and a
// new pair is issued. A consumed or unknown token is rejected, as is every
// call while FailRefresh is set.
func (b *Backend) Refresh(_ context.Context, refreshToken string) (*authkit.TokenPair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshCalls++
	if b.failRefresh {
		return nil, &authkit.APIError{
			Code:    authkit.CodeBadCredentials,
			Status:  401,
			Message: "Invalid refresh token",
		}
	}

	id, ok := b.refresh[refreshToken]
	if !ok {
		return nil, &authkit.APIError{
			Code:    authkit.CodeBadCredentials,
			Status:  401,
			Message: "Refresh token already used",
		}
	}
	delete(b.refresh, refreshToken)
	return b.issue(id), nil
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (b *Backend) Logout(_ context.Context, refreshToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, refreshToken)
	return nil
}

// IsAdmin reports whether the identity of the last issued pair is an admin.
func (b *Backend) IsAdmin(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.adminCalls++
	if b.failAdminCheck {
		return false, &authkit.APIError{Code: authkit.CodeNetwork, Message: "admin check unavailable"}
	}
	return b.admins[b.current.ID], nil
}

// issue mints a pair for id and registers its refresh token. The jti claim
// makes every issued access token distinct, matching real servers where each
// token carries a fresh expiry. Callers hold b.mu.
func (b *Backend) issue(id authkit.Identity) *authkit.TokenPair {
	pair := &authkit.TokenPair{
		AccessToken:  mintToken(id, uuid.NewString()),
		RefreshToken: uuid.NewString(),
	}
	b.refresh[pair.RefreshToken] = id
	b.current = id
	return pair
}

// SetFailRefresh makes every refresh exchange fail while set.
func (b *Backend) SetFailRefresh(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = v
}

// SetFailAdminCheck makes the admin check fail while set.
func (b *Backend) SetFailAdminCheck(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAdminCheck = v
}

// RefreshCalls returns how many refresh exchanges the backend has seen.
func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// AdminCalls returns how many admin checks the backend has seen.
func (b *Backend) AdminCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adminCalls
}

// LiveRefreshTokens returns the number of unconsumed refresh tokens.
func (b *Backend) LiveRefreshTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.refresh)
}
