// Package authkit is a client-side session and authorization engine for the
// PulseFit platform.
//
// The engine owns the lifecycle of an access/refresh token pair, derives the
// effective user role from token claims plus an authoritative server check,
// transparently renews expired access tokens without disrupting in-flight
// calls, and gates access to protected surfaces based on the resolved role.
// Storage, transport and the remote API are injected via Option functions,
// keeping the engine independent of any particular backend.
//
// Example usage with the REST backend and a file-backed token store:
//
//	eng, err := authkit.NewEngine(
//	    authkit.Config{EntryPoint: "/login"},
//	    authkit.WithTokenStore(store.NewFile(path)),
//	    authkit.WithBackend(func(src authkit.TokenSource) authkit.Backend {
//	        return httpapi.New("https://api.pulsefit.example", httpapi.WithTokenSource(src))
//	    }),
//	)
package authkit

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pulsefit/authkit-go/audit"
	"github.com/pulsefit/authkit-go/metrics"
)

// DefaultEntryPoint is where denied navigations are redirected when the
// configuration does not name an anonymous entry point.
const DefaultEntryPoint = "/login"

// Config holds engine behavior configuration.
type Config struct {
	// EntryPoint is the anonymous entry point of the application, used as
	// the redirect target for denied guard decisions. Default: "/login".
	EntryPoint string
}

// Engine is the process-wide session authority. It is safe for concurrent
// use; all session mutation goes through Bootstrap, Login, SocialLogin,
// Logout and the refresh protocol; consumers read snapshots via Session.
type Engine struct {
	config  Config
	logger  *slog.Logger
	store   TokenStore
	backend Backend
	metrics *metrics.Metrics
	auditor *audit.Logger

	mu       sync.RWMutex
	pair     *TokenPair
	identity *Identity
	role     Role

	// refresh is shared by every request that hits a 401 inside one
	// refresh window, so a rotating refresh token is spent exactly once.
	refresh singleflight.Group

	subMu   sync.Mutex
	subs    map[int]func(SessionEvent)
	nextSub int
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTokenStore sets the token persistence implementation.
func WithTokenStore(s TokenStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithBackend sets the remote API implementation. The factory receives the
// engine as a TokenSource so HTTP backends can wire their interceptor to it.
func WithBackend(f BackendFactory) Option {
	return func(e *Engine) { e.backend = f(e) }
}

// WithMetrics sets the metrics sink for auth operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAuditLogger sets the audit event sink.
func WithAuditLogger(l *audit.Logger) Option {
	return func(e *Engine) { e.auditor = l }
}

// NewEngine creates a session engine. A token store and a backend are
// required; everything else has defaults.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.EntryPoint == "" {
		cfg.EntryPoint = DefaultEntryPoint
	}

	e := &Engine{
		config:  cfg,
		logger:  slog.Default(),
		metrics: metrics.Nop(),
		role:    RoleAnonymous,
		subs:    make(map[int]func(SessionEvent)),
	}
	for _, o := range opts {
		o(e)
	}

	if e.store == nil {
		return nil, fmt.Errorf("authkit: a token store is required")
	}
	if e.backend == nil {
		return nil, fmt.Errorf("authkit: a backend is required")
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Session returns a read-only snapshot of the current session.
func (e *Engine) Session() Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Session{Identity: e.identity, Role: e.role}
}

// Token returns the current access token, or "" when logged out.
// Interceptors call this at send time so requests queued before a refresh
// still go out with the newest token.
func (e *Engine) Token() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pair == nil {
		return ""
	}
	return e.pair.AccessToken
}

// Subscribe registers fn to receive session change events. It returns an
// unsubscribe function. This replaces the original platform's loosely-typed
// global "auth changed" broadcast with an explicit subscription.
func (e *Engine) Subscribe(fn func(SessionEvent)) (cancel func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// notify delivers an event to all subscribers synchronously, in the mutating
// call's goroutine. Subscribers must not block.
func (e *Engine) notify(evt SessionEvent) {
	e.subMu.Lock()
	fns := make([]func(SessionEvent), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(evt)
	}
}

func (e *Engine) auditEvent(action, result, userID, detail string) {
	if e.auditor == nil {
		return
	}
	e.auditor.Log(audit.Event{
		Action: action,
		Result: result,
		UserID: userID,
		Detail: detail,
	})
}
