// Package ginmw exposes the access guard as Gin HTTP middleware.
//
// The middleware wraps protected route groups with a required role. It uses
// the engine's Authorize decision directly, so the admin check and any token
// refresh it triggers happen before the handler runs; protected handlers
// never execute while the decision is unresolved.
package ginmw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authkit "github.com/pulsefit/authkit-go"
)

// KeyIdentity is the gin context key under which Guard stores the identity.
const KeyIdentity = "authkit_identity"

// GuardOption configures Guard behavior.
type GuardOption func(*guardConfig)

type guardConfig struct {
	entryPoint string
}

// WithEntryPoint overrides the redirect target for denied decisions.
// Default: the engine's configured entry point.
func WithEntryPoint(path string) GuardOption {
	return func(cfg *guardConfig) { cfg.entryPoint = path }
}

// Guard returns middleware that allows the request through only when the
// session's resolved role satisfies required. Denied requests are redirected
// to the anonymous entry point and never reach the handler.
func Guard(eng *authkit.Engine, required authkit.RequiredRole, opts ...GuardOption) gin.HandlerFunc {
	cfg := &guardConfig{entryPoint: eng.EntryPoint()}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		decision := eng.Authorize(c.Request.Context(), required)
		if decision != authkit.DecisionAllowed {
			c.Redirect(http.StatusFound, cfg.entryPoint)
			c.Abort()
			return
		}

		s := eng.Session()
		c.Set(KeyIdentity, s.Identity)
		c.Request = c.Request.WithContext(
			authkit.WithRole(authkit.WithIdentity(c.Request.Context(), s.Identity), s.Role))
		c.Next()
	}
}

// Identity returns the authenticated identity stored by Guard, or nil.
func Identity(c *gin.Context) *authkit.Identity {
	v, _ := c.Get(KeyIdentity)
	id, _ := v.(*authkit.Identity)
	return id
}
