package authkit

import "context"

// ResolveRole computes the effective role for the current identity.
//
// Trainer versus member is self-asserted at signup and travels in the token
// claims, so it is cheap and local. Admin is a privileged server-controlled
// designation that must never be trusted from a client-held token, so it is
// asked of the server on every resolution. When the admin check fails, the
// role degrades to the claim-derived tier instead of blocking; admin status
// is simply unavailable until the next successful check, and the result is
// never Anonymous while an identity exists.
func (e *Engine) ResolveRole(ctx context.Context) Role {
	e.mu.RLock()
	id := e.identity
	e.mu.RUnlock()

	if id == nil {
		return RoleAnonymous
	}

	role := RoleMember
	if id.Trainer {
		role = RoleTrainer
	}

	isAdmin, err := e.backend.IsAdmin(ctx)
	if err != nil {
		e.logger.Debug("admin check unavailable, using claim-derived role",
			"user_id", id.ID, "role", role, "error", err)
	} else if isAdmin {
		role = RoleAdmin
	}

	// Cache for Session snapshots, but only while the identity that was
	// resolved is still the current one.
	e.mu.Lock()
	if e.identity == id {
		e.role = role
	}
	e.mu.Unlock()

	return role
}
