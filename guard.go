package authkit

import "context"

// Decision is the outcome of an access-guard evaluation.
type Decision int

const (
	// DecisionChecking means the identity or the admin check has not
	// resolved yet. Protected content must not render while checking.
	DecisionChecking Decision = iota

	// DecisionAllowed grants access.
	DecisionAllowed

	// DecisionDenied is terminal for the render pass; the navigation layer
	// redirects to the anonymous entry point.
	DecisionDenied
)

// String returns the lowercase name of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionAllowed:
		return "allowed"
	case DecisionDenied:
		return "denied"
	default:
		return "checking"
	}
}

// Evaluate applies the access table to a session snapshot:
//
//   - no identity: denied, regardless of the requirement
//   - role unresolved: checking
//   - RequireNone: allowed
//   - RequireAdmin: allowed iff the resolved role is admin
//   - RequireTrainer: allowed iff the identity is trainer-flagged,
//     independent of the admin check's outcome
//   - RequireMember: allowed iff not trainer-flagged and not admin
//
// Evaluate is pure; use Engine.Authorize to resolve the role first.
func Evaluate(s Session, required RequiredRole) Decision {
	if s.Identity == nil {
		return DecisionDenied
	}
	if s.Role == RoleUnresolved {
		return DecisionChecking
	}

	switch required {
	case RequireNone:
		return DecisionAllowed
	case RequireAdmin:
		if s.Role == RoleAdmin {
			return DecisionAllowed
		}
	case RequireTrainer:
		if s.Identity.Trainer {
			return DecisionAllowed
		}
	case RequireMember:
		if !s.Identity.Trainer && s.Role != RoleAdmin {
			return DecisionAllowed
		}
	}
	return DecisionDenied
}

// Authorize resolves the current role, then evaluates the requirement.
// It never returns DecisionChecking: resolution blocks on the admin check
// (degrading on failure), so the caller gets a final allow or deny.
func (e *Engine) Authorize(ctx context.Context, required RequiredRole) Decision {
	s := e.Session()
	if s.Identity == nil {
		e.metrics.RecordGuard("denied")
		return DecisionDenied
	}

	s.Role = e.ResolveRole(ctx)
	d := Evaluate(s, required)
	e.metrics.RecordGuard(d.String())
	if d == DecisionDenied {
		e.auditEvent("guard", "denied", s.Identity.ID, "required="+required.String())
	}
	return d
}

// EntryPoint returns the redirect target for denied decisions.
func (e *Engine) EntryPoint() string { return e.config.EntryPoint }
