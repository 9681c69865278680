package authkit

// Identity is the user record carried inside access-token claims.
// It is rebuilt whenever a token is decoded and is never persisted on its own.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Trainer   bool
}

// TokenPair holds the access/refresh token pair issued by the platform.
// Both tokens are opaque strings from the engine's point of view; only the
// access token is ever decoded, and only for its claims.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Role is the coarse authorization tier derived from an Identity.
//
// RoleUnresolved means an identity exists but the authoritative admin check
// has not completed yet. It is distinct from RoleAnonymous, which means no
// identity at all. Roles are recomputed per process run and never persisted:
// admin status can change server-side without a new token being issued.
type Role int

const (
	RoleUnresolved Role = iota
	RoleAnonymous
	RoleMember
	RoleTrainer
	RoleAdmin
)

// String returns the lowercase name of the role.
func (r Role) String() string {
	switch r {
	case RoleAnonymous:
		return "anonymous"
	case RoleMember:
		return "member"
	case RoleTrainer:
		return "trainer"
	case RoleAdmin:
		return "admin"
	default:
		return "unresolved"
	}
}

// RequiredRole names the role a guarded surface demands.
type RequiredRole int

const (
	// RequireNone allows any authenticated identity.
	RequireNone RequiredRole = iota
	RequireMember
	RequireTrainer
	RequireAdmin
)

// String returns the lowercase name of the requirement.
func (r RequiredRole) String() string {
	switch r {
	case RequireMember:
		return "member"
	case RequireTrainer:
		return "trainer"
	case RequireAdmin:
		return "admin"
	default:
		return "none"
	}
}

// Session is a read-only snapshot of the current caller.
// Identity is nil when nobody is logged in. Role is RoleUnresolved until the
// authoritative admin check has run for the current identity.
type Session struct {
	Identity *Identity
	Role     Role
}

// LoggedIn reports whether the session carries an identity.
func (s Session) LoggedIn() bool { return s.Identity != nil }

// SessionEventType classifies a session state change.
type SessionEventType int

const (
	// SessionStarted fires after a successful login or social login.
	SessionStarted SessionEventType = iota

	// SessionRenewed fires after a successful token refresh.
	SessionRenewed

	// SessionEnded fires after an explicit logout.
	SessionEnded

	// SessionExpired fires when a token refresh fails and the engine is
	// forced to clear the session.
	SessionExpired
)

// String returns the snake_case name of the event type.
func (t SessionEventType) String() string {
	switch t {
	case SessionStarted:
		return "session_started"
	case SessionRenewed:
		return "session_renewed"
	case SessionEnded:
		return "session_ended"
	case SessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// SessionEvent is delivered to subscribers on every session state change.
type SessionEvent struct {
	Type    SessionEventType
	Session Session
}

// LoginResult is the classified outcome of Login or SocialLogin.
// The zero value is a failure with CodeUnknown; successful logins set OK.
type LoginResult struct {
	OK      bool
	Code    ErrorCode
	Message string

	// Fields carries field-level validation messages when Code is
	// CodeValidation.
	Fields []FieldError

	// UnverifiedEmail is set when Code is CodeEmailUnverified; it is the
	// address the caller should hand to the verification flow.
	UnverifiedEmail string
}
