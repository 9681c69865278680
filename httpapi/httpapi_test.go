package httpapi_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	authkit "github.com/pulsefit/authkit-go"
	"github.com/pulsefit/authkit-go/httpapi"
	"github.com/pulsefit/authkit-go/store"
)

// apiServer simulates the platform's auth endpoints for a single account,
// with rotating refresh tokens and revocable access tokens.
type apiServer struct {
	*httptest.Server

	base     string // server URL plus the mount prefix
	email    string
	password string
	trainer  bool
	admin    bool

	mu           sync.Mutex
	tokenSeq     int
	validAccess  map[string]bool
	liveRefresh  map[string]bool
	refreshCalls int
}

func newAPIServer(t *testing.T, email, password string, trainer, admin bool) *apiServer {
	return newAPIServerAt(t, "", email, password, trainer, admin)
}

// newAPIServerAt mounts the auth endpoints under prefix (e.g. "/api"),
// matching deployments where the API is not served from the host root.
func newAPIServerAt(t *testing.T, prefix, email, password string, trainer, admin bool) *apiServer {
	t.Helper()
	s := &apiServer{
		email:       email,
		password:    password,
		trainer:     trainer,
		admin:       admin,
		validAccess: make(map[string]bool),
		liveRefresh: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/auth/login", s.handleLogin)
	mux.HandleFunc("POST "+prefix+"/auth/social-login", s.handleSocialLogin)
	mux.HandleFunc("POST "+prefix+"/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST "+prefix+"/auth/logout", s.handleLogout)
	mux.HandleFunc("GET "+prefix+"/users/is-admin", s.handleIsAdmin)

	s.Server = httptest.NewServer(mux)
	s.base = s.Server.URL + prefix
	t.Cleanup(s.Close)
	return s
}

// mint issues a JWT-shaped access token with a uniqueness counter so every
// refresh produces a distinct token string.
func (s *apiServer) mint() (access, refresh string) {
	s.tokenSeq++
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, _ := json.Marshal(map[string]any{
		"sub":       "user-1",
		"email":     s.email,
		"firstName": "Pat",
		"isTrainer": s.trainer,
		"v":         s.tokenSeq,
	})
	access = header + "." + enc.EncodeToString(payload) + ".sig"
	refresh = fmt.Sprintf("refresh-%d", s.tokenSeq)

	s.validAccess = map[string]bool{access: true}
	s.liveRefresh[refresh] = true
	return access, refresh
}

// RevokeAccess invalidates every outstanding access token, simulating expiry.
func (s *apiServer) RevokeAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validAccess = make(map[string]bool)
}

// RevokeRefresh invalidates every outstanding refresh token.
func (s *apiServer) RevokeRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveRefresh = make(map[string]bool)
}

// RefreshCalls reports how many refresh exchanges the server has seen.
func (s *apiServer) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *apiServer) writeTokens(w http.ResponseWriter, access, refresh string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    map[string]string{"accessToken": access, "refreshToken": refresh},
	})
}

func writeError(w http.ResponseWriter, status int, message string, fields ...map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"statusCode": status, "message": message}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct{ Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Email == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			map[string]string{"field": "email", "message": "email is required"})
		return
	}
	if body.Email != s.email || body.Password != s.password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.mu.Lock()
	access, refresh := s.mint()
	s.mu.Unlock()
	s.writeTokens(w, access, refresh)
}

func (s *apiServer) handleSocialLogin(w http.ResponseWriter, r *http.Request) {
	var body struct{ Provider, Token string }
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Token == "unverified" {
		writeError(w, http.StatusUnauthorized, "Social email not verified,pending@example.com")
		return
	}
	if body.Token == "banned" {
		writeError(w, http.StatusForbidden, "Account suspended")
		return
	}
	if body.Token != "good-token" {
		writeError(w, http.StatusUnauthorized, "Social login failed")
		return
	}

	s.mu.Lock()
	access, refresh := s.mint()
	s.mu.Unlock()
	s.writeTokens(w, access, refresh)
}

func (s *apiServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshCalls++
	if !s.liveRefresh[body.RefreshToken] {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	// Rotation: the presented token is consumed.
	delete(s.liveRefresh, body.RefreshToken)
	access, refresh := s.mint()
	s.writeTokens(w, access, refresh)
}

func (s *apiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	delete(s.liveRefresh, body.RefreshToken)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func (s *apiServer) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	token := trimBearer(r.Header.Get("Authorization"))
	s.mu.Lock()
	ok := s.validAccess[token]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": s.admin})
}

func trimBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}

// newEngine wires an Engine to the test server through the REST adapter and
// the interceptor.
func newEngine(t *testing.T, s *apiServer) *authkit.Engine {
	t.Helper()
	eng, err := authkit.NewEngine(
		authkit.Config{},
		authkit.WithTokenStore(store.NewMemory()),
		authkit.WithBackend(func(src authkit.TokenSource) authkit.Backend {
			return httpapi.New(s.base, httpapi.WithTokenSource(src))
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestLogin_Classification(t *testing.T) {
	s := newAPIServer(t, "pat@example.com", "pw", false, false)
	eng := newEngine(t, s)

	t.Run("bad credentials", func(t *testing.T) {
		res := eng.Login(context.Background(), "pat@example.com", "wrong")
		if res.OK || res.Code != authkit.CodeBadCredentials {
			t.Errorf("result = %+v, want bad_credentials", res)
		}
	})

	t.Run("validation errors carry fields", func(t *testing.T) {
		res := eng.Login(context.Background(), "", "pw")
		if res.Code != authkit.CodeValidation {
			t.Fatalf("Code = %v, want validation", res.Code)
		}
		if len(res.Fields) != 1 || res.Fields[0].Field != "email" {
			t.Errorf("Fields = %+v, want the email field error", res.Fields)
		}
	})

	t.Run("success", func(t *testing.T) {
		res := eng.Login(context.Background(), "pat@example.com", "pw")
		if !res.OK {
			t.Fatalf("Login failed: %+v", res)
		}
		if id := eng.Session().Identity; id == nil || id.ID != "user-1" {
			t.Errorf("identity = %+v, want user-1", id)
		}
	})
}

func TestSocialLogin_Classification(t *testing.T) {
	s := newAPIServer(t, "pat@example.com", "pw", false, false)
	eng := newEngine(t, s)

	t.Run("unverified email parses the address", func(t *testing.T) {
		res := eng.SocialLogin(context.Background(), "google", "unverified")
		if res.Code != authkit.CodeEmailUnverified {
			t.Fatalf("Code = %v, want email_unverified", res.Code)
		}
		if res.UnverifiedEmail != "pending@example.com" {
			t.Errorf("UnverifiedEmail = %q, want pending@example.com", res.UnverifiedEmail)
		}
	})

	t.Run("access denied carries the reason", func(t *testing.T) {
		res := eng.SocialLogin(context.Background(), "google", "banned")
		if res.Code != authkit.CodeAccessDenied {
			t.Fatalf("Code = %v, want access_denied", res.Code)
		}
		if res.Message != "Account suspended" {
			t.Errorf("Message = %q, want the server reason", res.Message)
		}
	})

	t.Run("success", func(t *testing.T) {
		res := eng.SocialLogin(context.Background(), "google", "good-token")
		if !res.OK {
			t.Fatalf("SocialLogin failed: %+v", res)
		}
	})
}

func TestNetworkError_NoStatus(t *testing.T) {
	client := httpapi.New("http://127.0.0.1:1")
	_, err := client.Login(context.Background(), "a@b.c", "pw")

	apiErr, ok := authkit.AsAPIError(err)
	if !ok || apiErr.Code != authkit.CodeNetwork {
		t.Fatalf("error = %v, want a network-code APIError", err)
	}
	if apiErr.Status != 0 {
		t.Errorf("Status = %d, want 0 for a transport failure", apiErr.Status)
	}
}

func TestExpiredToken_RefreshAndReplay(t *testing.T) {
	s := newAPIServer(t, "pat@example.com", "pw", false, true)
	eng := newEngine(t, s)

	if res := eng.Login(context.Background(), "pat@example.com", "pw"); !res.OK {
		t.Fatalf("Login failed: %+v", res)
	}
	before := eng.Token()

	// Simulate access-token expiry: the next call 401s, the interceptor
	// refreshes and replays, and the caller never notices.
	s.RevokeAccess()

	role := eng.ResolveRole(context.Background())
	if role != authkit.RoleAdmin {
		t.Fatalf("ResolveRole() = %v, want admin after transparent refresh", role)
	}
	if s.RefreshCalls() != 1 {
		t.Errorf("refresh calls = %d, want 1", s.RefreshCalls())
	}
	if eng.Token() == before {
		t.Error("access token not renewed")
	}
	if id := eng.Session().Identity; id == nil || id.ID != "user-1" {
		t.Errorf("identity after refresh = %+v", id)
	}
}

func TestInvalidRefreshToken_SessionExpires(t *testing.T) {
	s := newAPIServer(t, "pat@example.com", "pw", false, false)
	eng := newEngine(t, s)

	eng.Login(context.Background(), "pat@example.com", "pw")

	var expired bool
	cancel := eng.Subscribe(func(evt authkit.SessionEvent) {
		if evt.Type == authkit.SessionExpired {
			expired = true
		}
	})
	defer cancel()

	s.RevokeAccess()
	s.RevokeRefresh()

	_, err := eng.Refresh(context.Background(), eng.Token())
	if err == nil {
		t.Fatal("Refresh succeeded with a revoked refresh token")
	}
	apiErr, ok := authkit.AsAPIError(err)
	if !ok || apiErr.Code != authkit.CodeSessionExpired {
		t.Fatalf("error = %v, want session_expired", err)
	}
	if !expired {
		t.Error("subscribers were not notified of expiry")
	}
	if eng.Session().LoggedIn() {
		t.Error("session survives refresh failure")
	}
}

func TestPathPrefixedBaseURL_RefreshAndReplay(t *testing.T) {
	s := newAPIServerAt(t, "/api", "pat@example.com", "pw", false, true)
	eng := newEngine(t, s)

	if res := eng.Login(context.Background(), "pat@example.com", "pw"); !res.OK {
		t.Fatalf("Login failed: %+v", res)
	}
	s.RevokeAccess()

	if role := eng.ResolveRole(context.Background()); role != authkit.RoleAdmin {
		t.Fatalf("ResolveRole() = %v, want admin after transparent refresh", role)
	}
	if s.RefreshCalls() != 1 {
		t.Errorf("refresh calls = %d, want 1", s.RefreshCalls())
	}
}

func TestPathPrefixedBaseURL_RefreshFailureTerminates(t *testing.T) {
	s := newAPIServerAt(t, "/api", "pat@example.com", "pw", false, false)
	eng := newEngine(t, s)

	if res := eng.Login(context.Background(), "pat@example.com", "pw"); !res.OK {
		t.Fatalf("Login failed: %+v", res)
	}
	s.RevokeAccess()
	s.RevokeRefresh()

	// The refresh endpoint's own 401 must stay out of the refresh protocol.
	// If the exemption misses under the prefix, the exchange re-enters the
	// in-flight refresh and blocks on itself forever.
	done := make(chan error, 1)
	go func() {
		_, err := eng.Refresh(context.Background(), eng.Token())
		done <- err
	}()

	select {
	case err := <-done:
		apiErr, ok := authkit.AsAPIError(err)
		if !ok || apiErr.Code != authkit.CodeSessionExpired {
			t.Fatalf("error = %v, want session_expired", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("refresh exchange never returned with a path-prefixed base URL")
	}
	if eng.Session().LoggedIn() {
		t.Error("session survives refresh failure")
	}
}

func TestConcurrent401s_SingleRefreshExchange(t *testing.T) {
	s := newAPIServer(t, "pat@example.com", "pw", true, false)
	eng := newEngine(t, s)

	backend := httpapi.New(s.base, httpapi.WithTokenSource(eng))
	if res := eng.Login(context.Background(), "pat@example.com", "pw"); !res.OK {
		t.Fatalf("Login failed: %+v", res)
	}

	s.RevokeAccess()

	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = backend.IsAdmin(context.Background())
		}(i)
	}
	wg.Wait()

	// Refresh tokens rotate server-side: if each 401 had run its own
	// exchange, all but the first would have been rejected.
	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if s.RefreshCalls() != 1 {
		t.Errorf("refresh exchanges = %d, want exactly 1", s.RefreshCalls())
	}
}
