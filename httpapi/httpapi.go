// Package httpapi implements authkit.Backend against the platform's REST
// endpoints.
//
// It owns the translation from the wire conventions (HTTP status codes plus
// a message-prefix convention for unverified emails) into the structured
// authkit error taxonomy. Nothing above this boundary inspects message
// strings; the prefix matching here is a provisional adapter until the
// server grows real error codes.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	authkit "github.com/pulsefit/authkit-go"
	"github.com/pulsefit/authkit-go/transport"
)

// Endpoint paths consumed by the adapter.
const (
	PathLogin       = "/auth/login"
	PathSocialLogin = "/auth/social-login"
	PathRefresh     = "/auth/refresh"
	PathLogout      = "/auth/logout"
	PathIsAdmin     = "/users/is-admin"
)

// Client implements authkit.Backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// compile-time check
var _ authkit.Backend = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The caller is responsible for
// wiring the interceptor when using this option.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTokenSource wires the request interceptor around every call this
// client makes, using src for token attachment and refresh. The auth
// endpoints are exempted so a credential failure cannot recurse into the
// refresh protocol.
func WithTokenSource(src transport.TokenSource, opts ...transport.Option) Option {
	return func(cl *Client) {
		opts = append(opts,
			transport.WithExemptPaths(PathLogin, PathSocialLogin, PathRefresh))
		cl.httpClient = &http.Client{
			Transport: transport.New(nil, src, opts...),
			Timeout:   30 * time.Second,
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a REST backend for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Wire shapes owned by the collaborator.

type tokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    tokenData `json:"data"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*authkit.TokenPair, error) {
	return c.tokenCall(ctx, PathLogin, map[string]string{
		"email":    email,
		"password": password,
	})
}

// SocialLogin exchanges a provider token for a token pair.
func (c *Client) SocialLogin(ctx context.Context, provider, token string) (*authkit.TokenPair, error) {
	return c.tokenCall(ctx, PathSocialLogin, map[string]string{
		"provider": provider,
		"token":    token,
	})
}

// Refresh exchanges the refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authkit.TokenPair, error) {
	return c.tokenCall(ctx, PathRefresh, map[string]string{
		"refreshToken": refreshToken,
	})
}

// Logout invalidates the refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.post(ctx, PathLogout, map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return err
	}
	defer discard(resp)

	if resp.StatusCode >= 400 {
		return c.classifyResponse(resp)
	}
	return nil
}

// IsAdmin asks the server whether the current identity is an admin. The
// interceptor attaches the access token; this call participates in the
// refresh protocol like any other resource call.
func (c *Client) IsAdmin(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathIsAdmin, nil)
	if err != nil {
		return false, fmt.Errorf("httpapi: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, wrapTransportError(err)
	}
	defer discard(resp)

	if resp.StatusCode >= 400 {
		return false, c.classifyResponse(resp)
	}

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("httpapi: decode is-admin response: %w", err)
	}
	return body.Success, nil
}

// tokenCall posts the payload and decodes a token-pair response.
func (c *Client) tokenCall(ctx context.Context, path string, payload any) (*authkit.TokenPair, error) {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	defer discard(resp)

	if resp.StatusCode >= 400 {
		return nil, c.classifyResponse(resp)
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("httpapi: decode %s response: %w", path, err)
	}
	if !body.Success {
		return nil, &authkit.APIError{
			Code:    authkit.CodeBadCredentials,
			Status:  resp.StatusCode,
			Message: body.Message,
		}
	}
	return &authkit.TokenPair{
		AccessToken:  body.Data.AccessToken,
		RefreshToken: body.Data.RefreshToken,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("httpapi: encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("httpapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	return resp, nil
}

// classifyResponse converts a non-2xx response into an *authkit.APIError.
func (c *Client) classifyResponse(resp *http.Response) error {
	var body errorResponse
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &body)

	message := body.Message
	if message == "" && body.Error != nil {
		message = body.Error.Message
	}

	apiErr := &authkit.APIError{
		Status:  resp.StatusCode,
		Message: message,
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		apiErr.Code = authkit.CodeValidation
		for _, fe := range body.Errors {
			apiErr.Fields = append(apiErr.Fields, authkit.FieldError{
				Field:   fe.Field,
				Message: fe.Message,
			})
		}
	case http.StatusUnauthorized:
		if strings.HasPrefix(message, "Email not verified") ||
			strings.HasPrefix(message, "Social email not verified") {
			apiErr.Code = authkit.CodeEmailUnverified
			apiErr.UnverifiedEmail = unverifiedEmail(message)
		} else {
			apiErr.Code = authkit.CodeBadCredentials
		}
	case http.StatusForbidden:
		apiErr.Code = authkit.CodeAccessDenied
	default:
		apiErr.Code = authkit.CodeUnknown
	}

	c.logger.Debug("api error", "status", resp.StatusCode, "code", apiErr.Code.String())
	return apiErr
}

// unverifiedEmail recovers the address from the "<prefix>,<email>" message
// convention used by the social-login rejection.
func unverifiedEmail(message string) string {
	if i := strings.IndexByte(message, ','); i >= 0 {
		return strings.TrimSpace(message[i+1:])
	}
	return ""
}

// wrapTransportError classifies errors surfaced by the HTTP client: a failed
// refresh propagates as CodeSessionExpired, everything else is a plain
// network failure with no status.
func wrapTransportError(err error) error {
	var expired *transport.SessionExpiredError
	if errors.As(err, &expired) {
		return &authkit.APIError{
			Code:    authkit.CodeSessionExpired,
			Status:  expired.Status,
			Message: "session expired, please log in again",
		}
	}
	return &authkit.APIError{Code: authkit.CodeNetwork, Message: err.Error()}
}

// discard drains and closes a response body for connection reuse.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
