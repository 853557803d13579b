package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// AuthProvider implementation — GoTrue (Supabase Auth)
// ============================================================

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueTokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	User         gotrueUser `json:"user"`
}

type gotrueError struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

// SignUp creates a GoTrue identity tagged with the role. The role profile
// row is inserted separately by the auth service.
func (c *Client) SignUp(ctx context.Context, email, password string, role domain.RoleKind) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignUp")
	defer span.End()

	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"user_type": string(role)},
	}

	body, status, err := c.doAuth(ctx, http.MethodPost, "signup", "", payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity || status == http.StatusConflict {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}
	if status < 200 || status >= 300 {
		return nil, c.authError("signup", status, body)
	}

	// GoTrue returns the user object directly on auto-confirm setups, or
	// wrapped under "user" otherwise.
	var user gotrueUser
	if err := json.Unmarshal(body, &user); err != nil || user.ID == "" {
		var wrapped struct {
			User gotrueUser `json:"user"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.User.ID == "" {
			return nil, fmt.Errorf("decode signup response: %s", string(body))
		}
		user = wrapped.User
	}

	return &domain.Identity{ID: user.ID, Email: user.Email}, nil
}

// SignIn exchanges credentials for a token pair.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignIn")
	defer span.End()

	payload := map[string]any{"email": email, "password": password}
	body, status, err := c.doAuth(ctx, http.MethodPost, "token?grant_type=password", "", payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return nil, &domain.ErrUnauthorized{Message: "invalid email or password"}
	}
	if status < 200 || status >= 300 {
		return nil, c.authError("token", status, body)
	}

	var tok gotrueTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	identity := domain.Identity{ID: tok.User.ID, Email: tok.User.Email}
	c.emitChange(domain.AuthChange{Event: domain.AuthSignedIn, Identity: &identity})

	return &domain.LoginResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
		Identity:     identity,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.Refresh")
	defer span.End()

	payload := map[string]any{"refresh_token": refreshToken}
	body, status, err := c.doAuth(ctx, http.MethodPost, "token?grant_type=refresh_token", "", payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
	}

	var tok gotrueTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	identity := domain.Identity{ID: tok.User.ID, Email: tok.User.Email}
	c.emitChange(domain.AuthChange{Event: domain.AuthTokenRefreshed, Identity: &identity})

	return &domain.LoginResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
		Identity:     identity,
	}, nil
}

// SignOut revokes the session behind the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "GoTrue.SignOut")
	defer span.End()

	body, status, err := c.doAuth(ctx, http.MethodPost, "logout", accessToken, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return c.authError("logout", status, body)
	}

	c.emitChange(domain.AuthChange{Event: domain.AuthSignedOut})
	return nil
}

// CurrentSession resolves the identity behind an access token.
func (c *Client) CurrentSession(ctx context.Context, accessToken string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.CurrentSession")
	defer span.End()

	body, status, err := c.doAuth(ctx, http.MethodGet, "user", accessToken, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	if status < 200 || status >= 300 {
		return nil, c.authError("user", status, body)
	}

	var user gotrueUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}
	return &domain.Identity{ID: user.ID, Email: user.Email}, nil
}

// Changes returns the auth-state change feed for this provider.
func (c *Client) Changes() <-chan domain.AuthChange {
	return c.changes
}

// emitChange publishes without blocking; a slow consumer drops events
// rather than stalling the auth path.
func (c *Client) emitChange(ev domain.AuthChange) {
	select {
	case c.changes <- ev:
	default:
		c.logger.Warn("auth change feed full, dropping event", zap.String("event", ev.Event))
	}
}

// doAuth executes a GoTrue request. bearer overrides the anon key as the
// Authorization bearer when set (logout, user).
func (c *Client) doAuth(ctx context.Context, method, path, bearer string, payload map[string]any) ([]byte, int, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, 0, err
	}
	defer c.bulkhead.Release()

	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)

	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("apikey", c.apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	} else {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncrExternalError("gotrue")
		c.logger.Error("gotrue: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) authError(op string, status int, body []byte) error {
	var ge gotrueError
	_ = json.Unmarshal(body, &ge)
	msg := ge.text()
	if msg == "" {
		msg = string(body)
	}
	c.logger.Warn("gotrue: non-2xx response",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("body", msg),
	)
	return &domain.ErrExternalService{
		Service: "supabase/auth",
		Err:     fmt.Errorf("%s returned %d: %s", op, status, msg),
	}
}
