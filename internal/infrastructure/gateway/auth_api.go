package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
)

// AuthAPI is the session side of the backend. It uses the raw Client so a
// failing refresh can never trigger another refresh.
type AuthAPI struct {
	client *Client
}

// NewAuthAPI creates an AuthAPI.
func NewAuthAPI(client *Client) *AuthAPI {
	return &AuthAPI{client: client}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Login exchanges credentials for a bearer token and identity.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	var res authResponse
	if err := a.client.Do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, errors.New("login: response carries no user")
	}
	return &ports.LoginResult{User: *res.User, Token: res.Token}, nil
}

// Refresh presents the current token and returns its replacement. User is set
// only when the backend sends one.
func (a *AuthAPI) Refresh(ctx context.Context, token string) (*ports.RefreshResult, error) {
	var res authResponse
	if err := a.client.Do(ctx, http.MethodPost, "/auth/refresh", token, nil, &res); err != nil {
		return nil, err
	}
	return &ports.RefreshResult{Token: res.Token, User: res.User}, nil
}

// Me returns the identity owning token. Both {"user": {...}} and a bare user
// object are accepted.
func (a *AuthAPI) Me(ctx context.Context, token string) (*domain.User, error) {
	var raw json.RawMessage
	if err := a.client.Do(ctx, http.MethodGet, "/auth/me", token, nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var bare domain.User
	if err := json.Unmarshal(raw, &bare); err == nil && bare.ID != "" {
		return &bare, nil
	}
	return nil, errors.New("me: response carries no user")
}
