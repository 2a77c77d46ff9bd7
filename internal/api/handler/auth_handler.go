package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// SessionManager is the session surface the auth routes drive.
type SessionManager interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
	Logout(ctx context.Context)
	Refresh(ctx context.Context) (string, error)
	Current() *domain.Session
}

// AuthHandler exposes the session lifecycle.
type AuthHandler struct {
	sessions SessionManager
}

func NewAuthHandler(sessions SessionManager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// Login handles POST /auth/login.
//
// @Summary      Log in against the laundry backend
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if _, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(h.sessions.Current()))
}

// Logout handles POST /auth/logout. It always succeeds.
//
// @Summary      Log out and clear every cache
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.sessions.Logout(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Refresh handles POST /auth/refresh.
//
// @Summary      Renew the bearer credential
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	if _, err := h.sessions.Refresh(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(h.sessions.Current()))
}

// Me handles GET /auth/me.
//
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	sess := h.sessions.Current()
	if sess == nil {
		return domain.ErrNotAuthenticated
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

func toSessionResponse(sess *domain.Session) sessionResponse {
	if sess == nil {
		return sessionResponse{}
	}
	resp := sessionResponse{User: userResponse{
		ID:    sess.User.ID,
		Name:  sess.User.Name,
		Email: sess.User.Email,
		Role:  string(sess.User.Role),
	}}
	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	return resp
}
