package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// Context keys set by RequireSession.
const (
	CtxUser = "user"
	CtxRole = "role"
)

// SessionReader exposes the active session, or nil when logged out.
type SessionReader interface {
	Current() *domain.Session
}

// RequireSession rejects requests while no one is logged in, and injects the
// identity and role into context for the handlers and RBAC.
func RequireSession(sessions SessionReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := sessions.Current()
			if !sess.Authenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
			}

			c.Set(CtxUser, sess.User)
			c.Set(CtxRole, sess.User.Role)

			return next(c)
		}
	}
}
