package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/infrastructure/gateway"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Passes backend refusals through with the backend's own message.
//   - Logs unexpected errors internally without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Local validation carries its own readable message.
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}

	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, "session expired, please log in again"
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not logged in"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "task not found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid status"
	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadGateway, "backend returned an unknown role"
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway, "backend unreachable"
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode, apiErr.Message
		}
		log.Warn().Err(err).Str("path", c.Path()).Msg("backend error")
		return http.StatusBadGateway, apiErr.Message
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
