package handler

import (
	"errors"
	"net/http"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/infrastructure/gateway"
)

// rejectedStatus picks the HTTP status for a status change the backend
// refused. Client-side refusals keep their code; everything else is a bad
// gateway from the UI's point of view.
func rejectedStatus(err error) int {
	if errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrNotAuthenticated) {
		return http.StatusUnauthorized
	}
	if code := gateway.StatusCode(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}
