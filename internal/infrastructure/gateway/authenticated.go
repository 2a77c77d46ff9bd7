package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/metrics"
)

// TokenSource supplies and renews the bearer credential. The session service
// implements it.
type TokenSource interface {
	Token() string
	// RefreshFrom renews sent, the credential a rejected call carried. When the
	// source already holds a newer credential it returns that one instead.
	RefreshFrom(ctx context.Context, sent string) (string, error)
	Logout(ctx context.Context)
}

// maxAttempts is the number of times one logical call may be sent: the
// original request and at most one replay after a refresh.
const maxAttempts = 2

// Authenticated decorates a Client with the current credential. A 401 on the
// first attempt of a call triggers one refresh and one replay with the new
// credential. A 401 on the replay, or a failed refresh, tears the session down.
type Authenticated struct {
	client *Client
	tokens TokenSource
	log    zerolog.Logger
}

// NewAuthenticated wraps client with tokens.
func NewAuthenticated(client *Client, tokens TokenSource, log zerolog.Logger) *Authenticated {
	return &Authenticated{client: client, tokens: tokens, log: log}
}

// Do sends one logical call. Callers never see the intermediate 401.
func (a *Authenticated) Do(ctx context.Context, method, path string, body, out any) error {
	token := a.tokens.Token()
	if token == "" {
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotAuthenticated)
	}

	for attempt := 1; ; attempt++ {
		err := a.client.Do(ctx, method, path, token, body, out)
		if !errors.Is(err, domain.ErrUnauthorized) {
			return err
		}

		if attempt >= maxAttempts {
			a.log.Warn().Str("method", method).Str("path", path).Msg("replay rejected after refresh, logging out")
			a.tokens.Logout(ctx)
			return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrSessionExpired, err)
		}

		fresh, rerr := a.tokens.RefreshFrom(ctx, token)
		if rerr != nil {
			if errors.Is(rerr, domain.ErrSessionExpired) {
				return fmt.Errorf("%s %s: %w", method, path, rerr)
			}
			return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrSessionExpired, rerr)
		}

		metrics.GatewayReplaysTotal.Inc()
		a.log.Debug().Str("method", method).Str("path", path).Msg("replaying call with refreshed credential")
		token = fresh
	}
}
