package ports

import (
	"context"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// StoredCredential is the persisted copy of a session: the bearer token and a
// denormalized identity record. User is nil when only the token was saved.
type StoredCredential struct {
	Token string
	User  *domain.User
}

// CredentialStore is the local key-value storage that survives restarts.
// Load returns (nil, nil) when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (*StoredCredential, error)
	Save(ctx context.Context, cred StoredCredential) error
	Clear(ctx context.Context) error
}
