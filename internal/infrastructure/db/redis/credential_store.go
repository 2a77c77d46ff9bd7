package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
)

const defaultKeyPrefix = "opsync:session"

// CredentialStore persists the session credential in Redis so it survives a
// restart. Key format: <prefix>:token and <prefix>:user (JSON).
type CredentialStore struct {
	client *redis.Client
	prefix string
}

// NewCredentialStore creates a CredentialStore. An empty prefix uses the default.
func NewCredentialStore(client *redis.Client, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &CredentialStore{client: client, prefix: prefix}
}

// Load returns the stored credential, or nil when no token is stored. A user
// record that fails to decode is dropped; the token alone is still usable.
func (s *CredentialStore) Load(ctx context.Context) (*ports.StoredCredential, error) {
	vals, err := s.client.MGet(ctx, s.tokenKey(), s.userKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	token, _ := vals[0].(string)
	if token == "" {
		return nil, nil
	}
	cred := &ports.StoredCredential{Token: token}

	if raw, ok := vals[1].(string); ok && raw != "" {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			cred.User = &u
		}
	}
	return cred, nil
}

// Save writes the token and user record atomically. Neither key expires; the
// backend decides when a credential is no longer valid.
func (s *CredentialStore) Save(ctx context.Context, cred ports.StoredCredential) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(), cred.Token, 0)
	if cred.User != nil {
		raw, err := json.Marshal(cred.User)
		if err != nil {
			return fmt.Errorf("save credential: encode user: %w", err)
		}
		pipe.Set(ctx, s.userKey(), raw, 0)
	} else {
		pipe.Del(ctx, s.userKey())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Clear removes both keys. Clearing an empty store is not an error.
func (s *CredentialStore) Clear(ctx context.Context) error {
	err := s.client.Del(ctx, s.tokenKey(), s.userKey()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) tokenKey() string { return s.prefix + ":token" }
func (s *CredentialStore) userKey() string  { return s.prefix + ":user" }
