package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedMarker = "true"

// RevocationStore is the token deny-list keyed by jti
type RevocationStore struct {
	client *Client
	ttl    time.Duration
}

// NewRevocationStore creates a deny-list whose entries live for ttl,
// the refresh token lifetime
func NewRevocationStore(client *Client, ttl time.Duration) *RevocationStore {
	return &RevocationStore{client: client, ttl: ttl}
}

// Revoke marks every jti as revoked in a single MULTI/EXEC
func (s *RevocationStore) Revoke(ctx context.Context, jtis ...string) error {
	if len(jtis) == 0 {
		return nil
	}
	_, err := s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, jti := range jtis {
			if jti == "" {
				continue
			}
			pipe.Set(ctx, jti, revokedMarker, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}

// Claim revokes jti only if it is not revoked yet. It reports false when
// another caller already revoked it.
func (s *RevocationStore) Claim(ctx context.Context, jti string) (bool, error) {
	ok, err := s.client.rdb.SetNX(ctx, jti, revokedMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}
	return ok, nil
}

// IsRevoked reports whether jti is on the deny-list
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	val, err := s.client.rdb.Get(ctx, jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return val == revokedMarker, nil
}
