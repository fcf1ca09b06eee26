package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

const sessionKeyPrefix = "session:"

// Compile-time check to ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// RedisStore backs the live session set with Redis, for deployments that
// want sessions to survive a server restart. Semantics match MemoryStore;
// entries additionally expire after the configured TTL.
type RedisStore struct {
	creds  []models.Credential
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, creds []models.Credential, ttl time.Duration) *RedisStore {
	return &RedisStore{
		creds:  creds,
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisStore) Login(ctx context.Context, email, password string) (models.Identity, string, error) {
	identity, err := authenticate(s.creds, email, password)
	if err != nil {
		return models.Identity{}, "", err
	}

	token := newToken(identity.ID, time.Now())
	if err := s.put(ctx, token, identity); err != nil {
		return models.Identity{}, "", err
	}
	return identity, token, nil
}

func (s *RedisStore) Verify(ctx context.Context, token string) (models.Identity, bool, error) {
	if token == "" {
		return models.Identity{}, false, nil
	}

	payload, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return models.Identity{}, false, nil
	}
	if err != nil {
		return models.Identity{}, false, err
	}

	var identity models.Identity
	if err := json.Unmarshal([]byte(payload), &identity); err != nil {
		return models.Identity{}, false, err
	}
	return identity, true, nil
}

func (s *RedisStore) Logout(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKeyPrefix+token).Err()
}

func (s *RedisStore) Refresh(ctx context.Context, token string) (models.Identity, string, bool, error) {
	identity, ok, err := s.Verify(ctx, token)
	if err != nil || !ok {
		return models.Identity{}, "", false, err
	}

	fresh := newToken(identity.ID, time.Now())
	payload, err := json.Marshal(identity)
	if err != nil {
		return models.Identity{}, "", false, err
	}

	// Single transactional pipeline: the old token never outlives the
	// insertion of the new one.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeyPrefix+token)
		pipe.Set(ctx, sessionKeyPrefix+fresh, payload, s.ttl)
		return nil
	})
	if err != nil {
		return models.Identity{}, "", false, err
	}

	return identity, fresh, true, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) put(ctx context.Context, token string, identity models.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKeyPrefix+token, payload, s.ttl).Err()
}
