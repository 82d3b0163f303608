package keyvalue

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
)

const pendingRoleKey = "tahfeez:pending_role"

// redisPendingRoleStore stages the sign-up role in Redis so it survives the
// email-confirmation redirect. The key expires with the confirmation window.
type redisPendingRoleStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ auth.PendingRoleStore = (*redisPendingRoleStore)(nil) // interface compliance check

func NewRedisPendingRoleStore(conf *core.Config) *redisPendingRoleStore {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return &redisPendingRoleStore{client: client, ttl: conf.EmailConfirmTimeoutDelta}
}

func (s *redisPendingRoleStore) Set(ctx context.Context, role string) error {
	return errors.Wrap(s.client.Set(ctx, pendingRoleKey, role, s.ttl).Err(), "staging pending role")
}

func (s *redisPendingRoleStore) Get(ctx context.Context) (string, error) {
	role, err := s.client.Get(ctx, pendingRoleKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "reading pending role")
	}
	return role, nil
}

func (s *redisPendingRoleStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.client.Del(ctx, pendingRoleKey).Err(), "clearing pending role")
}
