package authstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on room-keyed Redis sets, for deployments that
// run more than one gateway process and need shared admission state. Empty
// sets disappear on their own in Redis, which matches the contract's
// garbage-collection of empty room entries.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed authorization store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(roomID string) string {
	return fmt.Sprintf("room:allowed:%s", roomID)
}

func (s *RedisStore) Authorize(ctx context.Context, roomID, identity string) error {
	return s.client.SAdd(ctx, s.key(roomID), identity).Err()
}

func (s *RedisStore) Revoke(ctx context.Context, roomID, identity string) error {
	return s.client.SRem(ctx, s.key(roomID), identity).Err()
}

func (s *RedisStore) IsAuthorized(ctx context.Context, roomID, identity string) (bool, error) {
	return s.client.SIsMember(ctx, s.key(roomID), identity).Result()
}

func (s *RedisStore) ListAuthorized(ctx context.Context, roomID string) ([]string, error) {
	return s.client.SMembers(ctx, s.key(roomID)).Result()
}

func (s *RedisStore) Clear(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, s.key(roomID)).Err()
}

func (s *RedisStore) Rooms(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, "room:allowed:*").Result()
	if err != nil {
		return nil, err
	}
	rooms := make([]string, 0, len(keys))
	for _, key := range keys {
		rooms = append(rooms, key[len("room:allowed:"):])
	}
	return rooms, nil
}
