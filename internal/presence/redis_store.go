package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhayalcantara/proyectos-sub001/internal/config"
)

// redisStore implements Store using Redis.
//
// Key patterns:
//   {prefix}:online:{user_id}     STRING "1", TTL-bound  - live flag
//   {prefix}:last_seen:{user_id}  STRING unix millis     - last seen
type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed presence cache.
func NewRedisStore(cfg config.RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.PresencePrefix
	if prefix == "" {
		prefix = "presence"
	}
	ttl := cfg.PresenceTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	return &redisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *redisStore) onlineKey(userID string) string {
	return fmt.Sprintf("%s:online:%s", s.prefix, userID)
}

func (s *redisStore) lastSeenKey(userID string) string {
	return fmt.Sprintf("%s:last_seen:%s", s.prefix, userID)
}

func (s *redisStore) MarkOnline(ctx context.Context, userID string, at time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.onlineKey(userID), "1", s.ttl)
	pipe.Set(ctx, s.lastSeenKey(userID), strconv.FormatInt(at.UnixMilli(), 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) MarkOffline(ctx context.Context, userID string, at time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.onlineKey(userID))
	pipe.Set(ctx, s.lastSeenKey(userID), strconv.FormatInt(at.UnixMilli(), 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) Get(ctx context.Context, userID string) (*Status, error) {
	pipe := s.client.Pipeline()
	onlineCmd := pipe.Exists(ctx, s.onlineKey(userID))
	lastSeenCmd := pipe.Get(ctx, s.lastSeenKey(userID))
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return nil, err
	}

	status := &Status{UserID: userID, IsOnline: onlineCmd.Val() > 0}
	if ms, err := lastSeenCmd.Int64(); err == nil {
		status.LastSeen = time.UnixMilli(ms)
	}
	return status, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
