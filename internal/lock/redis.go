package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockTTL   = 10 * time.Minute
	defaultPollEvery = 500 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by several processes through one Redis instance.
// The key expires after ttl so a crashed holder cannot block a workspace forever.
type Redis struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	pollEvery time.Duration
	log       *slog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{
		client:    client,
		prefix:    "newsqueue:lock:workspace:",
		ttl:       ttl,
		pollEvery: defaultPollEvery,
		log:       log,
	}
}

// Connect opens a client and pings it once.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) key(workspaceID int64) string {
	return fmt.Sprintf("%s%d", r.prefix, workspaceID)
}

func (r *Redis) Lock(ctx context.Context, workspaceID int64) (func(), error) {
	key := r.key(workspaceID)
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { r.release(key, token) }) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: workspace %d: %w", ErrNotAcquired, workspaceID, ctx.Err())
		case <-time.After(r.pollEvery):
		}
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		r.log.Warn("failed to release workspace lock", "key", key, "error", err)
	}
}
