package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/storage"
)

// Storage is a Redis-backed store for login access logs. Each (email, ip)
// pair is a LIST of unix-nanosecond timestamps, newest at the head.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.AccessLogs = (*Storage)(nil)

func (s *Storage) RecentFailures(ctx context.Context, email, ip string) ([]time.Time, error) {
	values, err := s.client.LRange(ctx, lockoutKey(email, ip), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return parseAttempts(values), nil
}

func (s *Storage) RecordFailure(ctx context.Context, email, ip string, at time.Time, keep int) error {
	key := lockoutKey(email, ip)

	// Use pipeline so the push and trim land together
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, strconv.FormatInt(at.UnixNano(), 10))
	if keep > 0 {
		pipe.LTrim(ctx, key, 0, int64(keep-1))
	}
	if s.cfg.LockoutTTL > 0 {
		pipe.Expire(ctx, key, s.cfg.LockoutTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) EraseEmail(ctx context.Context, email, placeholder string) (int64, error) {
	target := lockoutKey(placeholder, model.ErasedIPAddress)

	var keys []string
	iter := s.client.Scan(ctx, 0, lockoutPattern(email), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	var affected int64
	for _, key := range keys {
		if key == target {
			continue
		}
		values, err := s.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return affected, err
		}

		pipe := s.client.TxPipeline()
		if len(values) > 0 {
			args := make([]any, len(values))
			for i, v := range values {
				args[i] = v
			}
			pipe.RPush(ctx, target, args...)
		}
		pipe.Del(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return affected, err
		}
		affected++
	}
	return affected, nil
}

func parseAttempts(values []string) []time.Time {
	attempts := make([]time.Time, 0, len(values))
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		attempts = append(attempts, time.Unix(0, n).UTC())
	}
	return attempts
}
