package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"DealsScanner/internal/clock"
	"DealsScanner/internal/ports"
)

// RedisConfig holds connection settings for the Redis ledger.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps one key per identifier, expiring when the retention window ends.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	clk       clock.Clock
}

var _ ports.LedgerStore = (*RedisStore)(nil)

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, cfg RedisConfig, retention time.Duration, clk clock.Clock) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "dealsscanner:announced"
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &RedisStore{client: client, prefix: prefix, retention: retention, clk: clk}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// Load scans the prefix and reads every live key.
func (s *RedisStore) Load(ctx context.Context) (map[string]time.Time, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan redis ledger: %w", err)
	}

	entries := make(map[string]time.Time, len(keys))
	if len(keys) == 0 {
		return entries, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read redis ledger: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		at, err := parseTimestamp(raw)
		if err != nil {
			continue
		}
		entries[strings.TrimPrefix(keys[i], s.prefix+":")] = at
	}
	return entries, nil
}

// Save writes every entry with the TTL left in its retention window; expired entries are deleted.
func (s *RedisStore) Save(ctx context.Context, entries map[string]time.Time) error {
	now := s.clk.Now()
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range sortedIDs(entries) {
			at := entries[id]
			ttl := s.retention - now.Sub(at)
			if ttl <= 0 {
				pipe.Del(ctx, s.key(id))
				continue
			}
			pipe.Set(ctx, s.key(id), formatTimestamp(at), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write redis ledger: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
