// Package jobstore is the Redis-backed key/value store behind the upload
// session jobs (pkg/job): every job record is a JSON-encoded string value
// under a composite key that embeds session, job id, project, operator,
// and source path.
package jobstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store is a thin wrapper over a redis client exposing the primitives
// pkg/job needs: point Get/Set and prefix scan for status listing.
type Store struct {
	client *redis.Client
}

// Open connects to addr (host:port) using db and optional user/password,
// verifying the connection with a PING before returning.
func Open(ctx context.Context, addr, user, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: user,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("jobstore: connect to %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// RedisClient exposes the underlying redis client so collaborators sharing
// the same connection (pkg/partledger) can be built from it at service
// start, instead of opening a second pool.
func (s *Store) RedisClient() *redis.Client {
	return s.client
}

// Set writes value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("jobstore: set %s: %w", key, err)
	}
	return nil
}

// Get reads the value under key. The second return is false when key does
// not exist (not an error).
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("jobstore: get %s: %w", key, err)
	}
	return val, true, nil
}

// ScanPrefix returns every value whose key starts with prefix, used by
// GetStatus to list a session's jobs via a wildcard key pattern.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		values []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 256).Result()
		if err != nil {
			return nil, fmt.Errorf("jobstore: scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			vals, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("jobstore: mget under %s: %w", prefix, err)
			}
			for _, v := range vals {
				if s, ok := v.(string); ok {
					values = append(values, s)
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return values, nil
}

// Pipeliner batches a run of Set calls into a single round trip.
type Pipeliner interface {
	Set(ctx context.Context, key, value string)
	Execute(ctx context.Context) error
}

type pipeliner struct {
	pipe redis.Pipeliner
}

// Pipeline starts a batched write pipeline, used by PreUpload to create many
// job records for a folder upload in one round trip.
func (s *Store) Pipeline() Pipeliner {
	return &pipeliner{pipe: s.client.Pipeline()}
}

func (p *pipeliner) Set(ctx context.Context, key, value string) {
	p.pipe.Set(ctx, key, value, 0)
}

func (p *pipeliner) Execute(ctx context.Context) error {
	if _, err := p.pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobstore: pipeline exec: %w", err)
	}
	return nil
}
