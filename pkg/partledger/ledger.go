// Package partledger tracks the chunks uploaded for a multipart upload,
// keyed by the object-store upload ID, so Combine can replay them in
// ascending part-number order.
package partledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Part is a single uploaded chunk's bookkeeping record.
type Part struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size"`
}

// Ledger records parts under the "part:{uploadID}:{partNumber}" namespace,
// a distinct key space from jobstore's but sharing the same connection.
type Ledger struct {
	client *redis.Client
}

// New wraps an existing redis client under the ledger's key namespace.
func New(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func partKey(uploadID string, partNumber int) string {
	return fmt.Sprintf("part:%s:%d", uploadID, partNumber)
}

// Put records a single uploaded part.
func (l *Ledger) Put(ctx context.Context, uploadID string, part Part) error {
	data, err := json.Marshal(part)
	if err != nil {
		return fmt.Errorf("partledger: marshal part %d: %w", part.PartNumber, err)
	}
	key := partKey(uploadID, part.PartNumber)
	if err := l.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("partledger: put %s: %w", key, err)
	}
	return nil
}

// List returns every part recorded for uploadID, ascending by PartNumber.
func (l *Ledger) List(ctx context.Context, uploadID string) ([]Part, error) {
	prefix := fmt.Sprintf("part:%s:", uploadID)
	var (
		parts  []Part
		cursor uint64
	)
	for {
		keys, next, err := l.client.Scan(ctx, cursor, prefix+"*", 256).Result()
		if err != nil {
			return nil, fmt.Errorf("partledger: scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			vals, err := l.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("partledger: mget %s: %w", prefix, err)
			}
			for _, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				var p Part
				if err := json.Unmarshal([]byte(s), &p); err != nil {
					return nil, fmt.Errorf("partledger: decode part: %w", err)
				}
				parts = append(parts, p)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}

// Clear removes every part record for uploadID, used once a multipart
// upload has been combined.
func (l *Ledger) Clear(ctx context.Context, uploadID string) error {
	prefix := fmt.Sprintf("part:%s:", uploadID)
	var cursor uint64
	for {
		keys, next, err := l.client.Scan(ctx, cursor, prefix+"*", 256).Result()
		if err != nil {
			return fmt.Errorf("partledger: scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := l.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("partledger: del under %s: %w", prefix, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// PartNumberFromKey extracts the numeric part number from a ledger key,
// used by tests and diagnostics.
func PartNumberFromKey(key, uploadID string) (int, error) {
	prefix := fmt.Sprintf("part:%s:", uploadID)
	if len(key) <= len(prefix) {
		return 0, fmt.Errorf("partledger: malformed key %q", key)
	}
	return strconv.Atoi(key[len(prefix):])
}
