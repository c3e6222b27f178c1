// Package redis provides an IngestionLock shared by every worker through Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Lock implements the interface.
var _ driven.IngestionLock = (*Lock)(nil)

// KeyPrefix namespaces marker keys.
const KeyPrefix = "studyrag:ingest:"

// Lock stores one key per in-flight document, set with NX and a TTL. The
// value is the holder, so release is a compare-and-delete.
type Lock struct {
	client redis.UniversalClient
}

// New wraps an existing client.
func New(client redis.UniversalClient) *Lock {
	return &Lock{client: client}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*Lock, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client), nil
}

// releaseScript deletes the marker only while it still names the holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire sets the marker to holder unless it exists.
func (l *Lock) Acquire(ctx context.Context, documentID, holder string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, KeyPrefix+documentID, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire ingestion marker: %w", err)
	}
	return ok, nil
}

// Release deletes the marker if holder owns it.
func (l *Lock) Release(ctx context.Context, documentID, holder string) error {
	if err := releaseScript.Run(ctx, l.client, []string{KeyPrefix + documentID}, holder).Err(); err != nil {
		return fmt.Errorf("release ingestion marker: %w", err)
	}
	return nil
}

// Close closes the client.
func (l *Lock) Close() error {
	return l.client.Close()
}
