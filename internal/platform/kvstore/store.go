// Package kvstore abstracts the shared key/value store the whole core
// runs on: hashes, lists, SCAN, and atomic compare-and-swap via
// WATCH/MULTI/EXEC. Every component that needs shared, cross-instance
// state goes through the Store interface rather than talking to a
// driver directly, so job state, job meta, and the event queue can all
// be tested against the in-memory fake in fake.go.
package kvstore

import (
	"context"
	"time"
)

// Store is the shared key/value contract the job lifecycle, event
// queue, and reaper are all built on.
type Store interface {
	// HGetAll returns every field of a hash, or an empty map if the hash
	// does not exist.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HSet writes the given fields into a hash, creating it if absent.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// Exists reports whether key currently exists (any type).
	Exists(ctx context.Context, key string) (bool, error)
	// Expire refreshes key's TTL.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) error

	// RPush appends values to the tail of a list, creating it if absent.
	RPush(ctx context.Context, key string, values ...string) error
	// LRange returns an inclusive range of a list using the usual
	// negative-index convention (-1 is the last element).
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LLen returns the current length of a list.
	LLen(ctx context.Context, key string) (int64, error)
	// LTrim trims a list to the inclusive [start,stop] range.
	LTrim(ctx context.Context, key string, start, stop int64) error

	// Scan performs one page of a SCAN cursor walk matching pattern,
	// returning the keys found and the next cursor (0 when exhausted).
	Scan(ctx context.Context, cursor uint64, match string, count int64) (keys []string, next uint64, err error)

	// CASUpdate performs the WATCH/MULTI/EXEC sequence from spec.md
	// §4.2: it reads the hash's "version" field, aborts if the hash is
	// missing, retries internally on a concurrent modification, and
	// otherwise HSETs patch plus a bumped version and updated_at in one
	// transaction. It reports whether the caller's expectedVersion was
	// honored and the version now stored.
	CASUpdate(ctx context.Context, key string, expectedVersion int64, patch map[string]string) (ok bool, currentVersion int64, err error)
}
