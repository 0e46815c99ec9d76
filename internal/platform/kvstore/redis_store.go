package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/foldcore/orchestrator/internal/platform/logger"
)

// Config carries the connection parameters for the shared store.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type redisStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedisStore dials the configured Redis instance and pings it once
// before returning, the same fail-fast pattern the SSE bus constructor
// uses.
func NewRedisStore(cfg Config, log *logger.Logger) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("kvstore: missing addr")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("kvstore: redis ping: %w", err)
	}

	return &redisStore{
		log: log.With("service", "RedisStore"),
		rdb: rdb,
	}, nil
}

func (s *redisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore: hgetall %s: %w", key, err)
	}
	return m, nil
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := s.rdb.HSet(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("kvstore: hset %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kvstore: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: expire %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("kvstore: del %v: %w", keys, err)
	}
	return nil
}

func (s *redisStore) RPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := s.rdb.RPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("kvstore: rpush %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore: lrange %s: %w", key, err)
	}
	return vals, nil
}

func (s *redisStore) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kvstore: llen %s: %w", key, err)
	}
	return n, nil
}

func (s *redisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := s.rdb.LTrim(ctx, key, start, stop).Err(); err != nil {
		return fmt.Errorf("kvstore: ltrim %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	keys, next, err := s.rdb.Scan(ctx, cursor, match, count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("kvstore: scan %s: %w", match, err)
	}
	return keys, next, nil
}

// maxCASAttempts bounds the retry loop around Watch: go-redis already
// retries the transaction internally, so this only guards against a
// pathologically hot key never settling.
const maxCASAttempts = 5

// CASUpdate implements the WATCH/MULTI/EXEC optimistic-concurrency
// contract: it watches key, reads the current version, refuses the
// write if it does not match expectedVersion, and otherwise commits
// patch plus a bumped version and updated_at atomically. A concurrent
// writer racing the transaction aborts it with redis.TxFailedErr, which
// is retried up to maxCASAttempts times.
func (s *redisStore) CASUpdate(ctx context.Context, key string, expectedVersion int64, patch map[string]string) (bool, int64, error) {
	var (
		ok      bool
		current int64
	)

	txFn := func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, key, "version").Result()
		if err == goredis.Nil {
			return fmt.Errorf("kvstore: cas_update %s: %w", key, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("kvstore: cas_update %s: %w", key, err)
		}
		ver, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			ver = 0
		}
		current = ver
		if ver != expectedVersion {
			ok = false
			return nil
		}

		nextVer := ver + 1
		args := make([]interface{}, 0, (len(patch)+2)*2)
		for k, v := range patch {
			args = append(args, k, v)
		}
		args = append(args, "version", strconv.FormatInt(nextVer, 10))
		args = append(args, "updated_at", strconv.FormatInt(time.Now().UnixMilli(), 10))

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, args...)
			return nil
		})
		if err != nil {
			return err
		}
		ok = true
		current = nextVer
		return nil
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txFn, key)
		if err == nil {
			return ok, current, nil
		}
		if err == goredis.TxFailedErr {
			continue
		}
		return false, 0, err
	}
	return false, 0, fmt.Errorf("kvstore: cas_update %s: exceeded %d retries", key, maxCASAttempts)
}
