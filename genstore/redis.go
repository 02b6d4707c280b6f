package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore shares namespace generations across replicas and survives restarts.
// An optional TTL on generation keys bounds growth; an expired generation reads
// as 0 and stale remote entries self-heal.
type RedisGenStore struct {
	rdb       redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	owns      bool
}

var _ GenStore = (*RedisGenStore)(nil)

type RedisOptions struct {
	// KeyPrefix is prepended to every generation key; "" => "gen:".
	KeyPrefix string
	// TTL for generation keys; 0 disables expiry.
	TTL time.Duration
	// CloseClient closes rdb on Close. Leave false when the client is shared.
	CloseClient bool
}

func NewRedisGenStore(client redis.UniversalClient, opts RedisOptions) *RedisGenStore {
	p := opts.KeyPrefix
	if p == "" {
		p = "gen:"
	}
	return &RedisGenStore{rdb: client, keyPrefix: p, ttl: opts.TTL, owns: opts.CloseClient}
}

func (s *RedisGenStore) key(ns string) string { return s.keyPrefix + ns }

// Snapshot returns the current generation. Missing keys are generation 0.
func (s *RedisGenStore) Snapshot(ctx context.Context, ns string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(ns)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse: %w", err)
	}
	return u, nil
}

// SnapshotMany reads all generations with one MGET. Missing keys map to 0.
func (s *RedisGenStore) SnapshotMany(ctx context.Context, nss []string) (map[string]uint64, error) {
	if len(nss) == 0 {
		return map[string]uint64{}, nil
	}
	keys := make([]string, len(nss))
	for i, ns := range nss {
		keys[i] = s.key(ns)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint64, len(nss))
	for i, v := range vals {
		if v == nil {
			out[nss[i]] = 0
			continue
		}
		var str string
		switch vv := v.(type) {
		case string:
			str = vv
		case []byte:
			str = string(vv)
		default:
			str = fmt.Sprint(vv)
		}
		u, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis gen parse at %s: %w", nss[i], err)
		}
		out[nss[i]] = u
	}
	return out, nil
}

// Bump increments the generation. With a TTL, INCR and EXPIRE share one pipeline.
func (s *RedisGenStore) Bump(ctx context.Context, ns string) (uint64, error) {
	k := s.key(ns)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is not applicable; Redis expires keys itself when TTL is set.
func (s *RedisGenStore) Cleanup(time.Duration) {}

func (s *RedisGenStore) Close(context.Context) error {
	if !s.owns {
		return nil
	}
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
