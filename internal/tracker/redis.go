package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisSet guarda cada kind como un SET en {prefix}:{runID}:{kind}.
type redisSet struct {
	client *redis.Client
	prefix string
	runID  string
}

// NewRedis crea un Set sobre Redis y verifica la conexión.
func NewRedis(cfg Config) (Set, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("tracker: redis ping failed: %w", err)
	}
	return NewRedisFromClient(rdb, cfg.Prefix, cfg.RunID), nil
}

// NewRedisFromClient envuelve un cliente existente (tests con miniredis).
func NewRedisFromClient(rdb *redis.Client, prefix, runID string) Set {
	if prefix == "" {
		prefix = "iamprobe"
	}
	if runID == "" {
		runID = "default"
	}
	return &redisSet{client: rdb, prefix: prefix, runID: runID}
}

func (r *redisSet) key(kind Kind) string {
	return r.prefix + ":" + r.runID + ":" + string(kind)
}

func toArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func (r *redisSet) Add(ctx context.Context, kind Kind, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.client.SAdd(ctx, r.key(kind), toArgs(ids)...).Err()
}

func (r *redisSet) Remove(ctx context.Context, kind Kind, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.client.SRem(ctx, r.key(kind), toArgs(ids)...).Err()
}

func (r *redisSet) Members(ctx context.Context, kind Kind) ([]string, error) {
	return r.client.SMembers(ctx, r.key(kind)).Result()
}

func (r *redisSet) Len(ctx context.Context, kind Kind) (int, error) {
	n, err := r.client.SCard(ctx, r.key(kind)).Result()
	return int(n), err
}

func (r *redisSet) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key(User), r.key(Role)).Err()
}

func (r *redisSet) Close() error {
	return r.client.Close()
}
