package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

const redisSnapshotKey = "maker:snapshot"

// RedisOption defines connection options for the Redis backend.
type RedisOption struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores the snapshot as a single JSON value. No TTL: the snapshot
// stays until overwritten.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects and verifies the server is reachable.
func NewRedis(ctx context.Context, opt RedisOption) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis").With("addr", opt.Addr)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Save(ctx context.Context, snap schema.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if err := r.rdb.Set(ctx, redisSnapshotKey, data, 0).Err(); err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) (schema.Snapshot, error) {
	data, err := r.rdb.Get(ctx, redisSnapshotKey).Bytes()
	if err == redis.Nil {
		return schema.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return schema.Snapshot{}, errors.Wrap(err, "load snapshot")
	}
	var snap schema.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return schema.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return snap, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
