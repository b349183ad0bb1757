package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"invoicematch/internal/util"
)

var ErrSnapshotNotFound = errors.New("index snapshot not found")

// Store persists snapshots in their flat form.
type Store interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

type FileStore struct {
	Path string
}

func (f FileStore) Name() string { return "file" }

func (f FileStore) Load(context.Context) (*Snapshot, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.Path, err)
	}
	return Decode(b)
}

func (f FileStore) Save(_ context.Context, s *Snapshot) error {
	return util.WriteJSONAtomic(f.Path, s)
}

// RedisKV is the subset of the go-redis client the store uses.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type RedisStore struct {
	client RedisKV
	key    string
	ttl    time.Duration
}

func NewRedisStore(client RedisKV, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return Decode(b)
}

func (r *RedisStore) Save(ctx context.Context, s *Snapshot) error {
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
