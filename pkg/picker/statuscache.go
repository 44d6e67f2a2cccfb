package picker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/common"
	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// StatusStore holds knowledge-base status maps keyed by folder path
type StatusStore interface {
	Get(ctx context.Context, folderPath string) (types.StatusMap, bool, error)
	Set(ctx context.Context, folderPath string, statuses types.StatusMap) error
	Delete(ctx context.Context, folderPath string) error
	Clear(ctx context.Context) error
}

// StatusLoader fetches a status map for a folder path on a cache miss
type StatusLoader func(ctx context.Context, folderPath string) (types.StatusMap, error)

// StatusCache sits in front of the kb-status route. Entries live until they are
// invalidated or the store expires them; failed loads are not cached.
type StatusCache struct {
	store StatusStore
	group singleflight.Group
}

func NewStatusCache(store StatusStore) *StatusCache {
	return &StatusCache{store: store}
}

// Get returns the cached map for folderPath, loading it once if absent.
// Concurrent misses for the same path share one load.
func (c *StatusCache) Get(ctx context.Context, folderPath string, load StatusLoader) (types.StatusMap, error) {
	statuses, ok, err := c.store.Get(ctx, folderPath)
	if err != nil {
		log.Warn().Err(err).Str("folder_path", folderPath).Msg("status cache read failed")
	} else if ok {
		return statuses, nil
	}

	v, err, _ := c.group.Do(folderPath, func() (any, error) {
		statuses, err := load(ctx, folderPath)
		if err != nil {
			return nil, err
		}
		if statuses == nil {
			statuses = types.StatusMap{}
		}
		if err := c.store.Set(ctx, folderPath, statuses); err != nil {
			log.Warn().Err(err).Str("folder_path", folderPath).Msg("status cache write failed")
		}
		return statuses, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(types.StatusMap), nil
}

// Invalidate drops the entry for one folder path
func (c *StatusCache) Invalidate(ctx context.Context, folderPath string) error {
	return c.store.Delete(ctx, folderPath)
}

// Clear drops every entry
func (c *StatusCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// NewStatusStore builds the store selected by config
func NewStatusStore(config types.StatusCacheConfig, redisConfig types.RedisConfig) (StatusStore, error) {
	switch config.Backend {
	case "", types.StatusCacheMemory:
		return NewMemoryStatusStore(config.Size, config.TTL), nil
	case types.StatusCacheRedis:
		rdb, err := common.NewRedisClient(redisConfig, common.WithClientName("picker-cli"))
		if err != nil {
			return nil, fmt.Errorf("connect status cache: %w", err)
		}
		return NewRedisStatusStore(rdb, config.TTL), nil
	}
	return nil, fmt.Errorf("unknown status cache backend %q", config.Backend)
}

// MemoryStatusStore is an in-process LRU. A zero ttl disables expiry.
type MemoryStatusStore struct {
	lru *expirable.LRU[string, types.StatusMap]
}

func NewMemoryStatusStore(size int, ttl time.Duration) *MemoryStatusStore {
	return &MemoryStatusStore{lru: expirable.NewLRU[string, types.StatusMap](size, nil, ttl)}
}

func (s *MemoryStatusStore) Get(ctx context.Context, folderPath string) (types.StatusMap, bool, error) {
	statuses, ok := s.lru.Get(folderPath)
	return statuses, ok, nil
}

func (s *MemoryStatusStore) Set(ctx context.Context, folderPath string, statuses types.StatusMap) error {
	s.lru.Add(folderPath, statuses)
	return nil
}

func (s *MemoryStatusStore) Delete(ctx context.Context, folderPath string) error {
	s.lru.Remove(folderPath)
	return nil
}

func (s *MemoryStatusStore) Clear(ctx context.Context) error {
	s.lru.Purge()
	return nil
}

// RedisStatusStore keeps status maps as JSON strings so separate CLI runs share them
type RedisStatusStore struct {
	rdb *common.RedisClient
	ttl time.Duration
}

func NewRedisStatusStore(rdb *common.RedisClient, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStatusStore) Get(ctx context.Context, folderPath string) (types.StatusMap, bool, error) {
	data, err := s.rdb.Get(ctx, common.Keys.KBStatus(folderPath)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get status map: %w", err)
	}

	var statuses types.StatusMap
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, false, fmt.Errorf("decode status map: %w", err)
	}
	return statuses, true, nil
}

func (s *RedisStatusStore) Set(ctx context.Context, folderPath string, statuses types.StatusMap) error {
	data, err := json.Marshal(statuses)
	if err != nil {
		return fmt.Errorf("encode status map: %w", err)
	}
	return s.rdb.Set(ctx, common.Keys.KBStatus(folderPath), data, s.ttl).Err()
}

func (s *RedisStatusStore) Delete(ctx context.Context, folderPath string) error {
	return s.rdb.Del(ctx, common.Keys.KBStatus(folderPath)).Err()
}

func (s *RedisStatusStore) Clear(ctx context.Context) error {
	keys, err := s.rdb.Scan(ctx, common.Keys.KBStatusPrefix()+":*")
	if err != nil {
		return fmt.Errorf("scan status maps: %w", err)
	}
	for _, key := range keys {
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
