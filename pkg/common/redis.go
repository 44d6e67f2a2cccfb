package common

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"

	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps a universal client so single and cluster modes share one API
type RedisClient struct {
	redis.UniversalClient
}

type RedisOption func(*redis.UniversalOptions)

// WithClientName sets the name reported by CLIENT LIST
func WithClientName(name string) RedisOption {
	return func(opts *redis.UniversalOptions) {
		opts.ClientName = name
	}
}

// NewRedisClient connects to redis and verifies the connection with a ping
func NewRedisClient(config types.RedisConfig, options ...RedisOption) (*RedisClient, error) {
	if len(config.Addrs) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}

	opts := &redis.UniversalOptions{
		Addrs:        config.Addrs,
		Username:     config.Username,
		Password:     config.Password,
		ClientName:   config.ClientName,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		MaxRetries:   config.MaxRetries,
	}
	if config.EnableTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify}
	}
	for _, opt := range options {
		opt(opts)
	}

	var client redis.UniversalClient
	if config.Mode == types.RedisModeCluster {
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		client = redis.NewClient(opts.Simple())
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisClient{UniversalClient: client}, nil
}

// Scan walks every key matching pattern across all shards
func (r *RedisClient) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		mu   sync.Mutex
		keys []string
	)
	collect := func(ctx context.Context, client *redis.Client) error {
		iter := client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			mu.Lock()
			keys = append(keys, iter.Val())
			mu.Unlock()
		}
		return iter.Err()
	}

	switch c := r.UniversalClient.(type) {
	case *redis.ClusterClient:
		err := c.ForEachMaster(ctx, collect)
		return keys, err
	case *redis.Client:
		err := collect(ctx, c)
		return keys, err
	}
	return nil, errors.New("redis: unsupported client type")
}
