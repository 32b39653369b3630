// Package redis provides a Redis implementation of storage.Backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/storage"
)

const (
	opGet   = "redis.Get"
	opSet   = "redis.Set"
	opWatch = "redis.Watch"

	component = "storage/redis"
)

// Config holds configuration options for the Redis Store.
type Config struct {
	// URL in the form redis://[:password@]host:port/db
	URL string

	// KeyPrefix is prepended to every key. Defaults to "fieldsync:".
	KeyPrefix string

	// DialTimeout bounds the initial ping. Defaults to 5s.
	DialTimeout time.Duration

	Logger *logging.Logger
}

func (c *Config) setDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "fieldsync:"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.Component("redis-store"))
	}
}

// Store keeps values as plain Redis strings and publishes each changed key,
// tagged with the store's origin, on <prefix>changed.
type Store struct {
	client  *redis.Client
	prefix  string
	channel string
	origin  storage.Origin
	logger  *logging.Logger
}

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Watcher = (*Store)(nil)
)

// New parses the URL, connects and pings the server.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	config.Logger.Debug("redis store initialized",
		slog.String("addr", opts.Addr),
		slog.Int("db", opts.DB),
		slog.String("prefix", config.KeyPrefix),
	)
	return NewFromClient(client, config.KeyPrefix, config.Logger), nil
}

// NewFromClient wraps an existing client. Closing the Store closes client.
func NewFromClient(client *redis.Client, prefix string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.WithComponent(logging.Component("redis-store"))
	}
	return &Store{
		client:  client,
		prefix:  prefix,
		channel: prefix + "changed",
		origin:  storage.NewOrigin(),
		logger:  logger,
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", storage.ErrNotFound
	case errors.Is(err, redis.ErrClosed):
		return "", storage.ErrClosed
	case err != nil:
		return "", syncErrors.WrapOpComponent(err, opGet, component)
	}
	return v, nil
}

// Set writes the value and publishes the key in one MULTI/EXEC block.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+key, value, 0)
		pipe.Publish(ctx, s.channel, s.origin.Tag(key))
		return nil
	})
	if errors.Is(err, redis.ErrClosed) {
		return storage.ErrClosed
	}
	if err != nil {
		return syncErrors.WrapOpComponent(err, opSet, component)
	}
	return nil
}

// Watch subscribes to change notifications until ctx is done. Writes made
// through this Store are not reported.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	deliver := s.origin.Filter(fn)
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return syncErrors.WrapOpComponent(err, opWatch, component)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deliver(msg.Payload)
		}
	}
}

// Channel returns the pub/sub channel that carries changed keys.
func (s *Store) Channel() string { return s.channel }

func (s *Store) Close() error {
	return s.client.Close()
}
