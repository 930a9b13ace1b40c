// Package cache provides a Redis read-through cache in front of a document store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vitrine/api/internal/docstore"
)

// DefaultTTL bounds how long a cached read may lag behind the remote.
const DefaultTTL = 30 * time.Second

// Options configure a Store.
type Options struct {
	// Prefix namespaces keys, typically per repository and branch.
	Prefix string
	TTL    time.Duration
	Logger *slog.Logger
}

// Store caches Get and List results of an inner docstore.Store. Writes always
// go to the inner store, which re-reads the current SHA itself. Redis failures
// are logged and the inner store is used directly.
type Store struct {
	inner  docstore.Store
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient connects to redisURL and checks the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// New wraps inner with a cache stored in client.
func New(inner docstore.Store, client *redis.Client, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Prefix == "" {
		opts.Prefix = "vitrine:"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{inner: inner, client: client, prefix: opts.Prefix, ttl: opts.TTL, logger: opts.Logger}
}

func (s *Store) docKey(path string) string {
	return s.prefix + "doc:" + path
}

func (s *Store) listKey(dir string) string {
	return s.prefix + "list:" + dir
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	clean, err := docstore.CleanPath(path)
	if err != nil {
		return docstore.Document{}, err
	}

	var doc docstore.Document
	if s.load(ctx, s.docKey(clean), &doc) {
		return doc, nil
	}

	doc, err = s.inner.Get(ctx, clean)
	if err != nil {
		return docstore.Document{}, err
	}
	s.save(ctx, s.docKey(clean), doc)
	return doc, nil
}

func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	if s.load(ctx, s.listKey(dir), &names) {
		return names, nil
	}

	names, err := s.inner.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	s.save(ctx, s.listKey(dir), names)
	return names, nil
}

// Update writes through to the inner store and drops the cached document,
// whether or not the write succeeded.
func (s *Store) Update(ctx context.Context, req docstore.UpdateRequest) (docstore.Commit, error) {
	commit, err := s.inner.Update(ctx, req)
	if clean, cleanErr := docstore.CleanPath(req.Path); cleanErr == nil {
		if delErr := s.client.Del(ctx, s.docKey(clean)).Err(); delErr != nil {
			s.logger.Warn("cache invalidation failed", "path", clean, "error", delErr)
		}
	}
	return commit, err
}

// Sync syncs the inner store when it supports it and flushes the cache.
func (s *Store) Sync(ctx context.Context) error {
	if syncer, ok := s.inner.(docstore.Syncer); ok {
		if err := syncer.Sync(ctx); err != nil {
			return err
		}
	}
	return s.Flush(ctx)
}

// Flush removes every key under the store prefix.
func (s *Store) Flush(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) load(ctx context.Context, key string, out any) bool {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) save(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
