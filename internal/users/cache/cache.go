// Package cache puts a Redis read-through layer in front of the principal
// directory's single-subject lookups. Writes invalidate; list and create
// paths pass straight through.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"registrar/internal/users/directory"
	id "registrar/pkg/domain"
)

const principalKeyPrefix = "principal:sub:"

// DefaultTTL bounds how stale a cached principal can get. Attribute
// mirrors change rarely; a short TTL keeps the lag window small without
// hammering the provider.
const DefaultTTL = 5 * time.Minute

// CachedDirectory decorates a Directory with a read-through cache on
// GetPrincipal. Cache failures degrade to the underlying directory.
type CachedDirectory struct {
	directory.Directory

	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*CachedDirectory)

func WithTTL(ttl time.Duration) Option {
	return func(c *CachedDirectory) {
		c.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedDirectory) {
		c.logger = logger
	}
}

// New wraps dir with the cache. The Redis client lifecycle is managed
// externally.
func New(dir directory.Directory, client *redis.Client, opts ...Option) *CachedDirectory {
	c := &CachedDirectory{
		Directory: dir,
		client:    client,
		ttl:       DefaultTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedDirectory) GetPrincipal(ctx context.Context, subjectID id.SubjectID) (*directory.Principal, error) {
	key := principalKeyPrefix + subjectID.String()

	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var p directory.Principal
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
		// Unreadable entry; drop it and fall through.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "principal cache read failed", "error", err)
	}

	p, err := c.Directory.GetPrincipal(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "principal cache write failed", "error", err)
		}
	}
	return p, nil
}

// UpdateAttributes invalidates the cached principal after a successful
// mirror write so readers never see attributes older than the row.
func (c *CachedDirectory) UpdateAttributes(ctx context.Context, subjectID id.SubjectID, attrs map[string]string) error {
	if err := c.Directory.UpdateAttributes(ctx, subjectID, attrs); err != nil {
		return err
	}
	c.invalidate(ctx, subjectID)
	return nil
}

// DeletePrincipal invalidates the cached principal after removal.
func (c *CachedDirectory) DeletePrincipal(ctx context.Context, subjectID id.SubjectID) error {
	if err := c.Directory.DeletePrincipal(ctx, subjectID); err != nil {
		return err
	}
	c.invalidate(ctx, subjectID)
	return nil
}

func (c *CachedDirectory) invalidate(ctx context.Context, subjectID id.SubjectID) {
	if err := c.client.Del(ctx, principalKeyPrefix+subjectID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "principal cache invalidation failed",
			"subject_id", subjectID,
			"error", err,
		)
	}
}
