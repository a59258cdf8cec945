package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RoleSource lists the labels held by a principal.
type RoleSource interface {
	RolesFor(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// CachedChecker keeps each principal's role list in Redis for a short TTL.
// Redis failures degrade to direct source lookups.
type CachedChecker struct {
	source RoleSource
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedChecker wraps source with a Redis cache.
func NewCachedChecker(source RoleSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedChecker{source: source, client: client, ttl: ttl, logger: logger}
}

// HasAnyRole implements Checker.
func (c *CachedChecker) HasAnyRole(ctx context.Context, userID uuid.UUID, roles []string) (bool, error) {
	granted, err := c.Roles(ctx, userID)
	if err != nil {
		return false, err
	}
	return HasAny(granted, NormalizeRoles(roles)), nil
}

// fillTimeout bounds a shared fill, which outlives any single caller.
const fillTimeout = 5 * time.Second

var errStaleFill = errors.New("rbac: roles changed during fill")

// Roles returns the cached role list, filling it on miss. Concurrent misses
// share one fill; each caller still returns on its own cancellation.
func (c *CachedChecker) Roles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	key := roleKey(userID)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var roles []string
		if jsonErr := json.Unmarshal(raw, &roles); jsonErr == nil {
			return roles, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("role cache read", slog.String("user_id", userID.String()), slog.Any("error", err))
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		return c.fill(fillCtx, userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

// fill reads the source and caches the result unless Invalidate ran in
// between, detected through the per-user generation counter.
func (c *CachedChecker) fill(ctx context.Context, userID uuid.UUID) ([]string, error) {
	key, genKey := roleKey(userID), generationKey(userID)
	gen, err := c.client.Get(ctx, genKey).Int64()
	cacheable := err == nil || errors.Is(err, redis.Nil)
	if !cacheable {
		c.logger.Warn("role cache generation read", slog.String("user_id", userID.String()), slog.Any("error", err))
	}

	roles, err := c.source.RolesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cacheable {
		return roles, nil
	}
	payload, err := json.Marshal(roles)
	if err != nil {
		return roles, nil
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("role cache fill discarded", slog.String("user_id", userID.String()))
	default:
		c.logger.Warn("role cache write", slog.String("user_id", userID.String()), slog.Any("error", err))
	}
	return roles, nil
}

// Invalidate drops the cached roles for userID and voids fills in flight.
func (c *CachedChecker) Invalidate(ctx context.Context, userID uuid.UUID) error {
	key := roleKey(userID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), c.ttl+fillTimeout)
		pipe.Del(ctx, key)
		return nil
	})
	c.group.Forget(key)
	return err
}

func roleKey(userID uuid.UUID) string {
	return "rbac:roles:" + userID.String()
}

func generationKey(userID uuid.UUID) string {
	return "rbac:roles:gen:" + userID.String()
}

var _ Checker = (*CachedChecker)(nil)
