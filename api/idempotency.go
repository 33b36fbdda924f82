package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const idempotencyHeader = "Idempotency-Key"

// RedisDeduper stores processed idempotency keys in Redis so repeated
// mutation requests (client retries after a dropped response) are rejected
// instead of applied twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return fmt.Sprintf("dedupe:%s:%s", userID, key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key so the caller may retry a failed
// mutation under the same key.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}

// IdempotencyMiddleware rejects duplicate mutation requests carrying an
// Idempotency-Key header with 409. Requests without the header pass through
// untouched, as do all requests when no deduper is configured. A failed
// handler releases the key so the client can retry.
func IdempotencyMiddleware(deduper Deduper, auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}
			key := c.Request().Header.Get(idempotencyHeader)
			if key == "" {
				return next(c)
			}
			ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return c.String(http.StatusUnauthorized, err.Error())
			}
			ctx := c.Request().Context()
			added, err := deduper.Add(ctx, ident.ID, key)
			if err != nil {
				// A broken deduper must not block writes.
				c.Logger().Errorf("idempotency add: %v", err)
				return next(c)
			}
			if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}
			if err := next(c); err != nil {
				if rerr := deduper.Remove(ctx, ident.ID, key); rerr != nil {
					c.Logger().Errorf("idempotency rollback: %v", rerr)
				}
				return err
			}
			if c.Response().Status >= http.StatusInternalServerError {
				if rerr := deduper.Remove(ctx, ident.ID, key); rerr != nil {
					c.Logger().Errorf("idempotency rollback: %v", rerr)
				}
			}
			return nil
		}
	}
}
