// File: utils/token_cache.go
package utils

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// CacheTokenHash stores the sha256 hash of a user's active token so
// the auth middleware can validate requests without a DB round trip.
func CacheTokenHash(client *redis.Client, userID, tokenHash string) error {
	ctx := context.Background()
	if err := client.Set(ctx, AuthCachePrefix+userID, tokenHash, AuthCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache token hash: %w", err)
	}
	return nil
}

// DropCachedTokenHash removes the cached token hash, invalidating the
// session on logout.
func DropCachedTokenHash(client *redis.Client, userID string) error {
	ctx := context.Background()
	return client.Del(ctx, AuthCachePrefix+userID).Err()
}
