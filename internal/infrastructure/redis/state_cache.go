package redis

import (
	"auction-bidding/internal/domain"
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStateCache publishes the latest auction status under auction:{id}:status
// for dashboards and sibling services. Nothing in this service reads it back.
type RedisStateCache struct {
	client *redis.Client
}

func NewStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func statusKey(auctionID int64) string {
	return fmt.Sprintf("auction:%d:status", auctionID)
}

func (r *RedisStateCache) SetAuctionStatus(ctx context.Context, auctionID int64, status domain.AuctionStatus) error {
	return r.client.Set(ctx, statusKey(auctionID), string(status), 0).Err()
}
