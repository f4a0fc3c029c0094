package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

const (
	dedupKeyPrefix = "alerts:dedup:"
	chainKeyPrefix = "approval-chains:"
)

// CacheRepository wraps Redis for alert dedup reservations and approval
// chain lookups.
type CacheRepository struct {
	client *redis.Client
}

// NewCacheRepository constructs the repository.
func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{client: client}
}

// ReserveAlertSlot atomically claims the dedup window for a node. It
// returns false when another alert already holds the window. SETNX with the
// window as TTL makes the claim race-free across instances.
func (r *CacheRepository) ReserveAlertSlot(ctx context.Context, nodeID string, window time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, dedupKeyPrefix+nodeID, time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, fmt.Errorf("reserve alert slot: %w", err)
	}
	return ok, nil
}

// ReleaseAlertSlot frees a reservation, used when the alert insert fails
// after the slot was claimed.
func (r *CacheRepository) ReleaseAlertSlot(ctx context.Context, nodeID string) error {
	if err := r.client.Del(ctx, dedupKeyPrefix+nodeID).Err(); err != nil {
		return fmt.Errorf("release alert slot: %w", err)
	}
	return nil
}

// GetApprovalChain returns a cached chain config, or nil on miss.
func (r *CacheRepository) GetApprovalChain(ctx context.Context, organization, approvalKey string) (*models.ApprovalChainConfig, error) {
	raw, err := r.client.Get(ctx, chainCacheKey(organization, approvalKey)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached approval chain: %w", err)
	}
	var config models.ApprovalChainConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("decode cached approval chain: %w", err)
	}
	return &config, nil
}

// SetApprovalChain caches a chain config with a TTL.
func (r *CacheRepository) SetApprovalChain(ctx context.Context, config *models.ApprovalChainConfig, ttl time.Duration) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode approval chain: %w", err)
	}
	if err := r.client.Set(ctx, chainCacheKey(config.OrganizationName, config.ApprovalKey), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache approval chain: %w", err)
	}
	return nil
}

func chainCacheKey(organization, approvalKey string) string {
	return fmt.Sprintf("%s%s:%s", chainKeyPrefix, organization, approvalKey)
}
