// internal/service/pricing/infrastructure/cache/redis_cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/redis"
	"atlas/internal/service/pricing/domain"
)

// CachedDiscountRepository 给折扣仓储加一层 Redis 读穿缓存。
// 只缓存热路径 ActiveDiscounts；TTL 很短，折扣变更最多延迟一个 TTL 生效。
// 缓存故障一律降级为直查数据库，绝不让缓存影响下单。
type CachedDiscountRepository struct {
	inner domain.DiscountRepository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedDiscountRepository(inner domain.DiscountRepository, cache *redis.Client, ttl time.Duration) *CachedDiscountRepository {
	return &CachedDiscountRepository{inner: inner, cache: cache, ttl: ttl}
}

func activeKey(mode domain.Mode, dtype domain.Type) string {
	return fmt.Sprintf("atlas:discounts:active:%s:%s", mode, dtype)
}

func (r *CachedDiscountRepository) ActiveDiscounts(ctx context.Context, mode domain.Mode, dtype domain.Type) ([]*domain.Discount, error) {
	key := activeKey(mode, dtype)

	if cached, err := r.cache.Get(ctx, key); err == nil {
		var discounts []*domain.Discount
		if err := json.Unmarshal([]byte(cached), &discounts); err == nil {
			return discounts, nil
		}
		// 缓存内容损坏，删掉重建
		_ = r.cache.Del(ctx, key)
	} else if err != redis.Nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("discount cache read failed, falling back to store")
	}

	discounts, err := r.inner.ActiveDiscounts(ctx, mode, dtype)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(discounts); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("discount cache write failed")
		}
	}
	return discounts, nil
}

// Create 直写并让目录缓存失效。
func (r *CachedDiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	if err := r.inner.Create(ctx, d); err != nil {
		return err
	}
	r.Invalidate(ctx)
	return nil
}

func (r *CachedDiscountRepository) FindCouponByCode(ctx context.Context, code string) (*domain.Discount, error) {
	return r.inner.FindCouponByCode(ctx, code)
}

func (r *CachedDiscountRepository) FindByIDs(ctx context.Context, ids []uint) ([]*domain.Discount, error) {
	return r.inner.FindByIDs(ctx, ids)
}

// IncrementUsage 直写并让缓存失效，下一次读取重建。
func (r *CachedDiscountRepository) IncrementUsage(ctx context.Context, id uint, delta int) error {
	if err := r.inner.IncrementUsage(ctx, id, delta); err != nil {
		return err
	}
	r.Invalidate(ctx)
	return nil
}

func (r *CachedDiscountRepository) CustomerHasUsed(ctx context.Context, discountID, customerID uint) (bool, error) {
	return r.inner.CustomerHasUsed(ctx, discountID, customerID)
}

// Invalidate 清掉所有目录缓存键。折扣后台的增删改也应调用这里。
func (r *CachedDiscountRepository) Invalidate(ctx context.Context) {
	keys := []string{
		activeKey(domain.ModePromotion, domain.TypeProduct),
		activeKey(domain.ModePromotion, domain.TypeOrder),
		activeKey(domain.ModeCoupon, domain.TypeProduct),
		activeKey(domain.ModeCoupon, domain.TypeOrder),
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("discount cache invalidation failed")
	}
}
