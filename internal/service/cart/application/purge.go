// internal/service/cart/application/purge.go
package application

import (
	"context"
	"time"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/cart/domain"
)

// 游客购物车的保留时长
const cartRetention = 30 * 24 * time.Hour

// PurgeService 定期清理废弃的游客购物车。
// 和订单过期清扫共用同一套幂等约定: 条件删除，重复执行是空操作。
type PurgeService struct {
	carts domain.CartRepository
}

func NewPurgeService(carts domain.CartRepository) *PurgeService {
	return &PurgeService{carts: carts}
}

// Sweep 删除所有超过保留时长未活跃的购物车，返回删除数量。
func (s *PurgeService) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-cartRetention)
	purged, err := s.carts.PurgeStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		logger.Ctx(ctx).Info().Int("purged", purged).Msg("stale guest carts purged")
	}
	return purged, nil
}
