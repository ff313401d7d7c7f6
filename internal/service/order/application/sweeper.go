// internal/service/order/application/sweeper.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/metrics"
	inventoryapp "atlas/internal/service/inventory/application"
	"atlas/internal/service/order/domain"
)

const (
	// 清扫单批最多处理的订单数，避免一次长事务扫描拖垮高峰期
	sweepBatchSize = 200
	// 单批内并发回收的订单数上限
	sweepConcurrency = 8
)

// SweepExpired 回收所有已过期的临时订单: 释放库存占用、回滚券码
// 使用计数、物理删除订单。每张订单在自己的事务里处理，单张失败
// 只记日志，不影响同批其他订单。整个入口幂等，Released 护栏保证
// 与并发调用方或在线请求竞争时库存不会被归还两次。
func (s *OrderApplicationService) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "app.SweepExpired")
	defer span.End()
	started := time.Now()

	var expired []*domain.Order
	err := s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.ExpiredTempOrders(ctx, time.Now(), sweepBatchSize)
		if err != nil {
			return err
		}
		expired = found
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "scan expired orders")
	}
	if len(expired) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	swept := make(chan uint, len(expired))
	for _, order := range expired {
		order := order
		g.Go(func() error {
			if err := s.reapOrder(gctx, order.ID); err != nil {
				// 失败隔离: 记下来让下一轮重试，不打断本批
				logger.Ctx(gctx).Error().Err(err).
					Uint("order_id", order.ID).
					Msg("expired order reap failed")
				return nil
			}
			swept <- order.ID
			return nil
		})
	}
	_ = g.Wait()
	close(swept)

	count := len(swept)
	metrics.OrdersExpired.Add(float64(count))
	metrics.SweepDuration.Observe(time.Since(started).Seconds())
	logger.Ctx(ctx).Info().
		Int("scanned", len(expired)).
		Int("swept", count).
		Msg("expiry sweep finished")
	return count, nil
}

// reapOrder 在单个事务里回收一张过期订单。
func (s *OrderApplicationService) reapOrder(ctx context.Context, orderID uint) error {
	return s.uow.Within(ctx, s.cfg.HeavyTxBudget, func(ctx context.Context, repos domain.Repos) error {
		order, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				// 并发清扫已经删掉了
				return nil
			}
			return err
		}
		if !order.IsExpired(time.Now()) {
			// 扫描和回收之间完成了结账
			return nil
		}

		allocations := order.Allocations()
		flipped, err := repos.Orders.MarkSourcesReleased(ctx, order.ID)
		if err != nil {
			return err
		}
		if flipped {
			allocator := inventoryapp.NewAllocator(repos.Stock)
			if err := allocator.Release(ctx, allocations, 0); err != nil {
				return err
			}
		}

		for _, voucher := range order.Vouchers {
			if err := repos.Discounts.IncrementUsage(ctx, voucher.DiscountID, -1); err != nil {
				return err
			}
		}
		return repos.Orders.HardDelete(ctx, order.ID)
	})
}
