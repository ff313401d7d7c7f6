// internal/service/order/application/lifecycle.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/metrics"
	inventoryapp "atlas/internal/service/inventory/application"
	"atlas/internal/service/order/domain"
)

// ConfirmDelivery 确认发货: 每个库存来源扣减实物在库量，
// 订单按当前支付状态推进到在途或完成。
func (s *OrderApplicationService) ConfirmDelivery(ctx context.Context, orderID, actorID uint) error {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmDelivery")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(orderID)))

	var order *domain.Order
	err := s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		now := time.Now()
		allocations := found.AllAllocations()
		if err := found.ConfirmDelivery(now); err != nil {
			return err
		}

		allocator := inventoryapp.NewAllocator(repos.Stock)
		if err := allocator.Dispatch(ctx, allocations, actorID); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, found); err != nil {
			return err
		}
		if err := repos.Orders.AppendEvent(ctx, &domain.Event{
			ID:        uuid.New().String(),
			OrderID:   found.ID,
			Kind:      domain.EventDeliveryConfirmed,
			ActorID:   actorID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm delivery failed")
		return err
	}

	if err := s.notifier.SendDeliveryNotification(ctx, order); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint("order_id", order.ID).Msg("delivery notification failed")
	}
	return nil
}

// ConfirmPayment 确认收款: 交易转入已结算，所有来源解除占用。
// 可售量不归还，货已经卖掉了。已发货的订单随之完成。
func (s *OrderApplicationService) ConfirmPayment(ctx context.Context, orderID, actorID uint) error {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(orderID)))

	err := s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		now := time.Now()
		allocations := found.Allocations()
		if err := found.ConfirmPayment(now); err != nil {
			return err
		}

		// Released 护栏: 占用已被别的路径解除时结算变成空操作
		flipped, err := repos.Orders.MarkSourcesReleased(ctx, found.ID)
		if err != nil {
			return err
		}
		if flipped {
			allocator := inventoryapp.NewAllocator(repos.Stock)
			if err := allocator.Settle(ctx, allocations, actorID); err != nil {
				return err
			}
		}

		if err := repos.Orders.Save(ctx, found); err != nil {
			return err
		}
		return repos.Orders.AppendEvent(ctx, &domain.Event{
			ID:        uuid.New().String(),
			OrderID:   found.ID,
			Kind:      domain.EventPaymentConfirmed,
			ActorID:   actorID,
			CreatedAt: now,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm payment failed")
	}
	return err
}

// CancelOrder 管理员取消订单。isReStock 为 true 时把占用的库存
// 退回可售池(已发货的连实物在库量一起退)，为 false 时只解除占用。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID uint, isReStock bool, actorID uint) error {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int("order.id", int(orderID)),
		attribute.Bool("order.restock", isReStock),
	)

	err := s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		now := time.Now()
		allocations := found.Allocations()
		dispatched := found.Dispatched()
		if err := found.Cancel(now); err != nil {
			return err
		}

		flipped, err := repos.Orders.MarkSourcesReleased(ctx, found.ID)
		if err != nil {
			return err
		}
		if flipped {
			allocator := inventoryapp.NewAllocator(repos.Stock)
			if err := allocator.Cancel(ctx, allocations, isReStock, dispatched, actorID); err != nil {
				return err
			}
		}

		if err := repos.Orders.Save(ctx, found); err != nil {
			return err
		}
		return repos.Orders.AppendEvent(ctx, &domain.Event{
			ID:        uuid.New().String(),
			OrderID:   found.ID,
			Kind:      domain.EventCancelled,
			ActorID:   actorID,
			CreatedAt: now,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel order failed")
		return err
	}

	metrics.OrdersCancelled.Inc()
	return nil
}

// SoftDelete 逻辑删除订单，不触碰库存。
func (s *OrderApplicationService) SoftDelete(ctx context.Context, orderID, actorID uint) error {
	ctx, span := s.tracer.Start(ctx, "app.SoftDelete")
	defer span.End()

	return s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		now := time.Now()
		found.SoftDelete(now)
		if err := repos.Orders.Save(ctx, found); err != nil {
			return err
		}
		return repos.Orders.AppendEvent(ctx, &domain.Event{
			ID:        uuid.New().String(),
			OrderID:   found.ID,
			Kind:      domain.EventDeleted,
			ActorID:   actorID,
			CreatedAt: now,
		})
	})
}

// HandlePaymentCallback 处理支付网关回调。成功等价于确认收款；
// 失败/取消只清除待支付引用，库存不动。
func (s *OrderApplicationService) HandlePaymentCallback(ctx context.Context, orderID uint, succeeded bool) error {
	ctx, span := s.tracer.Start(ctx, "app.HandlePaymentCallback")
	defer span.End()
	span.SetAttributes(
		attribute.Int("order.id", int(orderID)),
		attribute.Bool("payment.succeeded", succeeded),
	)

	if succeeded {
		return s.ConfirmPayment(ctx, orderID, 0)
	}
	return s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		found.PayOSCode = nil
		found.UpdatedAt = time.Now()
		return repos.Orders.Save(ctx, found)
	})
}
