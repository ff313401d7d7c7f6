// internal/service/order/application/service.go
package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"atlas/internal/pkg/config"
	"atlas/internal/pkg/database"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/metrics"
	inventoryapp "atlas/internal/service/inventory/application"
	inventory "atlas/internal/service/inventory/domain"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/port"
	pricingapp "atlas/internal/service/pricing/application"
	pricing "atlas/internal/service/pricing/domain"
)

// OrderApplicationService 只做业务流程编排: 定价和分配的算法
// 在各自的引擎里，仓储细节在基础设施层，这里把它们接起来，
// 并保证每次状态流转都是一个带预算的事务。
type OrderApplicationService struct {
	uow         domain.UnitOfWork
	catalog     port.CatalogReader
	eligibility *pricingapp.Eligibility
	notifier    port.NotificationProducer
	gateway     port.PaymentGateway
	tracer      trace.Tracer
	cfg         config.OrderConfig
}

func NewOrderApplicationService(
	uow domain.UnitOfWork,
	catalog port.CatalogReader,
	eligibility *pricingapp.Eligibility,
	notifier port.NotificationProducer,
	gateway port.PaymentGateway,
	tracer trace.Tracer,
	cfg config.OrderConfig,
) *OrderApplicationService {
	return &OrderApplicationService{
		uow: uow, catalog: catalog, eligibility: eligibility,
		notifier: notifier, gateway: gateway, tracer: tracer, cfg: cfg,
	}
}

// CreateTempOrder 创建临时订单: 行级定价、库存分配、单级定价、落库，
// 全部发生在同一个重预算事务里，任何一步失败整单回滚。
func (s *OrderApplicationService) CreateTempOrder(ctx context.Context, req *CreateTempOrderRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateTempOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int("order.customer_id", int(req.CustomerID)),
		attribute.Int("order.line_count", len(req.Lines)),
	)

	if len(req.Lines) == 0 {
		return nil, errors.New("order must have at least one line")
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, errors.Errorf("invalid quantity %d for variant %d", line.Quantity, line.VariantID)
		}
	}

	var order *domain.Order
	err := s.uow.Within(ctx, s.cfg.HeavyTxBudget, func(ctx context.Context, repos domain.Repos) error {
		built, err := s.buildOrder(ctx, repos, req)
		if err != nil {
			return err
		}
		order = built
		return repos.Orders.Create(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create temp order failed")
		if errors.Is(err, inventory.ErrInsufficientStock) {
			metrics.AllocationFailures.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	logger.Ctx(ctx).Info().
		Uint("order_id", order.ID).
		Str("total", order.Total.String()).
		Msg("temp order created")
	return ToOrderResponse(order), nil
}

// buildOrder 在事务内完成定价和分配，返回待落库的聚合。
func (s *OrderApplicationService) buildOrder(ctx context.Context, repos domain.Repos, req *CreateTempOrderRequest) (*domain.Order, error) {
	now := time.Now()

	productDiscounts, err := repos.Discounts.ActiveDiscounts(ctx, pricing.ModePromotion, pricing.TypeProduct)
	if err != nil {
		return nil, errors.Wrap(err, "load product promotions")
	}
	orderDiscounts, err := repos.Discounts.ActiveDiscounts(ctx, pricing.ModePromotion, pricing.TypeOrder)
	if err != nil {
		return nil, errors.Wrap(err, "load order promotions")
	}

	// 先算一遍全单税前总额，行级门槛(MIN_TOTAL)以它为基准
	variants := make(map[uint]*port.VariantInfo, len(req.Lines))
	orderTotal := decimal.Zero
	for _, line := range req.Lines {
		info, err := s.catalog.Variant(ctx, line.VariantID)
		if err != nil {
			return nil, errors.Wrapf(err, "load variant %d", line.VariantID)
		}
		variants[line.VariantID] = info
		orderTotal = orderTotal.Add(info.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	// 先做一轮聚合可售量预检，明显不足的需求不进入逐批次加锁的分配
	for _, line := range req.Lines {
		available, err := repos.Stock.AvailableQuantity(ctx, line.VariantID)
		if err != nil {
			return nil, errors.Wrapf(err, "check stock for variant %d", line.VariantID)
		}
		if available < line.Quantity {
			return nil, errors.Wrapf(inventory.ErrInsufficientStock,
				"variant %d has %d available, %d demanded", line.VariantID, available, line.Quantity)
		}
	}

	allocator := inventoryapp.NewAllocator(repos.Stock)
	expire := now.Add(s.cfg.ExpireAfter)
	order := &domain.Order{
		CustomerID:        req.CustomerID,
		Status:            domain.StatusPendingPayment,
		TransactionStatus: domain.TransactionUnpaid,
		Expire:            &expire,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	linesTotal := decimal.Zero
	for _, lineReq := range req.Lines {
		info := variants[lineReq.VariantID]
		quantity := decimal.NewFromInt(int64(lineReq.Quantity))
		subtotal := info.UnitPrice.Mul(quantity)

		subject := pricingapp.LineSubject{
			VariantID:  info.VariantID,
			ProductID:  info.ProductID,
			Quantity:   lineReq.Quantity,
			UnitPrice:  info.UnitPrice,
			Subtotal:   subtotal,
			OrderTotal: orderTotal,
		}
		eligible := s.eligibility.ForLine(ctx, productDiscounts, subject)
		result := pricingapp.Compose(subtotal, eligible, pricingapp.SubjectLine)

		line := &domain.Line{
			VariantID:       info.VariantID,
			ProductID:       info.ProductID,
			Quantity:        lineReq.Quantity,
			UnitPrice:       info.UnitPrice,
			Subtotal:        subtotal,
			DiscountAmount:  result.DiscountAmount,
			DiscountPercent: result.DiscountPercent,
			Total:           result.FinalPrice,
		}

		allocations, err := allocator.Allocate(ctx, info.VariantID, lineReq.Quantity, req.ActorID)
		if err != nil {
			return nil, err
		}
		for _, alloc := range allocations {
			line.Sources = append(line.Sources, domain.Source{
				ReceiveItemID: alloc.ReceiveItemID,
				WarehouseID:   alloc.WarehouseID,
				Quantity:      alloc.Quantity,
				CostPrice:     alloc.CostPrice,
			})
		}

		for _, attr := range result.Applied {
			line.Discounts = append(line.Discounts, domain.AppliedDiscount{
				DiscountID: attr.Discount.ID,
				Title:      attr.Discount.Title,
				Amount:     attr.Amount,
			})
		}

		order.Lines = append(order.Lines, line)
		linesTotal = linesTotal.Add(line.Total)
	}

	// 单级定价以行级折扣之后的总额为基准
	order.TotalBeforeDiscount = linesTotal
	orderSubject := pricingapp.OrderSubject{ItemCount: order.ItemCount(), Total: linesTotal}
	eligible := s.eligibility.ForOrder(ctx, orderDiscounts, orderSubject)
	result := pricingapp.Compose(linesTotal, eligible, pricingapp.SubjectOrder)
	order.ApplyOrderPricing(result.DiscountAmount, result.FinalPrice)
	for _, attr := range result.Applied {
		order.Discounts = append(order.Discounts, domain.AppliedDiscount{
			DiscountID: attr.Discount.ID,
			Title:      attr.Discount.Title,
			Amount:     attr.Amount,
		})
	}

	order.Events = append(order.Events, domain.Event{
		ID:        uuid.New().String(),
		Kind:      domain.EventCreated,
		ActorID:   req.ActorID,
		CreatedAt: now,
	})
	return order, nil
}

// Checkout 给临时订单分配订单号并推进到待处理状态。
// 确认通知在事务提交后发送，失败只记日志。
func (s *OrderApplicationService) Checkout(ctx context.Context, req *CheckoutRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(req.OrderID)))

	var order *domain.Order
	var err error
	// 订单号有唯一索引，生成撞号时换一个号重试整个事务
	for attempt := 0; attempt < 3; attempt++ {
		err = s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
			found, err := repos.Orders.FindByID(ctx, req.OrderID)
			if err != nil {
				return err
			}
			now := time.Now()
			if err := found.Checkout(generateOrderCode(now), req.Email, req.Phone, req.ShippingAddress, req.PaymentMethod, now); err != nil {
				return err
			}
			if err := repos.Orders.Save(ctx, found); err != nil {
				return err
			}
			if err := repos.Orders.AppendEvent(ctx, &domain.Event{
				ID:        uuid.New().String(),
				OrderID:   found.ID,
				Kind:      domain.EventCheckedOut,
				Note:      *found.Code,
				ActorID:   req.ActorID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			order = found
			return nil
		})
		if !database.IsDuplicateEntry(err) {
			break
		}
		logger.Ctx(ctx).Warn().Uint("order_id", req.OrderID).Msg("order code collision, regenerating")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return nil, err
	}

	metrics.OrdersCheckedOut.Inc()
	resp := ToOrderResponse(order)

	if link, err := s.gateway.CreatePaymentLink(ctx, order); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint("order_id", order.ID).Msg("payment link creation failed")
	} else {
		resp.PaymentURL = link.URL
		order.PayOSCode = &link.Code
		if err := s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
			return repos.Orders.Save(ctx, order)
		}); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Uint("order_id", order.ID).Msg("storing payment reference failed")
		}
	}

	if err := s.notifier.SendOrderConfirmation(ctx, order); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint("order_id", order.ID).Msg("order confirmation notification failed")
	}
	return resp, nil
}

// FindOrder 加载一张订单的当前快照。
func (s *OrderApplicationService) FindOrder(ctx context.Context, orderID uint) (*OrderResponse, error) {
	var order *domain.Order
	err := s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(order), nil
}

// generateOrderCode 生成人类可读的订单号: 日期 + 6 位随机大写字母数字。
func generateOrderCode(now time.Time) string {
	// 32 个字符整除 256，按字节取模不引入偏差
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffix := make([]byte, 6)
	_, _ = rand.Read(suffix)
	for i, b := range suffix {
		suffix[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
