// internal/service/order/application/voucher.go
package application

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"atlas/internal/pkg/metrics"
	"atlas/internal/service/order/domain"
	pricingapp "atlas/internal/service/pricing/application"
	pricing "atlas/internal/service/pricing/domain"
)

// ApplyVoucher 在已结账的订单上核销一张券码。
//
// 校验通过后不是简单地追加扣减，而是把已落库的折扣归因和新券
// 放在一起，重放一遍完整的互斥/叠加组合算法: 新券的加入可能改变
// 哪个互斥折扣胜出，所以必须整体重算而不是增量叠加。
func (s *OrderApplicationService) ApplyVoucher(ctx context.Context, req *ApplyVoucherRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.ApplyVoucher")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(req.OrderID)))

	var order *domain.Order
	err := s.uow.Within(ctx, s.cfg.LightTxBudget, func(ctx context.Context, repos domain.Repos) error {
		found, err := repos.Orders.FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		voucher, err := s.validateVoucher(ctx, repos, found, req.Code)
		if err != nil {
			return err
		}

		now := time.Now()
		var amount decimal.Decimal
		if voucher.Type == pricing.TypeOrder {
			amount, err = s.replayOrderVoucher(ctx, repos, found, voucher)
		} else {
			amount, err = s.replayLineVoucher(ctx, repos, found, voucher)
		}
		if err != nil {
			return err
		}

		if err := repos.Orders.AppendVoucher(ctx, found.ID, &domain.AppliedVoucher{
			DiscountID: voucher.ID,
			CustomerID: found.CustomerID,
			Code:       req.Code,
			Amount:     amount,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		if err := repos.Discounts.IncrementUsage(ctx, voucher.ID, 1); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, found); err != nil {
			return err
		}
		if err := repos.Orders.AppendEvent(ctx, &domain.Event{
			ID:        uuid.New().String(),
			OrderID:   found.ID,
			Kind:      domain.EventVoucherApplied,
			Note:      req.Code,
			ActorID:   req.ActorID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply voucher failed")
		metrics.VoucherRedemptions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.VoucherRedemptions.WithLabelValues("applied").Inc()
	return ToOrderResponse(order), nil
}

// validateVoucher 跑完券码的全部准入校验，按失败原因返回哨兵错误。
func (s *OrderApplicationService) validateVoucher(ctx context.Context, repos domain.Repos, order *domain.Order, code string) (*pricing.Discount, error) {
	if err := order.AcceptsVoucher(); err != nil {
		return nil, err
	}
	voucher, err := repos.Discounts.FindCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !voucher.IsCurrentlyActive(time.Now()) {
		return nil, domain.ErrVoucherInactive
	}
	if voucher.UsageExhausted() {
		return nil, domain.ErrVoucherExhausted
	}
	if order.HasVoucher(voucher.ID) {
		return nil, domain.ErrVoucherAlreadyApplied
	}
	if voucher.OnePerCustomer {
		used, err := repos.Discounts.CustomerHasUsed(ctx, voucher.ID, order.CustomerID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, domain.ErrVoucherUsedByCustomer
		}
	}
	// 互斥校验只针对已核销的券: 促销归因会进入重放，由组合算法裁决
	if len(order.Vouchers) > 0 && !voucher.Combinable() {
		return nil, domain.ErrVoucherNotCombinable
	}
	if ids := order.VoucherDiscountIDs(); len(ids) > 0 {
		applied, err := repos.Discounts.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, d := range applied {
			if !d.Combinable() {
				return nil, domain.ErrVoucherNotCombinable
			}
		}
	}
	return voucher, nil
}

// replayOrderVoucher 在订单总额上重放单级折扣组合，返回新券的归因金额。
func (s *OrderApplicationService) replayOrderVoucher(ctx context.Context, repos domain.Repos, order *domain.Order, voucher *pricing.Discount) (decimal.Decimal, error) {
	catalog, err := s.replayCatalog(ctx, repos, order.OrderDiscountIDs(), voucher)
	if err != nil {
		return decimal.Zero, err
	}

	base := order.TotalBeforeDiscount
	subject := pricingapp.OrderSubject{ItemCount: order.ItemCount(), Total: base}
	eligible := s.eligibility.ForOrder(ctx, catalog, subject)
	if !containsDiscount(eligible, voucher.ID) {
		return decimal.Zero, domain.ErrVoucherNotEligible
	}

	result := pricingapp.Compose(base, eligible, pricingapp.SubjectOrder)
	amount := attributedAmount(result, voucher.ID)
	if amount.IsZero() {
		// 重放后新券输给了力度更大的互斥折扣，核销没有意义
		return decimal.Zero, domain.ErrVoucherNotEligible
	}

	order.ApplyOrderPricing(result.DiscountAmount, result.FinalPrice)
	if err := repos.Orders.ReplaceOrderDiscounts(ctx, order.ID, toAppliedDiscounts(result)); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// replayLineVoucher 对商品级券码逐行重放组合，再用新的行总额
// 重算单级折扣，返回新券跨行累计的归因金额。
func (s *OrderApplicationService) replayLineVoucher(ctx context.Context, repos domain.Repos, order *domain.Order, voucher *pricing.Discount) (decimal.Decimal, error) {
	totalAmount := decimal.Zero
	linesTotal := decimal.Zero

	for _, line := range order.Lines {
		lineIDs := make([]uint, 0, len(line.Discounts))
		for _, d := range line.Discounts {
			lineIDs = append(lineIDs, d.DiscountID)
		}
		catalog, err := s.replayCatalog(ctx, repos, lineIDs, voucher)
		if err != nil {
			return decimal.Zero, err
		}

		subject := pricingapp.LineSubject{
			VariantID:  line.VariantID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Subtotal:   line.Subtotal,
			OrderTotal: order.TotalBeforeDiscount,
		}
		eligible := s.eligibility.ForLine(ctx, catalog, subject)
		result := pricingapp.Compose(line.Subtotal, eligible, pricingapp.SubjectLine)

		line.Total = result.FinalPrice
		line.DiscountAmount = result.DiscountAmount
		line.DiscountPercent = result.DiscountPercent
		line.Discounts = toAppliedDiscounts(result)
		if err := repos.Orders.SaveLine(ctx, line); err != nil {
			return decimal.Zero, err
		}
		if err := repos.Orders.ReplaceLineDiscounts(ctx, line.ID, line.Discounts); err != nil {
			return decimal.Zero, err
		}

		totalAmount = totalAmount.Add(attributedAmount(result, voucher.ID))
		linesTotal = linesTotal.Add(line.Total)
	}
	if totalAmount.IsZero() {
		return decimal.Zero, domain.ErrVoucherNotEligible
	}

	// 行总额变了，单级折扣要在新基准上重放一遍
	order.TotalBeforeDiscount = linesTotal
	catalog, err := s.replayCatalog(ctx, repos, order.OrderDiscountIDs(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	subject := pricingapp.OrderSubject{ItemCount: order.ItemCount(), Total: linesTotal}
	eligible := s.eligibility.ForOrder(ctx, catalog, subject)
	result := pricingapp.Compose(linesTotal, eligible, pricingapp.SubjectOrder)
	order.ApplyOrderPricing(result.DiscountAmount, result.FinalPrice)
	if err := repos.Orders.ReplaceOrderDiscounts(ctx, order.ID, toAppliedDiscounts(result)); err != nil {
		return decimal.Zero, err
	}
	return totalAmount, nil
}

// replayCatalog 加载一组已归因折扣并合入新券，按目录顺序(id 升序)排列。
func (s *OrderApplicationService) replayCatalog(ctx context.Context, repos domain.Repos, ids []uint, voucher *pricing.Discount) ([]*pricing.Discount, error) {
	discounts, err := repos.Discounts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load applied discounts")
	}
	if voucher != nil && !containsDiscount(discounts, voucher.ID) {
		discounts = append(discounts, voucher)
	}
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].ID < discounts[j].ID })
	return discounts, nil
}

func containsDiscount(discounts []*pricing.Discount, id uint) bool {
	for _, d := range discounts {
		if d.ID == id {
			return true
		}
	}
	return false
}

func attributedAmount(result pricingapp.PriceResult, discountID uint) decimal.Decimal {
	for _, attr := range result.Applied {
		if attr.Discount.ID == discountID {
			return attr.Amount
		}
	}
	return decimal.Zero
}

func toAppliedDiscounts(result pricingapp.PriceResult) []domain.AppliedDiscount {
	out := make([]domain.AppliedDiscount, 0, len(result.Applied))
	for _, attr := range result.Applied {
		out = append(out, domain.AppliedDiscount{
			DiscountID: attr.Discount.ID,
			Title:      attr.Discount.Title,
			Amount:     attr.Amount,
		})
	}
	return out
}
