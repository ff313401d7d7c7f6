// internal/service/pricing/application/eligibility.go
package application

import (
	"context"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/pricing/domain"

	"github.com/shopspring/decimal"
)

// LineSubject 是行级折扣评估的对象。
// OrderTotal 是订单的税前运行总额，由调用方算好传入，这里绝不重算。
type LineSubject struct {
	VariantID  uint
	ProductID  uint
	Quantity   int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	OrderTotal decimal.Decimal
}

// OrderSubject 是单级折扣评估的对象。
type OrderSubject struct {
	ItemCount int
	Total     decimal.Decimal
}

// Eligibility 从生效折扣目录中筛出适用范围和门槛条件都满足的子集。
// 纯过滤器，没有副作用；空目录返回空结果，永远不返回错误。
type Eligibility struct {
	rules domain.RuleEngine
}

// NewEligibility 创建资格引擎。rules 为 nil 时跳过附加规则评估。
func NewEligibility(rules domain.RuleEngine) *Eligibility {
	return &Eligibility{rules: rules}
}

// ForLine 返回对指定商品行生效的折扣，保持目录顺序。
func (e *Eligibility) ForLine(ctx context.Context, discounts []*domain.Discount, line LineSubject) []*domain.Discount {
	eligible := make([]*domain.Discount, 0, len(discounts))
	for _, d := range discounts {
		if !e.lineEntitled(d, line) {
			continue
		}
		if !e.linePrerequisiteMet(d, line) {
			continue
		}
		if !e.ruleHolds(ctx, d, domain.Fact{
			VariantID:  line.VariantID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice.InexactFloat64(),
			LineTotal:  line.Subtotal.InexactFloat64(),
			OrderTotal: line.OrderTotal.InexactFloat64(),
		}) {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible
}

// ForOrder 返回对订单聚合生效的折扣，保持目录顺序。
func (e *Eligibility) ForOrder(ctx context.Context, discounts []*domain.Discount, order OrderSubject) []*domain.Discount {
	eligible := make([]*domain.Discount, 0, len(discounts))
	for _, d := range discounts {
		// 订单聚合没有变体可比，范围限定过的折扣对它不生效
		if d.Entitle != domain.EntitleAll {
			continue
		}
		if !e.orderPrerequisiteMet(d, order) {
			continue
		}
		if !e.ruleHolds(ctx, d, domain.Fact{
			ItemCount:  order.ItemCount,
			OrderTotal: order.Total.InexactFloat64(),
		}) {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible
}

func (e *Eligibility) lineEntitled(d *domain.Discount, line LineSubject) bool {
	switch d.Entitle {
	case domain.EntitleAll:
		return true
	case domain.EntitleProduct:
		_, ok := d.EntitledProductIDs[line.ProductID]
		return ok
	case domain.EntitleVariant, domain.EntitleCategory:
		// 分类范围在仓储加载时已展开为变体集合
		_, ok := d.EntitledVariantIDs[line.VariantID]
		return ok
	default:
		return false
	}
}

func (e *Eligibility) linePrerequisiteMet(d *domain.Discount, line LineSubject) bool {
	switch d.Prerequisite {
	case domain.PrerequisiteNone:
		return true
	case domain.PrerequisiteMinTotal:
		return line.OrderTotal.GreaterThanOrEqual(d.PrerequisiteValue)
	case domain.PrerequisiteMinItem:
		return decimal.NewFromInt(int64(line.Quantity)).GreaterThanOrEqual(d.PrerequisiteValue)
	case domain.PrerequisiteMinItemTotal:
		return line.Subtotal.GreaterThanOrEqual(d.PrerequisiteValue)
	default:
		return false
	}
}

func (e *Eligibility) orderPrerequisiteMet(d *domain.Discount, order OrderSubject) bool {
	switch d.Prerequisite {
	case domain.PrerequisiteNone:
		return true
	case domain.PrerequisiteMinTotal:
		return order.Total.GreaterThanOrEqual(d.PrerequisiteValue)
	case domain.PrerequisiteMinItem:
		return decimal.NewFromInt(int64(order.ItemCount)).GreaterThanOrEqual(d.PrerequisiteValue)
	case domain.PrerequisiteMinItemTotal:
		// 行小计门槛对订单聚合没有意义
		return false
	default:
		return false
	}
}

// ruleHolds 评估可选的附加规则。评估出错按不生效处理并记日志，绝不上抛。
func (e *Eligibility) ruleHolds(ctx context.Context, d *domain.Discount, fact domain.Fact) bool {
	if d.RuleDefinition == "" || e.rules == nil {
		return true
	}
	ok, err := e.rules.Evaluate(d.RuleDefinition, fact)
	if err != nil {
		logger.Ctx(ctx).Warn().
			Err(err).
			Uint("discount_id", d.ID).
			Msg("discount rule evaluation failed, treating as ineligible")
		return false
	}
	return ok
}
