// internal/service/pricing/application/composition.go
package application

import (
	"atlas/internal/service/pricing/domain"

	"github.com/shopspring/decimal"
)

// SubjectKind 区分被定价的对象: 商品行价格或订单总额。
// 两者的区别只在最后一步: 行价格向下取整到 1,000，订单总额不取整。
type SubjectKind int

const (
	SubjectLine SubjectKind = iota
	SubjectOrder
)

// Attribution 记录一条折扣在本次定价中实际贡献的金额。
type Attribution struct {
	Discount *domain.Discount
	Amount   decimal.Decimal
}

// PriceResult 是组合引擎的输出。
type PriceResult struct {
	FinalPrice      decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountPercent int64
	Applied         []Attribution
}

// Compose 把一组已通过资格筛选的折扣按组合规则应用到 price 上。
//
// 算法(与线上行为保持一致，不做"修正"):
//  1. 按可叠加性把折扣分成互斥组和可叠加组。
//  2. 互斥组: 每条折扣都独立对原价求优惠金额，只保留金额最大的一条，
//     金额相同时保留目录顺序靠前的；对剩余价格扣减一次。
//  3. 可叠加组按三轮严格顺序作用在当时的剩余价格上:
//     a. 一口价: 取可叠加一口价中数值最小的一条，若小于剩余价格则把
//     剩余价格直接置为该值(重定价而非扣减)，本轮最多生效一条；
//     b. 百分比: 按目录顺序逐条作用在当时的剩余价格上，各自独立封顶；
//     c. 固定金额: 逐条扣减，剩余价格不会低于零。
//  4. 行对象最终价格向下取整到 1,000。
//
// 未知的 ValueType 在各轮都不命中任何分支，静默跳过。
func Compose(price decimal.Decimal, discounts []*domain.Discount, kind SubjectKind) PriceResult {
	remaining := price
	totalDiscount := decimal.Zero
	applied := make([]Attribution, 0, len(discounts))

	var exclusive, combinable []*domain.Discount
	for _, d := range discounts {
		if d.Combinable() {
			combinable = append(combinable, d)
		} else {
			exclusive = append(exclusive, d)
		}
	}

	// 互斥组: 都相对原价评估，赢家通吃
	var best *domain.Discount
	bestAmount := decimal.Zero
	for _, d := range exclusive {
		amount := singleAmount(d, price)
		if amount.GreaterThan(bestAmount) {
			best = d
			bestAmount = amount
		}
	}
	if best != nil {
		remaining = remaining.Sub(bestAmount)
		totalDiscount = totalDiscount.Add(bestAmount)
		applied = append(applied, Attribution{Discount: best, Amount: bestAmount})
	}

	// 3a. 一口价: 最小值生效，是重定价而不是扣减
	var flat *domain.Discount
	for _, d := range combinable {
		if d.ValueType != domain.ValueTypeFlat {
			continue
		}
		if flat == nil || d.Value.LessThan(flat.Value) {
			flat = d
		}
	}
	if flat != nil && flat.Value.LessThan(remaining) {
		saved := remaining.Sub(flat.Value)
		remaining = flat.Value
		totalDiscount = totalDiscount.Add(saved)
		applied = append(applied, Attribution{Discount: flat, Amount: saved})
	}

	// 3b. 百分比: 目录顺序，逐条作用在当时的剩余价格上
	for _, d := range combinable {
		if d.ValueType != domain.ValueTypePercent {
			continue
		}
		amount := domain.PercentAmount(remaining, d.Value, d.ValueLimitAmount)
		remaining = remaining.Sub(amount)
		totalDiscount = totalDiscount.Add(amount)
		applied = append(applied, Attribution{Discount: d, Amount: amount})
	}

	// 3c. 固定金额: 扣到零为止。
	// 注意: 这里总折扣累加的是折扣的名义面额，而单条折扣记录的是实际
	// 使用额。当剩余价格被钳到零时两者会出现差额——这是对线上历史行为
	// 的保留，见 DESIGN.md 的待确认项。
	for _, d := range combinable {
		if d.ValueType != domain.ValueTypeValue {
			continue
		}
		newRemaining := remaining.Sub(d.Value)
		if newRemaining.IsNegative() {
			newRemaining = decimal.Zero
		}
		used := remaining.Sub(newRemaining)
		remaining = newRemaining
		totalDiscount = totalDiscount.Add(d.Value)
		applied = append(applied, Attribution{Discount: d, Amount: used})
	}

	final := remaining
	if kind == SubjectLine {
		final = domain.RoundDownToThousand(remaining)
		totalDiscount = totalDiscount.Add(remaining.Sub(final))
	}

	result := PriceResult{
		FinalPrice:     final,
		DiscountAmount: totalDiscount,
		Applied:        applied,
	}
	if kind == SubjectLine && !totalDiscount.IsZero() && price.IsPositive() {
		result.DiscountPercent = price.Sub(final).
			Div(price).
			Mul(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	}
	return result
}

// singleAmount 计算一条折扣独立作用在 price 上的优惠金额。
// 未知 ValueType 走 default 空分支，金额为零，等价于静默跳过。
func singleAmount(d *domain.Discount, price decimal.Decimal) decimal.Decimal {
	switch d.ValueType {
	case domain.ValueTypeFlat:
		return domain.FlatAmount(price, d.Value)
	case domain.ValueTypePercent:
		return domain.PercentAmount(price, d.Value, d.ValueLimitAmount)
	case domain.ValueTypeValue:
		return domain.ValueAmount(price, d.Value)
	default:
		// 历史数据里存在未知取值，按无优惠处理
		return decimal.Zero
	}
}
