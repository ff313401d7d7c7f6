// internal/service/pricing/domain/money.go
package domain

import "github.com/shopspring/decimal"

var thousand = decimal.NewFromInt(1000)

// PercentAmount 计算百分比折扣金额: round(price * pct / 100)，
// 四舍五入到整数货币单位，cap 非 nil 时封顶。
func PercentAmount(price, pct decimal.Decimal, cap *decimal.Decimal) decimal.Decimal {
	amount := price.Mul(pct).Div(decimal.NewFromInt(100)).Round(0)
	if cap != nil && amount.GreaterThan(*cap) {
		amount = *cap
	}
	return amount
}

// FlatAmount 计算一口价折扣在 price 上能省下的金额: min(value, price)。
func FlatAmount(price, value decimal.Decimal) decimal.Decimal {
	if value.GreaterThan(price) {
		return price
	}
	return value
}

// ValueAmount 计算固定金额折扣实际省下的金额。
// 新价格为 max(price - value, 0)，省下的金额即 price 与新价格之差。
func ValueAmount(price, value decimal.Decimal) decimal.Decimal {
	newPrice := price.Sub(value)
	if newPrice.IsNegative() {
		newPrice = decimal.Zero
	}
	return price.Sub(newPrice)
}

// RoundDownToThousand 把行级最终价格向下取整到 1,000 的整数倍。
// 订单级汇总不做这一步。
func RoundDownToThousand(price decimal.Decimal) decimal.Decimal {
	return price.Div(thousand).Floor().Mul(thousand)
}
