// internal/service/pricing/domain/discount.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode 区分折扣的触发方式: 促销自动生效，优惠券需要用户输入券码。
type Mode string

const (
	ModePromotion Mode = "PROMOTION"
	ModeCoupon    Mode = "COUPON"
)

// Type 区分折扣作用的对象: 单个商品行，或整张订单。
type Type string

const (
	TypeProduct Type = "PRODUCT"
	TypeOrder   Type = "ORDER"
)

// ValueType 定义折扣金额的计算方式。
// 这是一个封闭的枚举；未知取值在组合引擎中是一个显式的空分支，
// 不报错也不生效(兼容历史数据里的脏值)。
type ValueType string

const (
	// ValueTypeFlat 一口价: 把剩余价格直接压到 Value
	ValueTypeFlat ValueType = "FLAT"
	// ValueTypePercent 按百分比扣减，可被 ValueLimitAmount 封顶
	ValueTypePercent ValueType = "PERCENT"
	// ValueTypeValue 固定金额扣减
	ValueTypeValue ValueType = "VALUE"
)

// Entitle 定义折扣的适用范围。
type Entitle string

const (
	EntitleAll      Entitle = "ALL"
	EntitleProduct  Entitle = "PRODUCT"
	EntitleVariant  Entitle = "VARIANT"
	EntitleCategory Entitle = "CATEGORY"
)

// Prerequisite 定义折扣生效的门槛条件。
type Prerequisite string

const (
	PrerequisiteNone Prerequisite = "NONE"
	// PrerequisiteMinTotal 订单税前总额门槛(行级评估时用的是调用方传入的订单总额)
	PrerequisiteMinTotal Prerequisite = "MIN_TOTAL"
	// PrerequisiteMinItem 数量门槛: 行级为该行数量，单级为订单件数
	PrerequisiteMinItem Prerequisite = "MIN_ITEM"
	// PrerequisiteMinItemTotal 该行税前小计门槛
	PrerequisiteMinItemTotal Prerequisite = "MIN_ITEM_TOTAL"
)

// Discount 是一条命名的折扣规则，促销和优惠券共用同一个模型。
type Discount struct {
	ID    uint
	Title string
	Mode  Mode
	Type  Type

	ValueType ValueType
	Value     decimal.Decimal
	// ValueLimitAmount 是百分比折扣的金额上限，nil 表示不封顶
	ValueLimitAmount *decimal.Decimal

	Entitle Entitle
	// 与 Entitle 对应的适用集合。EntitleCategory 的目标分类在加载时
	// 已通过商品-分类关系展开进 EntitledVariantIDs，引擎只做集合比较。
	EntitledProductIDs map[uint]struct{}
	EntitledVariantIDs map[uint]struct{}

	Prerequisite      Prerequisite
	PrerequisiteValue decimal.Decimal

	// 同类折扣是否允许叠加。false 的折扣之间互斥，只取优惠力度最大的一个。
	CombinesWithProductDiscount bool
	CombinesWithOrderDiscount   bool

	// UsageLimit 为 nil 表示不限次数；Usage 在每次成功核销后 +1
	UsageLimit     *int
	Usage          int
	OnePerCustomer bool

	// RuleDefinition 是可选的 CEL 表达式，作为枚举门槛之外的附加规则。
	// 为空表示没有附加规则。
	RuleDefinition string

	Active  bool
	StartOn time.Time
	EndOn   *time.Time
	Void    bool
}

// IsCurrentlyActive 判断折扣在 now 时刻是否生效。
func (d *Discount) IsCurrentlyActive(now time.Time) bool {
	if !d.Active || d.Void {
		return false
	}
	if now.Before(d.StartOn) {
		return false
	}
	if d.EndOn != nil && d.EndOn.Before(now) {
		return false
	}
	return true
}

// Combinable 按折扣自身的作用对象判断它是否允许与同类折扣叠加。
func (d *Discount) Combinable() bool {
	if d.Type == TypeOrder {
		return d.CombinesWithOrderDiscount
	}
	return d.CombinesWithProductDiscount
}

// UsageExhausted 判断使用次数是否已达上限。
func (d *Discount) UsageExhausted() bool {
	return d.UsageLimit != nil && d.Usage >= *d.UsageLimit
}
