// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderModel 对应 orders 表。Code 在结账前为 NULL，
// 过期清扫用 (code IS NULL, expire) 组合索引扫描。
type OrderModel struct {
	gorm.Model
	Code       *string `gorm:"size:32;uniqueIndex"`
	CustomerID uint    `gorm:"index"`

	Status            string `gorm:"size:24;index"`
	TransactionStatus string `gorm:"size:12"`
	Void              bool

	TotalBeforeDiscount decimal.Decimal `gorm:"type:decimal(18,2)"`
	DiscountAmount      decimal.Decimal `gorm:"type:decimal(18,2)"`
	Total               decimal.Decimal `gorm:"type:decimal(18,2)"`

	Email           string  `gorm:"size:128"`
	Phone           string  `gorm:"size:32"`
	ShippingAddress string  `gorm:"size:512"`
	PaymentMethod   string  `gorm:"size:32"`
	PayOSCode       *string `gorm:"size:64"`

	Expire *time.Time `gorm:"index:idx_orders_expire"`

	Lines     []OrderLineModel     `gorm:"foreignKey:OrderID"`
	Discounts []OrderDiscountModel `gorm:"foreignKey:OrderID"`
	Vouchers  []OrderVoucherModel  `gorm:"foreignKey:OrderID"`
	Events    []OrderEventModel    `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel 对应 order_lines 表。
type OrderLineModel struct {
	gorm.Model
	OrderID   uint `gorm:"index"`
	VariantID uint `gorm:"index"`
	ProductID uint
	Quantity  int

	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,2)"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,2)"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(18,2)"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,0)"`
	Total           decimal.Decimal `gorm:"type:decimal(18,2)"`

	Sources   []OrderItemSourceModel `gorm:"foreignKey:LineID"`
	Discounts []OrderDiscountModel   `gorm:"foreignKey:LineID"`
}

func (OrderLineModel) TableName() string {
	return "order_lines"
}

// OrderItemSourceModel 对应 order_item_sources 表，一行一条分配记录。
// Released 由 MarkSourcesReleased 的条件更新翻转，是释放路径的幂等护栏。
type OrderItemSourceModel struct {
	gorm.Model
	OrderID       uint `gorm:"index"`
	LineID        uint `gorm:"index"`
	ReceiveItemID *uint
	WarehouseID   uint
	Quantity      int
	CostPrice     decimal.Decimal `gorm:"type:decimal(18,2)"`
	Released      bool
}

func (OrderItemSourceModel) TableName() string {
	return "order_item_sources"
}

// OrderDiscountModel 对应 order_discounts 表(折扣归因)。
// LineID 为 NULL 表示单级归因。
type OrderDiscountModel struct {
	gorm.Model
	OrderID    uint  `gorm:"index"`
	LineID     *uint `gorm:"index"`
	DiscountID uint
	Title      string          `gorm:"size:128"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2)"`
}

func (OrderDiscountModel) TableName() string {
	return "order_discounts"
}

// OrderVoucherModel 对应 order_vouchers 表。折扣目录的
// CustomerHasUsed 按 (discount_id, customer_id) 统计这张表。
type OrderVoucherModel struct {
	gorm.Model
	OrderID    uint            `gorm:"index"`
	DiscountID uint            `gorm:"index:idx_voucher_customer"`
	CustomerID uint            `gorm:"index:idx_voucher_customer"`
	Code       string          `gorm:"size:64"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2)"`
}

func (OrderVoucherModel) TableName() string {
	return "order_vouchers"
}

// OrderEventModel 对应 order_events 表，只追加。
type OrderEventModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OrderID   uint   `gorm:"index"`
	Kind      string `gorm:"size:24"`
	Note      string `gorm:"size:255"`
	ActorID   uint
	CreatedAt time.Time
}

func (OrderEventModel) TableName() string {
	return "order_events"
}
