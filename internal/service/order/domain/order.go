// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	inventory "atlas/internal/service/inventory/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderExpired      = errors.New("order has expired")
	ErrInvalidTransition = errors.New("invalid order state transition")

	ErrVoucherInactive       = errors.New("voucher is not currently active")
	ErrVoucherNotEligible    = errors.New("voucher is not eligible for this order")
	ErrVoucherExhausted      = errors.New("voucher usage limit reached")
	ErrVoucherAlreadyApplied = errors.New("voucher already applied to this order")
	ErrVoucherUsedByCustomer = errors.New("voucher already used by this customer")
	ErrVoucherNotCombinable  = errors.New("voucher cannot combine with applied discounts")
)

// Order 是订单聚合的根实体。
// 临时订单(Code 为 nil)带 Expire，过期后被清扫器连库存占用一起回收；
// 结账之后 Expire 不再有意义。
type Order struct {
	ID         uint
	Code       *string
	CustomerID uint

	Status            Status
	TransactionStatus TransactionStatus
	Void              bool

	// TotalBeforeDiscount 是行级折扣之后、单级折扣之前的订单总额，
	// 优惠券重放时以它为基准重新计算。
	TotalBeforeDiscount decimal.Decimal
	DiscountAmount      decimal.Decimal
	Total               decimal.Decimal

	Lines     []*Line
	Discounts []AppliedDiscount
	Vouchers  []AppliedVoucher
	Events    []Event

	Email           string
	Phone           string
	ShippingAddress string
	PaymentMethod   string
	// PayOSCode 是支付网关返回的待支付引用，支付失败回调时清空
	PayOSCode *string

	Expire    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line 是订单中的一个商品行。
// 不变量: Sources 的数量之和等于 Quantity。
type Line struct {
	ID        uint
	VariantID uint
	ProductID uint
	Quantity  int

	UnitPrice       decimal.Decimal
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountPercent int64
	Total           decimal.Decimal

	Sources   []Source
	Discounts []AppliedDiscount
}

// Source 记录一行商品从哪个仓库/收货批次分配了多少库存。
// Released 在库存释放的同一事务里翻转，保证释放路径幂等。
type Source struct {
	ID            uint
	ReceiveItemID *uint
	WarehouseID   uint
	Quantity      int
	CostPrice     decimal.Decimal
	Released      bool
}

// AppliedDiscount 是一条落库的折扣归因。挂在 Line.Discounts 下的是
// 行级归因，挂在 Order.Discounts 下的是单级归因。
type AppliedDiscount struct {
	ID         uint
	DiscountID uint
	Title      string
	Amount     decimal.Decimal
}

// AppliedVoucher 记录一次券码核销，同一张券在一张订单上只能核销一次。
type AppliedVoucher struct {
	ID         uint
	DiscountID uint
	CustomerID uint
	Code       string
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// Allocations 把所有未释放来源还原成库存侧的分配清单。
// Released 只护住占用(Available/OnTransaction)的归还；发货扣减
// 实物在库量时要用 AllAllocations，它不受释放状态影响。
func (o *Order) Allocations() []inventory.Allocation {
	var out []inventory.Allocation
	for _, line := range o.Lines {
		for _, src := range line.Sources {
			if src.Released {
				continue
			}
			out = append(out, inventory.Allocation{
				ReceiveItemID: src.ReceiveItemID,
				WarehouseID:   src.WarehouseID,
				VariantID:     line.VariantID,
				Quantity:      src.Quantity,
				CostPrice:     src.CostPrice,
			})
		}
	}
	return out
}

// AllAllocations 返回全部来源的分配清单，含已释放的。
func (o *Order) AllAllocations() []inventory.Allocation {
	var out []inventory.Allocation
	for _, line := range o.Lines {
		for _, src := range line.Sources {
			out = append(out, inventory.Allocation{
				ReceiveItemID: src.ReceiveItemID,
				WarehouseID:   src.WarehouseID,
				VariantID:     line.VariantID,
				Quantity:      src.Quantity,
				CostPrice:     src.CostPrice,
			})
		}
	}
	return out
}

// IsExpired 判断临时订单是否已过期。已结账的订单永远不过期。
func (o *Order) IsExpired(now time.Time) bool {
	return o.Code == nil && o.Expire != nil && o.Expire.Before(now)
}

// Checkout 给临时订单分配订单号并录入联系/收货信息。
func (o *Order) Checkout(code, email, phone, shippingAddress, paymentMethod string, now time.Time) error {
	if o.Status != StatusPendingPayment {
		return errors.Wrapf(ErrInvalidTransition, "checkout from %s", o.Status)
	}
	if o.IsExpired(now) {
		return ErrOrderExpired
	}
	o.Code = &code
	o.Email = email
	o.Phone = phone
	o.ShippingAddress = shippingAddress
	o.PaymentMethod = paymentMethod
	o.Status = StatusPendingProcessing
	o.UpdatedAt = now
	return nil
}

// ConfirmDelivery 确认发货。已支付的订单直接完成，否则进入在途状态。
func (o *Order) ConfirmDelivery(now time.Time) error {
	if o.Status != StatusPendingProcessing {
		return errors.Wrapf(ErrInvalidTransition, "confirm delivery from %s", o.Status)
	}
	if o.TransactionStatus == TransactionPaid {
		o.Status = StatusComplete
	} else {
		o.Status = StatusInTransit
	}
	o.UpdatedAt = now
	return nil
}

// ConfirmPayment 确认收款。已发货的订单随之完成。
func (o *Order) ConfirmPayment(now time.Time) error {
	if o.Status != StatusPendingProcessing && o.Status != StatusInTransit {
		return errors.Wrapf(ErrInvalidTransition, "confirm payment from %s", o.Status)
	}
	if o.TransactionStatus == TransactionPaid {
		return errors.Wrap(ErrInvalidTransition, "order already paid")
	}
	o.TransactionStatus = TransactionPaid
	o.PayOSCode = nil
	if o.Status == StatusInTransit {
		o.Status = StatusComplete
	}
	o.UpdatedAt = now
	return nil
}

// Cancel 管理员取消。完成的订单不能再取消。
func (o *Order) Cancel(now time.Time) error {
	if o.Status == StatusComplete || o.Status == StatusCancel {
		return errors.Wrapf(ErrInvalidTransition, "cancel from %s", o.Status)
	}
	o.Status = StatusCancel
	o.UpdatedAt = now
	return nil
}

// Dispatched 判断实物库存是否已经扣减(发货确认做过 OnHand 扣减)。
func (o *Order) Dispatched() bool {
	return o.Status == StatusInTransit || o.Status == StatusComplete
}

// SoftDelete 逻辑删除，不触碰库存。
func (o *Order) SoftDelete(now time.Time) {
	o.Void = true
	o.UpdatedAt = now
}

// AcceptsVoucher 判断订单当前是否处于可以核销券码的阶段。
func (o *Order) AcceptsVoucher() error {
	if o.Void {
		return ErrOrderNotFound
	}
	if o.Status != StatusPendingProcessing && o.Status != StatusInTransit {
		return errors.Wrapf(ErrInvalidTransition, "apply voucher in %s", o.Status)
	}
	return nil
}

// HasVoucher 判断某张券是否已经在本订单上核销过。
func (o *Order) HasVoucher(discountID uint) bool {
	for _, v := range o.Vouchers {
		if v.DiscountID == discountID {
			return true
		}
	}
	return false
}

// OrderDiscountIDs 返回已落库的单级折扣归因对应的折扣 id(去重保序)。
func (o *Order) OrderDiscountIDs() []uint {
	seen := make(map[uint]struct{})
	var ids []uint
	for _, d := range o.Discounts {
		if _, ok := seen[d.DiscountID]; ok {
			continue
		}
		seen[d.DiscountID] = struct{}{}
		ids = append(ids, d.DiscountID)
	}
	return ids
}

// VoucherDiscountIDs 返回已核销券码对应的折扣 id。
func (o *Order) VoucherDiscountIDs() []uint {
	ids := make([]uint, 0, len(o.Vouchers))
	for _, v := range o.Vouchers {
		ids = append(ids, v.DiscountID)
	}
	return ids
}

// ItemCount 返回订单商品总件数。
func (o *Order) ItemCount() int {
	count := 0
	for _, line := range o.Lines {
		count += line.Quantity
	}
	return count
}

// ApplyOrderPricing 用一次单级折扣组合的结果覆盖订单总额字段。
func (o *Order) ApplyOrderPricing(discountAmount, total decimal.Decimal) {
	o.DiscountAmount = discountAmount
	o.Total = total
}
