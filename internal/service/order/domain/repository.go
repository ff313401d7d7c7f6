// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"

	inventory "atlas/internal/service/inventory/domain"
	pricing "atlas/internal/service/pricing/domain"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 落库整个聚合: 订单行、库存来源、折扣归因、流水一起写入。
	Create(ctx context.Context, order *Order) error

	// FindByID 加载完整聚合(含行、来源、归因、券码)。
	FindByID(ctx context.Context, id uint) (*Order, error)

	// Save 回写订单头上的可变字段(状态、总额、结账信息、void 等)。
	Save(ctx context.Context, order *Order) error

	// ExpiredTempOrders 返回已过期且尚未结账的临时订单。
	ExpiredTempOrders(ctx context.Context, now time.Time, limit int) ([]*Order, error)

	// MarkSourcesReleased 把订单的全部库存来源从未释放翻成已释放。
	// 返回 false 表示没有任何行被翻转(别处已经释放过)，调用方必须
	// 跳过库存归还，这是所有释放路径的幂等护栏。
	MarkSourcesReleased(ctx context.Context, orderID uint) (bool, error)

	// SaveLine 回写订单行的总额字段(券码重放会改行级折扣)。
	SaveLine(ctx context.Context, line *Line) error

	// ReplaceOrderDiscounts 用重放结果整体替换订单的单级折扣归因。
	ReplaceOrderDiscounts(ctx context.Context, orderID uint, discounts []AppliedDiscount) error

	// ReplaceLineDiscounts 用重放结果整体替换某一行的折扣归因。
	ReplaceLineDiscounts(ctx context.Context, lineID uint, discounts []AppliedDiscount) error

	AppendVoucher(ctx context.Context, orderID uint, voucher *AppliedVoucher) error
	AppendEvent(ctx context.Context, event *Event) error

	// HardDelete 物理删除订单及其所有下属行，只用于过期清扫。
	HardDelete(ctx context.Context, orderID uint) error
}

// Repos 是一次事务里可用的全部仓储，UnitOfWork 负责把它们绑定到
// 同一个事务句柄。
type Repos struct {
	Orders    OrderRepository
	Discounts pricing.DiscountRepository
	Stock     inventory.StockStore
}

// UnitOfWork 把编排器的一次状态流转包进单个带超时预算的事务。
// fn 返回错误时整个事务回滚，不存在部分提交。
type UnitOfWork interface {
	Within(ctx context.Context, budget time.Duration, fn func(ctx context.Context, repos Repos) error) error
}
