// internal/service/pricing/domain/repository.go
package domain

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrDiscountNotFound = errors.New("discount not found")
	ErrDuplicateTitle   = errors.New("discount title already exists")
)

// DiscountRepository 定义折扣目录的持久化接口。
// 实现方在加载时负责把 EntitleCategory 的分类集合展开成变体集合。
type DiscountRepository interface {
	// Create 新建一条折扣。标题重复时返回 ErrDuplicateTitle。
	Create(ctx context.Context, d *Discount) error

	// ActiveDiscounts 返回当前生效的、指定 mode/type 组合的折扣，按目录顺序排列。
	ActiveDiscounts(ctx context.Context, mode Mode, dtype Type) ([]*Discount, error)

	// FindCouponByCode 按券码查找优惠券(不校验生效窗口，校验在应用层做)。
	FindCouponByCode(ctx context.Context, code string) (*Discount, error)

	FindByIDs(ctx context.Context, ids []uint) ([]*Discount, error)

	// IncrementUsage 按 delta 调整使用计数，delta 可以为负(订单过期回滚)。
	IncrementUsage(ctx context.Context, id uint, delta int) error

	// CustomerHasUsed 判断客户是否已经在某张订单上核销过该折扣。
	CustomerHasUsed(ctx context.Context, discountID, customerID uint) (bool, error)
}
