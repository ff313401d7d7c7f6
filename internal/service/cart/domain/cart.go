// internal/service/cart/domain/cart.go
package domain

import (
	"context"
	"time"
)

// Cart 是一个游客购物车。游客下单前没有账号，购物车只靠
// 浏览器令牌归属，长期不活跃的会被后台清扫任务删除。
type Cart struct {
	ID         uint
	GuestToken string
	Lines      []CartLine
	UpdatedAt  time.Time
}

// CartLine 是购物车里的一个商品行。
type CartLine struct {
	ID        uint
	CartID    uint
	VariantID uint
	Quantity  int
}

// CartRepository 定义购物车的持久化接口。
type CartRepository interface {
	FindByToken(ctx context.Context, token string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error

	// PurgeStale 删除最后活跃时间早于 cutoff 的购物车及其行，
	// 返回删除的购物车数量。按行条件删除，并发清扫安全。
	PurgeStale(ctx context.Context, cutoff time.Time) (int, error)
}
