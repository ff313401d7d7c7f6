// internal/service/order/infrastructure/uow.go
package infrastructure

import (
	"context"
	"time"

	"gorm.io/gorm"

	"atlas/internal/pkg/database"
	inventoryinfra "atlas/internal/service/inventory/infrastructure"
	"atlas/internal/service/order/domain"
	pricinginfra "atlas/internal/service/pricing/infrastructure"
)

// GormUnitOfWork 把一次编排流转包进带预算的 gorm 事务，
// 并把三个仓储都绑定到同一个事务句柄上。
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Within(ctx context.Context, budget time.Duration, fn func(ctx context.Context, repos domain.Repos) error) error {
	return database.InTx(ctx, u.db, budget, func(ctx context.Context, tx *gorm.DB) error {
		repos := domain.Repos{
			Orders:    NewGormOrderRepository(tx),
			Discounts: pricinginfra.NewGormDiscountRepository(tx),
			Stock:     inventoryinfra.NewGormStockStore(tx),
		}
		return fn(ctx, repos)
	})
}
