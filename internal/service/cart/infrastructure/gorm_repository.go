// internal/service/cart/infrastructure/gorm_repository.go
package infrastructure

import (
	stderrors "errors"

	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"atlas/internal/service/cart/domain"
)

// CartModel 对应 carts 表。
type CartModel struct {
	gorm.Model
	GuestToken string          `gorm:"size:64;uniqueIndex"`
	Lines      []CartLineModel `gorm:"foreignKey:CartID"`
}

func (CartModel) TableName() string {
	return "carts"
}

// CartLineModel 对应 cart_lines 表。
type CartLineModel struct {
	gorm.Model
	CartID    uint `gorm:"index"`
	VariantID uint
	Quantity  int
}

func (CartLineModel) TableName() string {
	return "cart_lines"
}

// GormCartRepository 是购物车的 gorm 实现。
type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

func (r *GormCartRepository) FindByToken(ctx context.Context, token string) (*domain.Cart, error) {
	var model CartModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("guest_token = ?", token).
		First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find cart")
	}
	cart := &domain.Cart{
		ID:         model.ID,
		GuestToken: model.GuestToken,
		UpdatedAt:  model.UpdatedAt,
	}
	for _, lm := range model.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        lm.ID,
			CartID:    lm.CartID,
			VariantID: lm.VariantID,
			Quantity:  lm.Quantity,
		})
	}
	return cart, nil
}

func (r *GormCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := &CartModel{GuestToken: cart.GuestToken}
		model.ID = cart.ID
		if err := tx.Save(model).Error; err != nil {
			return errors.Wrap(err, "save cart")
		}
		if err := tx.Unscoped().Where("cart_id = ?", model.ID).Delete(&CartLineModel{}).Error; err != nil {
			return errors.Wrap(err, "clear cart lines")
		}
		if len(cart.Lines) == 0 {
			cart.ID = model.ID
			return nil
		}
		lines := make([]CartLineModel, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			lines = append(lines, CartLineModel{
				CartID:    model.ID,
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
			})
		}
		if err := tx.Create(&lines).Error; err != nil {
			return errors.Wrap(err, "insert cart lines")
		}
		cart.ID = model.ID
		return nil
	})
}

// PurgeStale 删除最后活跃时间早于 cutoff 的购物车。
func (r *GormCartRepository) PurgeStale(ctx context.Context, cutoff time.Time) (int, error) {
	var staleIDs []uint
	err := r.db.WithContext(ctx).
		Model(&CartModel{}).
		Where("updated_at < ?", cutoff).
		Pluck("id", &staleIDs).Error
	if err != nil {
		return 0, errors.Wrap(err, "scan stale carts")
	}
	if len(staleIDs) == 0 {
		return 0, nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("cart_id IN ?", staleIDs).Delete(&CartLineModel{}).Error; err != nil {
			return errors.Wrap(err, "delete stale cart lines")
		}
		// 扫描后有新活动的购物车不会被误删
		return errors.Wrap(
			tx.Unscoped().Where("id IN ? AND updated_at < ?", staleIDs, cutoff).Delete(&CartModel{}).Error,
			"delete stale carts")
	})
	if err != nil {
		return 0, err
	}
	return len(staleIDs), nil
}
