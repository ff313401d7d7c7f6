// internal/service/pricing/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"atlas/internal/pkg/database"
	"atlas/internal/service/pricing/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormDiscountRepository 是 domain.DiscountRepository 的 GORM 实现。
type GormDiscountRepository struct {
	db *gorm.DB
}

func NewGormDiscountRepository(db *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: db}
}

// WithTx 返回一个绑定到事务的仓储副本。
func (r *GormDiscountRepository) WithTx(tx *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: tx}
}

// Create 新建折扣及其适用目标。标题有唯一索引，撞上时返回业务错误。
func (r *GormDiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	model := ToDiscountModel(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsDuplicateEntry(err) {
			return errors.Wrapf(domain.ErrDuplicateTitle, "title %q", d.Title)
		}
		return errors.Wrap(err, "create discount")
	}
	d.ID = model.ID
	return nil
}

// ActiveDiscounts 按目录顺序返回当前生效的折扣，分类范围已展开为变体集合。
func (r *GormDiscountRepository) ActiveDiscounts(ctx context.Context, mode domain.Mode, dtype domain.Type) ([]*domain.Discount, error) {
	now := time.Now()
	var models []DiscountModel
	err := r.db.WithContext(ctx).
		Preload("Entitlements").
		Where("mode = ? AND type = ?", mode, dtype).
		Where("active = ? AND void = ?", true, false).
		Where("start_on <= ?", now).
		Where("end_on IS NULL OR end_on >= ?", now).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query active discounts")
	}

	discounts := make([]*domain.Discount, 0, len(models))
	for i := range models {
		variantIDs, err := r.resolveCategoryVariants(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, ToDomainDiscount(&models[i], variantIDs))
	}
	return discounts, nil
}

func (r *GormDiscountRepository) FindCouponByCode(ctx context.Context, code string) (*domain.Discount, error) {
	var model DiscountModel
	err := r.db.WithContext(ctx).
		Preload("Entitlements").
		Where("title = ? AND mode = ? AND void = ?", code, domain.ModeCoupon, false).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDiscountNotFound
		}
		return nil, errors.Wrap(err, "find coupon by code")
	}
	variantIDs, err := r.resolveCategoryVariants(ctx, &model)
	if err != nil {
		return nil, err
	}
	return ToDomainDiscount(&model, variantIDs), nil
}

func (r *GormDiscountRepository) FindByIDs(ctx context.Context, ids []uint) ([]*domain.Discount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []DiscountModel
	err := r.db.WithContext(ctx).
		Preload("Entitlements").
		Where("id IN ?", ids).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find discounts by ids")
	}
	discounts := make([]*domain.Discount, 0, len(models))
	for i := range models {
		variantIDs, err := r.resolveCategoryVariants(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, ToDomainDiscount(&models[i], variantIDs))
	}
	return discounts, nil
}

// IncrementUsage 以相对增量调整使用计数，依赖数据库在同一行上的串行化。
func (r *GormDiscountRepository) IncrementUsage(ctx context.Context, id uint, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&DiscountModel{}).
		Where("id = ?", id).
		UpdateColumn("usage", gorm.Expr("`usage` + ?", delta))
	if result.Error != nil {
		return errors.Wrap(result.Error, "increment discount usage")
	}
	if result.RowsAffected == 0 {
		return domain.ErrDiscountNotFound
	}
	return nil
}

func (r *GormDiscountRepository) CustomerHasUsed(ctx context.Context, discountID, customerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("order_vouchers").
		Where("discount_id = ? AND customer_id = ?", discountID, customerID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count voucher usage by customer")
	}
	return count > 0, nil
}

// resolveCategoryVariants 把折扣的分类目标通过商品-分类关系展开成变体 id。
func (r *GormDiscountRepository) resolveCategoryVariants(ctx context.Context, model *DiscountModel) ([]uint, error) {
	var categoryIDs []uint
	for _, e := range model.Entitlements {
		if e.TargetType == entitlementTargetCategory {
			categoryIDs = append(categoryIDs, e.TargetID)
		}
	}
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	var variantIDs []uint
	err := r.db.WithContext(ctx).
		Table("variants").
		Joins("JOIN product_categories pc ON pc.product_id = variants.product_id").
		Where("pc.category_id IN ?", categoryIDs).
		Distinct().
		Pluck("variants.id", &variantIDs).Error
	if err != nil {
		return nil, errors.Wrap(err, "resolve category variants")
	}
	return variantIDs, nil
}
