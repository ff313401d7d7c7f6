// internal/service/order/infrastructure/catalog_gorm.go
package infrastructure

import (
	stderrors "errors"

	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"atlas/internal/service/order/port"
)

// variantRow 对应 variants 表里定价需要的列。
type variantRow struct {
	ID        uint
	ProductID uint
	Price     decimal.Decimal
}

// GormCatalogReader 从商品目录读取变体主数据，实现 port.CatalogReader。
type GormCatalogReader struct {
	db *gorm.DB
}

func NewGormCatalogReader(db *gorm.DB) *GormCatalogReader {
	return &GormCatalogReader{db: db}
}

func (r *GormCatalogReader) Variant(ctx context.Context, variantID uint) (*port.VariantInfo, error) {
	var row variantRow
	err := r.db.WithContext(ctx).
		Table("variants").
		Select("id, product_id, price").
		Where("id = ?", variantID).
		Take(&row).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Errorf("variant %d not found", variantID)
		}
		return nil, errors.Wrap(err, "query variant")
	}
	return &port.VariantInfo{
		VariantID: row.ID,
		ProductID: row.ProductID,
		UnitPrice: row.Price,
	}, nil
}
