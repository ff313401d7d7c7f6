// internal/service/order/port/catalog.go
package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// VariantInfo 是定价需要的变体主数据快照。
type VariantInfo struct {
	VariantID uint
	ProductID uint
	UnitPrice decimal.Decimal
}

// CatalogReader 读取商品目录里的变体信息，供建单时定价使用。
type CatalogReader interface {
	Variant(ctx context.Context, variantID uint) (*VariantInfo, error)
}
