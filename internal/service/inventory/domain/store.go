// internal/service/inventory/domain/store.go
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// StockStore 是分配引擎依赖的库存存取接口，实现方必须把所有读取
// 绑定到外层事务并加行锁，保证并发分配在同一行上串行化。
type StockStore interface {
	// OpenReceiveItems 返回变体的所有仍有可分配余量的收货行，
	// 按父收货单创建时间升序(最早采购的排最前)，并锁定。
	OpenReceiveItems(ctx context.Context, variantID uint) ([]*ReceiveItem, error)

	ReceiveItemForUpdate(ctx context.Context, id uint) (*ReceiveItem, error)
	SaveReceiveItem(ctx context.Context, item *ReceiveItem) error

	// InventoryForUpdate 锁定并返回 (变体, 仓库) 的库存行；
	// 不存在时返回 ErrInventoryNotFound。
	InventoryForUpdate(ctx context.Context, variantID, warehouseID uint) (*InventoryRecord, error)

	// InventoriesForUpdate 锁定并返回变体在所有仓库的库存行。
	InventoriesForUpdate(ctx context.Context, variantID uint) ([]*InventoryRecord, error)

	SaveInventory(ctx context.Context, record *InventoryRecord) error

	AppendHistory(ctx context.Context, entry *HistoryEntry) error

	// AvailableQuantity 返回变体跨仓的可售总量(只读，不加锁)。
	AvailableQuantity(ctx context.Context, variantID uint) (int, error)

	// VariantCostPrice 返回变体的静态成本价，裸库存分配用它作单位成本。
	VariantCostPrice(ctx context.Context, variantID uint) (decimal.Decimal, error)
}
