// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryModel 对应 inventories 表，(variant_id, warehouse_id) 唯一。
// 库存行只增不删: 变体第一次入库某个仓库时惰性创建。
type InventoryModel struct {
	gorm.Model
	VariantID     uint `gorm:"uniqueIndex:idx_variant_warehouse"`
	WarehouseID   uint `gorm:"uniqueIndex:idx_variant_warehouse"`
	OnHand        int
	Available     int
	OnTransaction int
	OnReceive     int
}

func (InventoryModel) TableName() string {
	return "inventories"
}

// InventoryHistoryModel 对应 inventory_histories 表，只追加不修改。
type InventoryHistoryModel struct {
	ID              string `gorm:"primaryKey;size:36"`
	VariantID       uint   `gorm:"index"`
	WarehouseID     uint
	TransactionType string `gorm:"size:16"`
	Action          string `gorm:"size:20"`

	OnHandDelta        int
	OnHandAfter        int
	AvailableDelta     int
	AvailableAfter     int
	OnTransactionDelta int
	OnTransactionAfter int
	OnReceiveDelta     int
	OnReceiveAfter     int

	ChangeUserID uint
	CreatedAt    time.Time
}

func (InventoryHistoryModel) TableName() string {
	return "inventory_histories"
}

// ReceiveInventoryModel 对应 receive_inventories 表(收货单头)。
// CreatedAt 是下属所有收货行的 FIFO 排序键。
type ReceiveInventoryModel struct {
	gorm.Model
	Code        string `gorm:"size:32;uniqueIndex"`
	WarehouseID uint
	SupplierID  uint
	Items       []ReceiveItemModel `gorm:"foreignKey:ReceiveID"`
}

func (ReceiveInventoryModel) TableName() string {
	return "receive_inventories"
}

// ReceiveItemModel 对应 receive_items 表(收货单行)。
// ReceivedOn 冗余自收货单头的 CreatedAt，建了索引供 FIFO 扫描。
type ReceiveItemModel struct {
	gorm.Model
	ReceiveID         uint `gorm:"index"`
	WarehouseID       uint
	VariantID         uint `gorm:"index"`
	QuantityAvailable int
	QuantityReceived  int
	QuantityRemain    int
	FinalPrice        decimal.Decimal `gorm:"type:decimal(18,2)"`
	ReceivedOn        time.Time       `gorm:"index"`
}

func (ReceiveItemModel) TableName() string {
	return "receive_items"
}
