// internal/service/inventory/infrastructure/gorm_store.go
package infrastructure

import (
	stderrors "errors"

	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"atlas/internal/service/inventory/domain"
)

// GormStockStore 基于 gorm 的库存存储实现。
// 所有 ForUpdate 方法都依赖 SELECT ... FOR UPDATE 行锁，
// 必须运行在外层事务里(通过 WithTx 注入)。
type GormStockStore struct {
	db *gorm.DB
}

func NewGormStockStore(db *gorm.DB) *GormStockStore {
	return &GormStockStore{db: db}
}

// WithTx 返回一个绑定到事务句柄的副本。
func (s *GormStockStore) WithTx(tx *gorm.DB) *GormStockStore {
	return &GormStockStore{db: tx}
}

// OpenReceiveItems 按收货单头创建时间升序锁定变体的所有未耗尽收货行。
func (s *GormStockStore) OpenReceiveItems(ctx context.Context, variantID uint) ([]*domain.ReceiveItem, error) {
	var models []ReceiveItemModel
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Joins("JOIN receive_inventories ri ON ri.id = receive_items.receive_id").
		Where("receive_items.variant_id = ? AND receive_items.quantity_available > 0", variantID).
		Order("ri.created_at asc, receive_items.id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query open receive items")
	}
	items := make([]*domain.ReceiveItem, 0, len(models))
	for i := range models {
		items = append(items, toDomainReceiveItem(&models[i]))
	}
	return items, nil
}

// ReceiveItemForUpdate 锁定并返回单条收货行。
func (s *GormStockStore) ReceiveItemForUpdate(ctx context.Context, receiveItemID uint) (*domain.ReceiveItem, error) {
	var model ReceiveItemModel
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, receiveItemID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrInventoryIntegrity, "receive item %d vanished", receiveItemID)
		}
		return nil, errors.Wrap(err, "lock receive item")
	}
	return toDomainReceiveItem(&model), nil
}

func (s *GormStockStore) SaveReceiveItem(ctx context.Context, item *domain.ReceiveItem) error {
	err := s.db.WithContext(ctx).
		Model(&ReceiveItemModel{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"quantity_available": item.QuantityAvailable,
			"quantity_remain":    item.QuantityRemain,
		}).Error
	return errors.Wrap(err, "save receive item")
}

// InventoryForUpdate 锁定 (variant, warehouse) 的库存行。
// 行不存在时返回 domain.ErrInventoryNotFound，由调用方决定是报错还是回退。
func (s *GormStockStore) InventoryForUpdate(ctx context.Context, variantID, warehouseID uint) (*domain.InventoryRecord, error) {
	var model InventoryModel
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("variant_id = ? AND warehouse_id = ?", variantID, warehouseID).
		First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInventoryNotFound
		}
		return nil, errors.Wrap(err, "lock inventory")
	}
	return toDomainInventory(&model), nil
}

// InventoriesForUpdate 按变体锁定所有仓库的库存行，按 id 升序保证加锁顺序稳定。
func (s *GormStockStore) InventoriesForUpdate(ctx context.Context, variantID uint) ([]*domain.InventoryRecord, error) {
	var models []InventoryModel
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("variant_id = ?", variantID).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "lock inventories")
	}
	records := make([]*domain.InventoryRecord, 0, len(models))
	for i := range models {
		records = append(records, toDomainInventory(&models[i]))
	}
	return records, nil
}

func (s *GormStockStore) SaveInventory(ctx context.Context, record *domain.InventoryRecord) error {
	err := s.db.WithContext(ctx).
		Model(&InventoryModel{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"on_hand":        record.OnHand,
			"available":      record.Available,
			"on_transaction": record.OnTransaction,
			"on_receive":     record.OnReceive,
		}).Error
	return errors.Wrap(err, "save inventory")
}

func (s *GormStockStore) AppendHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	model := &InventoryHistoryModel{
		ID:                 entry.ID,
		VariantID:          entry.VariantID,
		WarehouseID:        entry.WarehouseID,
		TransactionType:    string(entry.TransactionType),
		Action:             string(entry.Action),
		OnHandDelta:        entry.OnHandDelta,
		OnHandAfter:        entry.OnHandAfter,
		AvailableDelta:     entry.AvailableDelta,
		AvailableAfter:     entry.AvailableAfter,
		OnTransactionDelta: entry.OnTransactionDelta,
		OnTransactionAfter: entry.OnTransactionAfter,
		OnReceiveDelta:     entry.OnReceiveDelta,
		OnReceiveAfter:     entry.OnReceiveAfter,
		ChangeUserID:       entry.ActorID,
		CreatedAt:          entry.CreatedAt,
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(model).Error, "append inventory history")
}

// AvailableQuantity 汇总变体在所有仓库的可售量，不加锁，仅供展示。
func (s *GormStockStore) AvailableQuantity(ctx context.Context, variantID uint) (int, error) {
	var total int
	err := s.db.WithContext(ctx).
		Model(&InventoryModel{}).
		Select("COALESCE(SUM(available), 0)").
		Where("variant_id = ?", variantID).
		Scan(&total).Error
	return total, errors.Wrap(err, "sum available quantity")
}

// VariantCostPrice 读取变体主数据上的成本价，供无批次回退分配使用。
func (s *GormStockStore) VariantCostPrice(ctx context.Context, variantID uint) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.db.WithContext(ctx).
		Table("variants").
		Select("cost_price").
		Where("id = ?", variantID).
		Scan(&price).Error
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "query variant cost price")
	}
	return price, nil
}

func toDomainInventory(m *InventoryModel) *domain.InventoryRecord {
	return &domain.InventoryRecord{
		ID:            m.ID,
		VariantID:     m.VariantID,
		WarehouseID:   m.WarehouseID,
		OnHand:        m.OnHand,
		Available:     m.Available,
		OnTransaction: m.OnTransaction,
		OnReceive:     m.OnReceive,
	}
}

func toDomainReceiveItem(m *ReceiveItemModel) *domain.ReceiveItem {
	return &domain.ReceiveItem{
		ID:                m.ID,
		ReceiveID:         m.ReceiveID,
		WarehouseID:       m.WarehouseID,
		VariantID:         m.VariantID,
		QuantityAvailable: m.QuantityAvailable,
		QuantityReceived:  m.QuantityReceived,
		QuantityRemain:    m.QuantityRemain,
		FinalPrice:        m.FinalPrice,
		ReceivedOn:        m.ReceivedOn,
	}
}
