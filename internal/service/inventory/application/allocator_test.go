// internal/service/inventory/application/allocator_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/service/inventory/domain"
)

// fakeStockStore 内存版 StockStore，收货行按 ReceivedOn 升序预先排好。
type fakeStockStore struct {
	items       []*domain.ReceiveItem
	inventories []*domain.InventoryRecord
	history     []*domain.HistoryEntry
	costPrices  map[uint]decimal.Decimal
}

func (f *fakeStockStore) OpenReceiveItems(_ context.Context, variantID uint) ([]*domain.ReceiveItem, error) {
	var out []*domain.ReceiveItem
	for _, item := range f.items {
		if item.VariantID == variantID && item.QuantityAvailable > 0 {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStockStore) ReceiveItemForUpdate(_ context.Context, id uint) (*domain.ReceiveItem, error) {
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrInventoryIntegrity, "receive item %d vanished", id)
}

func (f *fakeStockStore) SaveReceiveItem(_ context.Context, _ *domain.ReceiveItem) error {
	return nil
}

func (f *fakeStockStore) InventoryForUpdate(_ context.Context, variantID, warehouseID uint) (*domain.InventoryRecord, error) {
	for _, record := range f.inventories {
		if record.VariantID == variantID && record.WarehouseID == warehouseID {
			return record, nil
		}
	}
	return nil, domain.ErrInventoryNotFound
}

func (f *fakeStockStore) InventoriesForUpdate(_ context.Context, variantID uint) ([]*domain.InventoryRecord, error) {
	var out []*domain.InventoryRecord
	for _, record := range f.inventories {
		if record.VariantID == variantID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeStockStore) SaveInventory(_ context.Context, _ *domain.InventoryRecord) error {
	return nil
}

func (f *fakeStockStore) AppendHistory(_ context.Context, entry *domain.HistoryEntry) error {
	f.history = append(f.history, entry)
	return nil
}

func (f *fakeStockStore) AvailableQuantity(_ context.Context, variantID uint) (int, error) {
	total := 0
	for _, record := range f.inventories {
		if record.VariantID == variantID {
			total += record.Available
		}
	}
	return total, nil
}

func (f *fakeStockStore) VariantCostPrice(_ context.Context, variantID uint) (decimal.Decimal, error) {
	return f.costPrices[variantID], nil
}

func receiveItem(id uint, available int, price string, receivedDaysAgo int) *domain.ReceiveItem {
	return &domain.ReceiveItem{
		ID:                id,
		ReceiveID:         id + 100,
		WarehouseID:       1,
		VariantID:         7,
		QuantityAvailable: available,
		QuantityReceived:  available,
		FinalPrice:        decimal.RequireFromString(price),
		ReceivedOn:        time.Now().Add(-time.Duration(receivedDaysAgo) * 24 * time.Hour),
	}
}

func TestAllocateFIFOAcrossBatches(t *testing.T) {
	store := &fakeStockStore{
		items: []*domain.ReceiveItem{
			receiveItem(1, 5, "1000", 10),
			receiveItem(2, 20, "1200", 3),
		},
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 25, Available: 25},
		},
	}
	allocator := NewAllocator(store)

	allocations, err := allocator.Allocate(context.Background(), 7, 8, 99)
	require.NoError(t, err)
	require.Len(t, allocations, 2)

	assert.Equal(t, 5, allocations[0].Quantity)
	assert.Equal(t, uint(1), *allocations[0].ReceiveItemID)
	assert.True(t, allocations[0].CostPrice.Equal(decimal.RequireFromString("1000")))

	assert.Equal(t, 3, allocations[1].Quantity)
	assert.Equal(t, uint(2), *allocations[1].ReceiveItemID)
	assert.True(t, allocations[1].CostPrice.Equal(decimal.RequireFromString("1200")))

	// 最早批次耗尽，次早批次留 17
	assert.Equal(t, 0, store.items[0].QuantityAvailable)
	assert.Equal(t, 17, store.items[1].QuantityAvailable)

	// 库存行: 可售 25-8，占用 +8，实物不动
	assert.Equal(t, 17, store.inventories[0].Available)
	assert.Equal(t, 8, store.inventories[0].OnTransaction)
	assert.Equal(t, 25, store.inventories[0].OnHand)

	require.Len(t, store.history, 2)
	for _, entry := range store.history {
		assert.Equal(t, domain.ActionAllocate, entry.Action)
		assert.Equal(t, domain.TransactionTypeOrder, entry.TransactionType)
		assert.Equal(t, uint(99), entry.ActorID)
	}
	assert.Equal(t, -5, store.history[0].AvailableDelta)
	assert.Equal(t, -3, store.history[1].AvailableDelta)
	assert.Equal(t, 8, store.history[1].OnTransactionAfter)
}

func TestAllocateFallsBackToRawInventory(t *testing.T) {
	store := &fakeStockStore{
		items: []*domain.ReceiveItem{
			receiveItem(1, 2, "1000", 5),
		},
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 10, Available: 10},
		},
		costPrices: map[uint]decimal.Decimal{7: decimal.RequireFromString("950")},
	}
	allocator := NewAllocator(store)

	allocations, err := allocator.Allocate(context.Background(), 7, 6, 1)
	require.NoError(t, err)
	require.Len(t, allocations, 2)

	assert.NotNil(t, allocations[0].ReceiveItemID)
	assert.Equal(t, 2, allocations[0].Quantity)

	// 裸库存分配不挂收货行，成本取变体静态成本价
	assert.Nil(t, allocations[1].ReceiveItemID)
	assert.Equal(t, 4, allocations[1].Quantity)
	assert.True(t, allocations[1].CostPrice.Equal(decimal.RequireFromString("950")))

	assert.Equal(t, 4, store.inventories[0].Available)
	assert.Equal(t, 6, store.inventories[0].OnTransaction)
}

func TestAllocateInsufficientStock(t *testing.T) {
	store := &fakeStockStore{
		items: []*domain.ReceiveItem{
			receiveItem(1, 3, "1000", 1),
		},
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 4, Available: 4},
		},
		costPrices: map[uint]decimal.Decimal{7: decimal.RequireFromString("950")},
	}
	allocator := NewAllocator(store)

	allocations, err := allocator.Allocate(context.Background(), 7, 10, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.Nil(t, allocations)
}

func TestAllocateMissingInventoryRowIsIntegrityError(t *testing.T) {
	store := &fakeStockStore{
		items: []*domain.ReceiveItem{
			receiveItem(1, 5, "1000", 1),
		},
	}
	allocator := NewAllocator(store)

	_, err := allocator.Allocate(context.Background(), 7, 3, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInventoryIntegrity))
}

func TestReleaseInverseWalk(t *testing.T) {
	store := &fakeStockStore{
		items: []*domain.ReceiveItem{
			receiveItem(1, 5, "1000", 10),
			receiveItem(2, 20, "1200", 3),
		},
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 25, Available: 25},
		},
	}
	allocator := NewAllocator(store)

	allocations, err := allocator.Allocate(context.Background(), 7, 8, 1)
	require.NoError(t, err)

	require.NoError(t, allocator.Release(context.Background(), allocations, 1))

	assert.Equal(t, 25, store.inventories[0].Available)
	assert.Equal(t, 0, store.inventories[0].OnTransaction)
	assert.Equal(t, 5, store.items[0].QuantityAvailable)
	assert.Equal(t, 20, store.items[1].QuantityAvailable)

	// 2 条分配 + 2 条释放
	require.Len(t, store.history, 4)
	assert.Equal(t, domain.ActionRelease, store.history[2].Action)
	assert.Equal(t, 5, store.history[2].AvailableDelta)
	assert.Equal(t, -5, store.history[2].OnTransactionDelta)
}

func TestSettleDropsOnTransactionOnly(t *testing.T) {
	store := &fakeStockStore{
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 10, Available: 2, OnTransaction: 8},
		},
	}
	allocator := NewAllocator(store)

	allocations := []domain.Allocation{{WarehouseID: 1, VariantID: 7, Quantity: 8}}
	require.NoError(t, allocator.Settle(context.Background(), allocations, 1))

	// 结算只解除占用，不归还可售量
	assert.Equal(t, 2, store.inventories[0].Available)
	assert.Equal(t, 0, store.inventories[0].OnTransaction)
	assert.Equal(t, 10, store.inventories[0].OnHand)
	require.Len(t, store.history, 1)
	assert.Equal(t, domain.ActionSettle, store.history[0].Action)
}

func TestDispatchDecrementsOnHand(t *testing.T) {
	store := &fakeStockStore{
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 10, Available: 2, OnTransaction: 8},
		},
	}
	allocator := NewAllocator(store)

	allocations := []domain.Allocation{{WarehouseID: 1, VariantID: 7, Quantity: 8}}
	require.NoError(t, allocator.Dispatch(context.Background(), allocations, 1))

	assert.Equal(t, 2, store.inventories[0].OnHand)
	assert.Equal(t, 8, store.inventories[0].OnTransaction)
	require.Len(t, store.history, 1)
	assert.Equal(t, domain.ActionDispatch, store.history[0].Action)
	assert.Equal(t, -8, store.history[0].OnHandDelta)
}

func TestCancelWithRestock(t *testing.T) {
	itemID := uint(1)
	store := &fakeStockStore{
		items: []*domain.ReceiveItem{
			receiveItem(1, 0, "1000", 5),
		},
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 10, Available: 5, OnTransaction: 5},
		},
	}
	allocator := NewAllocator(store)

	allocations := []domain.Allocation{{ReceiveItemID: &itemID, WarehouseID: 1, VariantID: 7, Quantity: 5}}
	require.NoError(t, allocator.Cancel(context.Background(), allocations, true, false, 1))

	assert.Equal(t, 10, store.inventories[0].Available)
	assert.Equal(t, 0, store.inventories[0].OnTransaction)
	assert.Equal(t, 10, store.inventories[0].OnHand)
	assert.Equal(t, 5, store.items[0].QuantityAvailable)
	require.Len(t, store.history, 1)
	assert.Equal(t, domain.ActionCancelRestock, store.history[0].Action)
}

func TestCancelDispatchedRestoresOnHand(t *testing.T) {
	store := &fakeStockStore{
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 5, Available: 5, OnTransaction: 5},
		},
	}
	allocator := NewAllocator(store)

	allocations := []domain.Allocation{{WarehouseID: 1, VariantID: 7, Quantity: 5}}
	require.NoError(t, allocator.Cancel(context.Background(), allocations, true, true, 1))

	assert.Equal(t, 10, store.inventories[0].Available)
	assert.Equal(t, 10, store.inventories[0].OnHand)
	assert.Equal(t, 0, store.inventories[0].OnTransaction)
}

func TestCancelWithoutRestock(t *testing.T) {
	store := &fakeStockStore{
		inventories: []*domain.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 10, Available: 5, OnTransaction: 5},
		},
	}
	allocator := NewAllocator(store)

	allocations := []domain.Allocation{{WarehouseID: 1, VariantID: 7, Quantity: 5}}
	require.NoError(t, allocator.Cancel(context.Background(), allocations, false, false, 1))

	// 不回库: 可售量不变，只解除占用
	assert.Equal(t, 5, store.inventories[0].Available)
	assert.Equal(t, 0, store.inventories[0].OnTransaction)
	assert.Equal(t, domain.ActionCancel, store.history[0].Action)
}
