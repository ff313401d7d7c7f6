// internal/service/inventory/application/allocator.go
package application

import (
	"context"
	"time"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/inventory/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Allocator 是库存分配引擎。所有方法都假定运行在调用方开启的事务里；
// 引擎本身不开事务，也不做幂等保护——同一份分配清单只释放一次
// 由订单侧的 released 标记保证。
type Allocator struct {
	store domain.StockStore
}

// NewAllocator 创建绑定到一个事务级 StockStore 的分配引擎。
func NewAllocator(store domain.StockStore) *Allocator {
	return &Allocator{store: store}
}

// Allocate 为变体分配 quantity 个库存。
//
// 先按收货批次 FIFO(最早采购的先出)消耗 QuantityAvailable，批次耗尽后
// 回退到不挂收货单的裸库存。每一步消耗都同步扣减库存行的 Available、
// 增加 OnTransaction，并写入一条审计流水。两轮之后仍有缺口则整体失败，
// 返回 ErrInsufficientStock，由外层事务回滚已做的改动。
func (a *Allocator) Allocate(ctx context.Context, variantID uint, quantity int, actorID uint) ([]domain.Allocation, error) {
	remaining := quantity
	allocations := make([]domain.Allocation, 0, 2)

	items, err := a.store.OpenReceiveItems(ctx, variantID)
	if err != nil {
		return nil, errors.Wrapf(err, "load open receive items for variant %d", variantID)
	}

	for _, item := range items {
		if remaining == 0 {
			break
		}
		take := item.QuantityAvailable
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}

		item.QuantityAvailable -= take
		if err := a.store.SaveReceiveItem(ctx, item); err != nil {
			return nil, errors.Wrapf(err, "decrement receive item %d", item.ID)
		}

		if err := a.reserve(ctx, variantID, item.WarehouseID, take, actorID); err != nil {
			return nil, err
		}

		receiveItemID := item.ID
		allocations = append(allocations, domain.Allocation{
			ReceiveItemID: &receiveItemID,
			WarehouseID:   item.WarehouseID,
			VariantID:     variantID,
			Quantity:      take,
			CostPrice:     item.FinalPrice,
		})
		remaining -= take
	}

	if remaining > 0 {
		// 批次耗尽，回退到手工调整入库的裸库存，用变体静态成本价计成本
		costPrice, err := a.store.VariantCostPrice(ctx, variantID)
		if err != nil {
			return nil, errors.Wrapf(err, "load cost price for variant %d", variantID)
		}

		records, err := a.store.InventoriesForUpdate(ctx, variantID)
		if err != nil {
			return nil, errors.Wrapf(err, "load inventories for variant %d", variantID)
		}
		for _, record := range records {
			if remaining == 0 {
				break
			}
			take := record.Available
			if take > remaining {
				take = remaining
			}
			if take <= 0 {
				continue
			}

			record.Available -= take
			record.OnTransaction += take
			if err := a.store.SaveInventory(ctx, record); err != nil {
				return nil, errors.Wrapf(err, "update inventory %d", record.ID)
			}
			if err := a.appendHistory(ctx, record, domain.ActionAllocate, -take, take, actorID); err != nil {
				return nil, err
			}

			allocations = append(allocations, domain.Allocation{
				WarehouseID: record.WarehouseID,
				VariantID:   variantID,
				Quantity:    take,
				CostPrice:   costPrice,
			})
			remaining -= take
		}
	}

	if remaining > 0 {
		logger.Ctx(ctx).Warn().
			Uint("variant_id", variantID).
			Int("demanded", quantity).
			Int("short", remaining).
			Msg("stock allocation cannot be satisfied")
		return nil, errors.Wrapf(domain.ErrInsufficientStock, "variant %d short by %d", variantID, remaining)
	}
	return allocations, nil
}

// reserve 在 (变体, 仓库) 的库存行上完成一次占用: Available→OnTransaction。
// 批次分配时找不到库存行说明数据已经不一致。
func (a *Allocator) reserve(ctx context.Context, variantID, warehouseID uint, take int, actorID uint) error {
	record, err := a.store.InventoryForUpdate(ctx, variantID, warehouseID)
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) {
			return errors.Wrapf(domain.ErrInventoryIntegrity,
				"no inventory record for variant %d in warehouse %d", variantID, warehouseID)
		}
		return errors.Wrap(err, "lock inventory record")
	}

	record.Available -= take
	record.OnTransaction += take
	if err := a.store.SaveInventory(ctx, record); err != nil {
		return errors.Wrapf(err, "update inventory %d", record.ID)
	}
	return a.appendHistory(ctx, record, domain.ActionAllocate, -take, take, actorID)
}

// Release 按分配清单原路归还: Available 加回、OnTransaction 减掉，
// 挂了收货单的分配同时把批次的 QuantityAvailable 加回。
// 释放本身不会因库存不足失败；找不到库存行是致命的完整性错误。
func (a *Allocator) Release(ctx context.Context, allocations []domain.Allocation, actorID uint) error {
	for _, alloc := range allocations {
		record, err := a.store.InventoryForUpdate(ctx, alloc.VariantID, alloc.WarehouseID)
		if err != nil {
			if errors.Is(err, domain.ErrInventoryNotFound) {
				return errors.Wrapf(domain.ErrInventoryIntegrity,
					"release: no inventory record for variant %d in warehouse %d", alloc.VariantID, alloc.WarehouseID)
			}
			return errors.Wrap(err, "lock inventory record")
		}

		record.Available += alloc.Quantity
		record.OnTransaction -= alloc.Quantity
		if err := a.store.SaveInventory(ctx, record); err != nil {
			return errors.Wrapf(err, "update inventory %d", record.ID)
		}
		if err := a.appendHistory(ctx, record, domain.ActionRelease, alloc.Quantity, -alloc.Quantity, actorID); err != nil {
			return err
		}

		if alloc.ReceiveItemID != nil {
			item, err := a.store.ReceiveItemForUpdate(ctx, *alloc.ReceiveItemID)
			if err != nil {
				return errors.Wrapf(err, "lock receive item %d", *alloc.ReceiveItemID)
			}
			item.QuantityAvailable += alloc.Quantity
			if err := a.store.SaveReceiveItem(ctx, item); err != nil {
				return errors.Wrapf(err, "restore receive item %d", item.ID)
			}
		}
	}
	return nil
}

// Dispatch 在发货确认时扣减实物库存 OnHand。
func (a *Allocator) Dispatch(ctx context.Context, allocations []domain.Allocation, actorID uint) error {
	for _, alloc := range allocations {
		record, err := a.lockRecord(ctx, alloc)
		if err != nil {
			return err
		}
		record.OnHand -= alloc.Quantity
		if err := a.store.SaveInventory(ctx, record); err != nil {
			return errors.Wrapf(err, "update inventory %d", record.ID)
		}
		entry := a.newHistory(record, domain.ActionDispatch, actorID)
		entry.OnHandDelta = -alloc.Quantity
		entry.OnHandAfter = record.OnHand
		if err := a.store.AppendHistory(ctx, entry); err != nil {
			return errors.Wrap(err, "append inventory history")
		}
	}
	return nil
}

// Settle 在支付确认后解除占用: 交易已结算，OnTransaction 不再需要。
// 注意结算不归还 Available——货已经卖掉了。
func (a *Allocator) Settle(ctx context.Context, allocations []domain.Allocation, actorID uint) error {
	for _, alloc := range allocations {
		record, err := a.lockRecord(ctx, alloc)
		if err != nil {
			return err
		}
		record.OnTransaction -= alloc.Quantity
		if err := a.store.SaveInventory(ctx, record); err != nil {
			return errors.Wrapf(err, "update inventory %d", record.ID)
		}
		if err := a.appendHistory(ctx, record, domain.ActionSettle, 0, -alloc.Quantity, actorID); err != nil {
			return err
		}
	}
	return nil
}

// Cancel 处理管理员取消订单的库存侧动作。
// restock=false 只解除占用；restock=true 把 Available 加回，
// 订单已发货(dispatched)时连 OnHand 一起加回，并归还收货批次余量。
func (a *Allocator) Cancel(ctx context.Context, allocations []domain.Allocation, restock, dispatched bool, actorID uint) error {
	action := domain.ActionCancel
	if restock {
		action = domain.ActionCancelRestock
	}
	for _, alloc := range allocations {
		record, err := a.lockRecord(ctx, alloc)
		if err != nil {
			return err
		}

		record.OnTransaction -= alloc.Quantity
		entry := a.newHistory(record, action, actorID)
		entry.OnTransactionDelta = -alloc.Quantity

		if restock {
			record.Available += alloc.Quantity
			entry.AvailableDelta = alloc.Quantity
			if dispatched {
				record.OnHand += alloc.Quantity
				entry.OnHandDelta = alloc.Quantity
			}
		}
		entry.OnTransactionAfter = record.OnTransaction
		entry.AvailableAfter = record.Available
		entry.OnHandAfter = record.OnHand
		entry.OnReceiveAfter = record.OnReceive

		if err := a.store.SaveInventory(ctx, record); err != nil {
			return errors.Wrapf(err, "update inventory %d", record.ID)
		}
		if err := a.store.AppendHistory(ctx, entry); err != nil {
			return errors.Wrap(err, "append inventory history")
		}

		if restock && alloc.ReceiveItemID != nil {
			item, err := a.store.ReceiveItemForUpdate(ctx, *alloc.ReceiveItemID)
			if err != nil {
				return errors.Wrapf(err, "lock receive item %d", *alloc.ReceiveItemID)
			}
			item.QuantityAvailable += alloc.Quantity
			if err := a.store.SaveReceiveItem(ctx, item); err != nil {
				return errors.Wrapf(err, "restore receive item %d", item.ID)
			}
		}
	}
	return nil
}

func (a *Allocator) lockRecord(ctx context.Context, alloc domain.Allocation) (*domain.InventoryRecord, error) {
	record, err := a.store.InventoryForUpdate(ctx, alloc.VariantID, alloc.WarehouseID)
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) {
			return nil, errors.Wrapf(domain.ErrInventoryIntegrity,
				"no inventory record for variant %d in warehouse %d", alloc.VariantID, alloc.WarehouseID)
		}
		return nil, errors.Wrap(err, "lock inventory record")
	}
	return record, nil
}

// appendHistory 写入一条 Available/OnTransaction 双增量的审计流水。
func (a *Allocator) appendHistory(ctx context.Context, record *domain.InventoryRecord, action domain.Action, availableDelta, onTransactionDelta int, actorID uint) error {
	entry := a.newHistory(record, action, actorID)
	entry.AvailableDelta = availableDelta
	entry.AvailableAfter = record.Available
	entry.OnTransactionDelta = onTransactionDelta
	entry.OnTransactionAfter = record.OnTransaction
	if err := a.store.AppendHistory(ctx, entry); err != nil {
		return errors.Wrap(err, "append inventory history")
	}
	return nil
}

func (a *Allocator) newHistory(record *domain.InventoryRecord, action domain.Action, actorID uint) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:                 uuid.New().String(),
		VariantID:          record.VariantID,
		WarehouseID:        record.WarehouseID,
		TransactionType:    domain.TransactionTypeOrder,
		Action:             action,
		OnHandAfter:        record.OnHand,
		AvailableAfter:     record.Available,
		OnTransactionAfter: record.OnTransaction,
		OnReceiveAfter:     record.OnReceive,
		ActorID:            actorID,
		CreatedAt:          time.Now(),
	}
}
