// internal/service/inventory/domain/inventory.go
package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientStock 表示收货批次和裸库存加起来都不够覆盖需求。
	// 这是业务失败，整个外层事务必须回滚，不允许部分分配落库。
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInventoryIntegrity 表示库存数据自身不一致(比如释放时找不到
	// 对应的库存行)。这说明此前某处已经破坏了不变量，必须告警处理。
	ErrInventoryIntegrity = errors.New("inventory integrity violation")

	ErrInventoryNotFound = errors.New("inventory record not found")
)

// InventoryRecord 是 (变体, 仓库) 维度的库存计数。
// 不变量: OnHand >= Available；四个计数器的每次变动都必须
// 在同一事务内写入一条 HistoryEntry。
type InventoryRecord struct {
	ID          uint
	VariantID   uint
	WarehouseID uint
	// OnHand 实物在库数量
	OnHand int
	// Available 可售数量(未被任何订单占用)
	Available int
	// OnTransaction 被未结算订单占用的数量
	OnTransaction int
	// OnReceive 采购在途、尚未入库的数量
	OnReceive int
}

// ReceiveItem 是一张采购/收货单的一行，FIFO 成本追踪的最小单元。
// 不变量: QuantityAvailable <= QuantityReceived。
type ReceiveItem struct {
	ID          uint
	ReceiveID   uint
	WarehouseID uint
	VariantID   uint
	// QuantityAvailable 仍可分配给未来订单的数量
	QuantityAvailable int
	QuantityReceived  int
	// QuantityRemain 尚未实际入库的数量
	QuantityRemain int
	// FinalPrice 含杂费的到岸单位成本
	FinalPrice decimal.Decimal
	// ReceivedOn 取父收货单的创建时间，是 FIFO 排序键
	ReceivedOn time.Time
}

// Allocation 是一次库存分配的结果记录。
// ReceiveItemID 为 nil 表示消耗的是不挂收货单的裸库存(手工调整入库)。
type Allocation struct {
	ReceiveItemID *uint
	WarehouseID   uint
	VariantID     uint
	Quantity      int
	CostPrice     decimal.Decimal
}

// TransactionType 标记库存变动所属的业务场景。
type TransactionType string

const (
	TransactionTypeOrder      TransactionType = "ORDER"
	TransactionTypeReceive    TransactionType = "RECEIVE"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// Action 标记库存变动的具体动作。
type Action string

const (
	ActionAllocate      Action = "ALLOCATE"
	ActionRelease       Action = "RELEASE"
	ActionDispatch      Action = "DISPATCH"
	ActionSettle        Action = "SETTLE"
	ActionCancel        Action = "CANCEL"
	ActionCancelRestock Action = "CANCEL_RESTOCK"
)

// HistoryEntry 是库存审计流水，记录每个计数器的增量和变动后的新值。
type HistoryEntry struct {
	ID              string
	VariantID       uint
	WarehouseID     uint
	TransactionType TransactionType
	Action          Action

	OnHandDelta        int
	OnHandAfter        int
	AvailableDelta     int
	AvailableAfter     int
	OnTransactionDelta int
	OnTransactionAfter int
	OnReceiveDelta     int
	OnReceiveAfter     int

	// ActorID 是触发变动的操作人，仅用于审计归属
	ActorID   uint
	CreatedAt time.Time
}
