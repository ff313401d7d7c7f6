// internal/service/order/domain/events.go
package domain

import "time"

// EventKind 标记订单生命周期事件的类型。
type EventKind string

const (
	EventCreated           EventKind = "CREATED"
	EventCheckedOut        EventKind = "CHECKED_OUT"
	EventVoucherApplied    EventKind = "VOUCHER_APPLIED"
	EventDeliveryConfirmed EventKind = "DELIVERY_CONFIRMED"
	EventPaymentConfirmed  EventKind = "PAYMENT_CONFIRMED"
	EventCancelled         EventKind = "CANCELLED"
	EventDeleted           EventKind = "DELETED"
)

// Event 是订单的生命周期流水，只追加不修改。
type Event struct {
	ID        string
	OrderID   uint
	Kind      EventKind
	Note      string
	ActorID   uint
	CreatedAt time.Time
}
