// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPendingPayment    Status = "PENDING_PAYMENT"    // 临时订单，带过期时间，尚未结账
	StatusPendingProcessing Status = "PENDING_PROCESSING" // 结账完成，已分配订单号
	StatusInTransit         Status = "IN_TRANSIT"         // 已发货，等待支付确认
	StatusComplete          Status = "COMPLETE"           // 发货和支付都已确认
	StatusCancel            Status = "CANCEL"             // 管理员取消
)

// TransactionStatus 定义了订单的支付状态
type TransactionStatus string

const (
	TransactionUnpaid TransactionStatus = "UNPAID"
	TransactionPaid   TransactionStatus = "PAID"
)
