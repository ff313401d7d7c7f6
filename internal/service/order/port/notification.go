// internal/service/order/port/notification.go
package port

import (
	"context"

	"atlas/internal/service/order/domain"
)

// NotificationProducer 是订单通知的出站端口。
// 所有发送都是 fire-and-forget: 失败只记日志，绝不回滚触发它的事务。
type NotificationProducer interface {
	// SendOrderConfirmation 发送订单确认通知(结账完成后)。
	SendOrderConfirmation(ctx context.Context, order *domain.Order) error

	// SendDeliveryNotification 发送发货通知。
	SendDeliveryNotification(ctx context.Context, order *domain.Order) error
}
