package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"atlas/internal/pkg/mq"
	"atlas/internal/service/order/domain"
)

// NotificationEvent 是发到通知主题的消息体，推送网关按原样广播。
type NotificationEvent struct {
	OrderID    uint      `json:"orderId"`
	OrderCode  string    `json:"orderCode,omitempty"`
	CustomerID uint      `json:"customerId"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	Total      string    `json:"total"`
	SentAt     time.Time `json:"sentAt"`
}

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// SendOrderConfirmation 发送订单确认通知。
func (a *NotificationKafkaAdapter) SendOrderConfirmation(ctx context.Context, order *domain.Order) error {
	code := ""
	if order.Code != nil {
		code = *order.Code
	}
	return a.produce(ctx, order, NotificationEvent{
		OrderID:    order.ID,
		OrderCode:  code,
		CustomerID: order.CustomerID,
		Kind:       "ORDER_CONFIRMATION",
		Message:    fmt.Sprintf("Order %s confirmed, total %s.", code, order.Total),
		Total:      order.Total.String(),
		SentAt:     time.Now(),
	})
}

// SendDeliveryNotification 发送发货通知。
func (a *NotificationKafkaAdapter) SendDeliveryNotification(ctx context.Context, order *domain.Order) error {
	code := ""
	if order.Code != nil {
		code = *order.Code
	}
	return a.produce(ctx, order, NotificationEvent{
		OrderID:    order.ID,
		OrderCode:  code,
		CustomerID: order.CustomerID,
		Kind:       "ORDER_DELIVERED",
		Message:    fmt.Sprintf("Order %s has been dispatched.", code),
		Total:      order.Total.String(),
		SentAt:     time.Now(),
	})
}

func (a *NotificationKafkaAdapter) produce(ctx context.Context, order *domain.Order, event NotificationEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}
	// mq.ProduceMessage 会自动注入追踪上下文
	key := []byte(fmt.Sprintf("%d", order.ID))
	return mq.ProduceMessage(ctx, a.writer, key, eventBytes)
}

// Close 关闭底层的Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
