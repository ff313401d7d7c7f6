// internal/service/order/port/payment.go
package port

import (
	"context"

	"atlas/internal/service/order/domain"
)

// PaymentLink 是支付网关创建的待支付引用。
type PaymentLink struct {
	// Code 是网关侧的支付单号，回调时用它定位订单
	Code string
	URL  string
}

// PaymentGateway 是支付网关的出站端口。网关被当作黑盒:
// 成功回调触发确认收款语义，失败/取消回调只清除待支付引用，不动库存。
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, order *domain.Order) (*PaymentLink, error)
}
