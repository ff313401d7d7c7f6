package adapter

import (
	"context"

	"github.com/pkg/errors"

	"atlas/internal/pkg/httpclient"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/port"
)

// PaymentHTTPAdapter 实现了 port.PaymentGateway 接口。
// 网关是黑盒: 这里只负责创建待支付链接，支付结果走回调进来。
type PaymentHTTPAdapter struct {
	client   *httpclient.Client
	endpoint string
}

// NewPaymentHTTPAdapter 创建一个新的支付网关适配器。
func NewPaymentHTTPAdapter(client *httpclient.Client, endpoint string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, endpoint: endpoint}
}

type createLinkRequest struct {
	OrderCode string `json:"orderCode"`
	Amount    string `json:"amount"`
	Email     string `json:"buyerEmail,omitempty"`
}

type createLinkResponse struct {
	PaymentCode string `json:"paymentCode"`
	CheckoutURL string `json:"checkoutUrl"`
}

// CreatePaymentLink 调用网关创建待支付链接。
func (a *PaymentHTTPAdapter) CreatePaymentLink(ctx context.Context, order *domain.Order) (*port.PaymentLink, error) {
	if order.Code == nil {
		return nil, errors.New("payment link requires a checked out order")
	}
	req := createLinkRequest{
		OrderCode: *order.Code,
		Amount:    order.Total.String(),
		Email:     order.Email,
	}
	var resp createLinkResponse
	if err := a.client.PostJSON(ctx, a.endpoint, req, &resp); err != nil {
		return nil, errors.Wrap(err, "create payment link")
	}
	return &port.PaymentLink{Code: resp.PaymentCode, URL: resp.CheckoutURL}, nil
}
