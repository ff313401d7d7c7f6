// internal/service/order/application/dto.go
package application

import (
	"github.com/shopspring/decimal"

	"atlas/internal/service/order/domain"
)

// LineRequest 是建单请求中的一个商品行
type LineRequest struct {
	VariantID uint `json:"variantId"`
	Quantity  int  `json:"quantity"`
}

// CreateTempOrderRequest 是创建临时订单用例的输入数据
type CreateTempOrderRequest struct {
	CustomerID uint          `json:"customerId"`
	ActorID    uint          `json:"actorId"`
	Lines      []LineRequest `json:"lines"`
}

// CheckoutRequest 是结账用例的输入数据
type CheckoutRequest struct {
	OrderID         uint   `json:"orderId"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	ShippingAddress string `json:"shippingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
	ActorID         uint   `json:"actorId"`
}

// ApplyVoucherRequest 是核销券码用例的输入数据
type ApplyVoucherRequest struct {
	OrderID uint   `json:"orderId"`
	Code    string `json:"code"`
	ActorID uint   `json:"actorId"`
}

// OrderResponse 是订单聚合对外的快照
type OrderResponse struct {
	ID                  uint                     `json:"id"`
	Code                *string                  `json:"code,omitempty"`
	Status              domain.Status            `json:"status"`
	TransactionStatus   domain.TransactionStatus `json:"transactionStatus"`
	TotalBeforeDiscount decimal.Decimal          `json:"totalBeforeDiscount"`
	DiscountAmount      decimal.Decimal          `json:"discountAmount"`
	Total               decimal.Decimal          `json:"total"`
	Lines               []LineResponse           `json:"lines"`
	PaymentURL          string                   `json:"paymentUrl,omitempty"`
}

// LineResponse 是订单行对外的快照
type LineResponse struct {
	VariantID       uint            `json:"variantId"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	DiscountPercent int64           `json:"discountPercent"`
	Total           decimal.Decimal `json:"total"`
}

// ToOrderResponse 把订单聚合转换为对外快照
func ToOrderResponse(order *domain.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:                  order.ID,
		Code:                order.Code,
		Status:              order.Status,
		TransactionStatus:   order.TransactionStatus,
		TotalBeforeDiscount: order.TotalBeforeDiscount,
		DiscountAmount:      order.DiscountAmount,
		Total:               order.Total,
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			VariantID:       line.VariantID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			Subtotal:        line.Subtotal,
			DiscountAmount:  line.DiscountAmount,
			DiscountPercent: line.DiscountPercent,
			Total:           line.Total,
		})
	}
	return resp
}
