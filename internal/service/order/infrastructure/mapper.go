// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"atlas/internal/service/order/domain"
)

func toDomainOrder(m *OrderModel) *domain.Order {
	order := &domain.Order{
		ID:                  m.ID,
		Code:                m.Code,
		CustomerID:          m.CustomerID,
		Status:              domain.Status(m.Status),
		TransactionStatus:   domain.TransactionStatus(m.TransactionStatus),
		Void:                m.Void,
		TotalBeforeDiscount: m.TotalBeforeDiscount,
		DiscountAmount:      m.DiscountAmount,
		Total:               m.Total,
		Email:               m.Email,
		Phone:               m.Phone,
		ShippingAddress:     m.ShippingAddress,
		PaymentMethod:       m.PaymentMethod,
		PayOSCode:           m.PayOSCode,
		Expire:              m.Expire,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}

	lineDiscounts := make(map[uint][]domain.AppliedDiscount)
	for _, d := range m.Discounts {
		applied := domain.AppliedDiscount{
			ID:         d.ID,
			DiscountID: d.DiscountID,
			Title:      d.Title,
			Amount:     d.Amount,
		}
		if d.LineID == nil {
			order.Discounts = append(order.Discounts, applied)
		} else {
			lineDiscounts[*d.LineID] = append(lineDiscounts[*d.LineID], applied)
		}
	}

	for i := range m.Lines {
		lm := &m.Lines[i]
		line := &domain.Line{
			ID:              lm.ID,
			VariantID:       lm.VariantID,
			ProductID:       lm.ProductID,
			Quantity:        lm.Quantity,
			UnitPrice:       lm.UnitPrice,
			Subtotal:        lm.Subtotal,
			DiscountAmount:  lm.DiscountAmount,
			DiscountPercent: lm.DiscountPercent.IntPart(),
			Total:           lm.Total,
			Discounts:       lineDiscounts[lm.ID],
		}
		for _, sm := range lm.Sources {
			line.Sources = append(line.Sources, domain.Source{
				ID:            sm.ID,
				ReceiveItemID: sm.ReceiveItemID,
				WarehouseID:   sm.WarehouseID,
				Quantity:      sm.Quantity,
				CostPrice:     sm.CostPrice,
				Released:      sm.Released,
			})
		}
		order.Lines = append(order.Lines, line)
	}

	for _, vm := range m.Vouchers {
		order.Vouchers = append(order.Vouchers, domain.AppliedVoucher{
			ID:         vm.ID,
			DiscountID: vm.DiscountID,
			CustomerID: vm.CustomerID,
			Code:       vm.Code,
			Amount:     vm.Amount,
			CreatedAt:  vm.CreatedAt,
		})
	}

	for _, em := range m.Events {
		order.Events = append(order.Events, domain.Event{
			ID:        em.ID,
			OrderID:   em.OrderID,
			Kind:      domain.EventKind(em.Kind),
			Note:      em.Note,
			ActorID:   em.ActorID,
			CreatedAt: em.CreatedAt,
		})
	}
	return order
}

func toOrderModel(o *domain.Order) *OrderModel {
	model := &OrderModel{
		Code:                o.Code,
		CustomerID:          o.CustomerID,
		Status:              string(o.Status),
		TransactionStatus:   string(o.TransactionStatus),
		Void:                o.Void,
		TotalBeforeDiscount: o.TotalBeforeDiscount,
		DiscountAmount:      o.DiscountAmount,
		Total:               o.Total,
		Email:               o.Email,
		Phone:               o.Phone,
		ShippingAddress:     o.ShippingAddress,
		PaymentMethod:       o.PaymentMethod,
		PayOSCode:           o.PayOSCode,
		Expire:              o.Expire,
	}
	model.ID = o.ID
	return model
}
