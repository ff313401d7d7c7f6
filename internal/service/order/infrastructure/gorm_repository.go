// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"atlas/internal/service/order/domain"
)

// GormOrderRepository 是订单聚合的 gorm 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 返回一个绑定到事务句柄的副本。
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: tx}
}

// toOrderLineModel 构建行模型。来源行冗余一份 order_id，
// MarkSourcesReleased 和 HardDelete 都按订单维度过滤来源行。
func toOrderLineModel(line *domain.Line, orderID uint) OrderLineModel {
	lm := OrderLineModel{
		OrderID:         orderID,
		VariantID:       line.VariantID,
		ProductID:       line.ProductID,
		Quantity:        line.Quantity,
		UnitPrice:       line.UnitPrice,
		Subtotal:        line.Subtotal,
		DiscountAmount:  line.DiscountAmount,
		DiscountPercent: decimal.NewFromInt(line.DiscountPercent),
		Total:           line.Total,
	}
	for _, src := range line.Sources {
		lm.Sources = append(lm.Sources, OrderItemSourceModel{
			OrderID:       orderID,
			ReceiveItemID: src.ReceiveItemID,
			WarehouseID:   src.WarehouseID,
			Quantity:      src.Quantity,
			CostPrice:     src.CostPrice,
		})
	}
	return lm
}

// Create 落库整个聚合。先插订单头拿到主键，行和来源再带着
// order_id 插入，折扣归因等拿到行主键之后批量写入。
// 落库后回填所有生成的主键。
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	for _, event := range order.Events {
		model.Events = append(model.Events, OrderEventModel{
			ID:        event.ID,
			Kind:      string(event.Kind),
			Note:      event.Note,
			ActorID:   event.ActorID,
			CreatedAt: event.CreatedAt,
		})
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "create order")
	}

	lines := make([]OrderLineModel, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, toOrderLineModel(line, model.ID))
	}
	if len(lines) > 0 {
		if err := r.db.WithContext(ctx).Create(&lines).Error; err != nil {
			return errors.Wrap(err, "create order lines")
		}
	}

	var discounts []OrderDiscountModel
	for _, d := range order.Discounts {
		discounts = append(discounts, OrderDiscountModel{
			OrderID:    model.ID,
			DiscountID: d.DiscountID,
			Title:      d.Title,
			Amount:     d.Amount,
		})
	}
	for i, line := range order.Lines {
		lineID := lines[i].ID
		for _, d := range line.Discounts {
			id := lineID
			discounts = append(discounts, OrderDiscountModel{
				OrderID:    model.ID,
				LineID:     &id,
				DiscountID: d.DiscountID,
				Title:      d.Title,
				Amount:     d.Amount,
			})
		}
	}
	if len(discounts) > 0 {
		if err := r.db.WithContext(ctx).Create(&discounts).Error; err != nil {
			return errors.Wrap(err, "create order discounts")
		}
	}

	order.ID = model.ID
	for i := range order.Lines {
		order.Lines[i].ID = lines[i].ID
		for j := range order.Lines[i].Sources {
			order.Lines[i].Sources[j].ID = lines[i].Sources[j].ID
		}
	}
	return nil
}

// FindByID 加载完整聚合。
func (r *GormOrderRepository) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lines.Sources").
		Preload("Discounts").
		Preload("Vouchers").
		Preload("Events").
		First(&model, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "find order")
	}
	return toDomainOrder(&model), nil
}

// Save 回写订单头上的可变字段。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"code":                  order.Code,
			"status":                string(order.Status),
			"transaction_status":    string(order.TransactionStatus),
			"void":                  order.Void,
			"total_before_discount": order.TotalBeforeDiscount,
			"discount_amount":       order.DiscountAmount,
			"total":                 order.Total,
			"email":                 order.Email,
			"phone":                 order.Phone,
			"shipping_address":      order.ShippingAddress,
			"payment_method":        order.PaymentMethod,
			"pay_os_code":           order.PayOSCode,
		}).Error
	return errors.Wrap(err, "save order")
}

// SaveLine 回写订单行的总额字段。
func (r *GormOrderRepository) SaveLine(ctx context.Context, line *domain.Line) error {
	err := r.db.WithContext(ctx).
		Model(&OrderLineModel{}).
		Where("id = ?", line.ID).
		Updates(map[string]interface{}{
			"discount_amount":  line.DiscountAmount,
			"discount_percent": line.DiscountPercent,
			"total":            line.Total,
		}).Error
	return errors.Wrap(err, "save order line")
}

// ExpiredTempOrders 扫描已过期且尚未结账的临时订单。
func (r *GormOrderRepository) ExpiredTempOrders(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("code IS NULL AND expire < ?", now).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "scan expired orders")
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, toDomainOrder(&models[i]))
	}
	return orders, nil
}

// MarkSourcesReleased 条件更新把未释放的来源全部翻成已释放。
// 影响行数为 0 说明别的路径已经释放过，调用方必须跳过库存归还。
func (r *GormOrderRepository) MarkSourcesReleased(ctx context.Context, orderID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&OrderItemSourceModel{}).
		Where("order_id = ? AND released = ?", orderID, false).
		Update("released", true)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "mark sources released")
	}
	return result.RowsAffected > 0, nil
}

// ReplaceOrderDiscounts 整体替换单级折扣归因。
func (r *GormOrderRepository) ReplaceOrderDiscounts(ctx context.Context, orderID uint, discounts []domain.AppliedDiscount) error {
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND line_id IS NULL", orderID).
		Delete(&OrderDiscountModel{}).Error
	if err != nil {
		return errors.Wrap(err, "clear order discounts")
	}
	if len(discounts) == 0 {
		return nil
	}
	models := make([]OrderDiscountModel, 0, len(discounts))
	for _, d := range discounts {
		models = append(models, OrderDiscountModel{
			OrderID:    orderID,
			DiscountID: d.DiscountID,
			Title:      d.Title,
			Amount:     d.Amount,
		})
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(&models).Error, "insert order discounts")
}

// ReplaceLineDiscounts 整体替换某一行的折扣归因。
func (r *GormOrderRepository) ReplaceLineDiscounts(ctx context.Context, lineID uint, discounts []domain.AppliedDiscount) error {
	var lineModel OrderLineModel
	if err := r.db.WithContext(ctx).Select("order_id").First(&lineModel, lineID).Error; err != nil {
		return errors.Wrap(err, "load order line")
	}
	err := r.db.WithContext(ctx).
		Where("line_id = ?", lineID).
		Delete(&OrderDiscountModel{}).Error
	if err != nil {
		return errors.Wrap(err, "clear line discounts")
	}
	if len(discounts) == 0 {
		return nil
	}
	models := make([]OrderDiscountModel, 0, len(discounts))
	for _, d := range discounts {
		id := lineID
		models = append(models, OrderDiscountModel{
			OrderID:    lineModel.OrderID,
			LineID:     &id,
			DiscountID: d.DiscountID,
			Title:      d.Title,
			Amount:     d.Amount,
		})
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(&models).Error, "insert line discounts")
}

// AppendVoucher 记录一次券码核销。
func (r *GormOrderRepository) AppendVoucher(ctx context.Context, orderID uint, voucher *domain.AppliedVoucher) error {
	model := &OrderVoucherModel{
		OrderID:    orderID,
		DiscountID: voucher.DiscountID,
		CustomerID: voucher.CustomerID,
		Code:       voucher.Code,
		Amount:     voucher.Amount,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "append order voucher")
	}
	voucher.ID = model.ID
	return nil
}

// AppendEvent 追加一条生命周期流水。
func (r *GormOrderRepository) AppendEvent(ctx context.Context, event *domain.Event) error {
	model := &OrderEventModel{
		ID:        event.ID,
		OrderID:   event.OrderID,
		Kind:      string(event.Kind),
		Note:      event.Note,
		ActorID:   event.ActorID,
		CreatedAt: event.CreatedAt,
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(model).Error, "append order event")
}

// HardDelete 物理删除订单及其所有下属行。条件带 code IS NULL，
// 扫描和删除之间完成结账的订单不会被误删。
func (r *GormOrderRepository) HardDelete(ctx context.Context, orderID uint) error {
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("id = ? AND code IS NULL", orderID).
		Delete(&OrderModel{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete order")
	}
	if result.RowsAffected == 0 {
		return nil
	}
	for _, model := range []interface{}{
		&OrderItemSourceModel{}, &OrderLineModel{}, &OrderDiscountModel{},
		&OrderVoucherModel{}, &OrderEventModel{},
	} {
		if err := r.db.WithContext(ctx).Unscoped().Where("order_id = ?", orderID).Delete(model).Error; err != nil {
			return errors.Wrap(err, "delete order children")
		}
	}
	return nil
}
