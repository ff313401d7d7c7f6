// internal/service/order/application/service_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inventory "atlas/internal/service/inventory/domain"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/port"
	pricing "atlas/internal/service/pricing/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultStock() *fakeOrderStockStore {
	return &fakeOrderStockStore{
		items: []*inventory.ReceiveItem{
			{ID: 1, ReceiveID: 101, WarehouseID: 1, VariantID: 7, QuantityAvailable: 50,
				QuantityReceived: 50, FinalPrice: dec("60000"), ReceivedOn: time.Now().Add(-48 * time.Hour)},
		},
		inventories: []*inventory.InventoryRecord{
			{ID: 1, VariantID: 7, WarehouseID: 1, OnHand: 50, Available: 50},
		},
		costPrices: map[uint]decimal.Decimal{7: dec("60000")},
	}
}

func defaultCatalog() *fakeCatalog {
	return &fakeCatalog{variants: map[uint]*port.VariantInfo{
		7: {VariantID: 7, ProductID: 3, UnitPrice: dec("100000")},
	}}
}

func percentPromo(id uint, pct string, dtype pricing.Type, combinable bool) *pricing.Discount {
	d := &pricing.Discount{
		ID: id, Title: "promo", Mode: pricing.ModePromotion, Type: dtype,
		ValueType: pricing.ValueTypePercent, Value: dec(pct),
		Entitle: pricing.EntitleAll, Prerequisite: pricing.PrerequisiteNone,
		Active: true, StartOn: time.Now().Add(-time.Hour),
	}
	d.CombinesWithProductDiscount = combinable
	d.CombinesWithOrderDiscount = combinable
	return d
}

func TestCreateTempOrderPricesAndAllocates(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(
		percentPromo(1, "10", pricing.TypeProduct, true),
	))

	resp, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42, ActorID: 9,
		Lines: []LineRequest{{VariantID: 7, Quantity: 2}},
	})
	require.NoError(t, err)

	// 200000 的 10%，千元向下取整不受影响
	require.Len(t, resp.Lines, 1)
	assert.True(t, resp.Lines[0].Subtotal.Equal(dec("200000")))
	assert.True(t, resp.Lines[0].Total.Equal(dec("180000")))
	assert.True(t, resp.Total.Equal(dec("180000")))
	assert.Equal(t, domain.StatusPendingPayment, resp.Status)

	stored := env.orders.orders[resp.ID]
	require.NotNil(t, stored)
	assert.Nil(t, stored.Code)
	require.NotNil(t, stored.Expire)
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), *stored.Expire, time.Minute)

	// 库存: 批次扣 2，占用 +2
	assert.Equal(t, 48, env.stock.items[0].QuantityAvailable)
	assert.Equal(t, 48, env.stock.inventories[0].Available)
	assert.Equal(t, 2, env.stock.inventories[0].OnTransaction)
	require.Len(t, stored.Lines[0].Sources, 1)
	assert.Equal(t, 2, stored.Lines[0].Sources[0].Quantity)
	assert.True(t, stored.Lines[0].Sources[0].CostPrice.Equal(dec("60000")))
}

func TestCreateTempOrderInsufficientStockFails(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())

	_, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 51}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, inventory.ErrInsufficientStock))
	assert.Empty(t, env.orders.orders)
}

func TestCheckoutAssignsCodeAndNotifies(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	resp, err := env.service.Checkout(context.Background(), &CheckoutRequest{
		OrderID: created.ID, Email: "a@b.c", Phone: "0900", ShippingAddress: "somewhere",
		PaymentMethod: "COD", ActorID: 9,
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Code)
	assert.Regexp(t, `^ORD-\d{8}-[A-Z2-9]{6}$`, *resp.Code)
	assert.Equal(t, domain.StatusPendingProcessing, resp.Status)
	assert.Equal(t, "https://pay.example/1", resp.PaymentURL)
	assert.Equal(t, []uint{created.ID}, env.notifier.confirmations)

	stored := env.orders.orders[created.ID]
	assert.Equal(t, "a@b.c", stored.Email)
	require.NotNil(t, stored.PayOSCode)
	assert.Equal(t, "PAY-1", *stored.PayOSCode)
}

func TestCheckoutExpiredOrderRejected(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	env.orders.orders[created.ID].Expire = &past

	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOrderExpired))
	assert.Empty(t, env.notifier.confirmations)
}

func TestSweepExpiredRestoresStockAndVoucherUsage(t *testing.T) {
	voucher := &pricing.Discount{
		ID: 5, Title: "WELCOME", Mode: pricing.ModeCoupon, Type: pricing.TypeOrder,
		ValueType: pricing.ValueTypeValue, Value: dec("5000"),
		Entitle: pricing.EntitleAll, Active: true, StartOn: time.Now().Add(-time.Hour),
		Usage: 3,
	}
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(voucher))

	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, 47, env.stock.inventories[0].Available)

	stored := env.orders.orders[created.ID]
	past := time.Now().Add(-time.Minute)
	stored.Expire = &past
	stored.Vouchers = append(stored.Vouchers, domain.AppliedVoucher{DiscountID: 5, CustomerID: 42, Code: "WELCOME"})

	swept, err := env.service.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	// 订单物理删除，库存占用全部归还，券码使用计数回滚
	assert.Empty(t, env.orders.orders)
	assert.Equal(t, 50, env.stock.inventories[0].Available)
	assert.Equal(t, 0, env.stock.inventories[0].OnTransaction)
	assert.Equal(t, 50, env.stock.items[0].QuantityAvailable)
	assert.Equal(t, 2, voucher.Usage)

	// 再扫一遍是空操作
	swept, err = env.service.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.Equal(t, 50, env.stock.inventories[0].Available)
}

func TestSweepSkipsCheckedOutOrder(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.NoError(t, err)

	swept, err := env.service.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.Len(t, env.orders.orders, 1)
}

func TestConfirmDeliveryThenPaymentCompletes(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 2}},
	})
	require.NoError(t, err)
	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.NoError(t, err)

	require.NoError(t, env.service.ConfirmDelivery(context.Background(), created.ID, 9))
	stored := env.orders.orders[created.ID]
	assert.Equal(t, domain.StatusInTransit, stored.Status)
	// 发货扣实物在库量，占用保持
	assert.Equal(t, 48, env.stock.inventories[0].OnHand)
	assert.Equal(t, 2, env.stock.inventories[0].OnTransaction)
	assert.Equal(t, []uint{created.ID}, env.notifier.deliveries)

	require.NoError(t, env.service.ConfirmPayment(context.Background(), created.ID, 9))
	stored = env.orders.orders[created.ID]
	assert.Equal(t, domain.StatusComplete, stored.Status)
	assert.Equal(t, domain.TransactionPaid, stored.TransactionStatus)
	// 结算只解除占用，可售量不回来
	assert.Equal(t, 0, env.stock.inventories[0].OnTransaction)
	assert.Equal(t, 48, env.stock.inventories[0].Available)
}

func TestConfirmPaymentBeforeDeliveryStaysProcessing(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.NoError(t, err)

	require.NoError(t, env.service.ConfirmPayment(context.Background(), created.ID, 9))
	stored := env.orders.orders[created.ID]
	assert.Equal(t, domain.StatusPendingProcessing, stored.Status)
	assert.Equal(t, domain.TransactionPaid, stored.TransactionStatus)

	// 已支付的订单发货后直接完成
	require.NoError(t, env.service.ConfirmDelivery(context.Background(), created.ID, 9))
	assert.Equal(t, domain.StatusComplete, env.orders.orders[created.ID].Status)
}

func TestCancelWithoutRestockKeepsAvailable(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 4}},
	})
	require.NoError(t, err)
	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.NoError(t, err)

	require.NoError(t, env.service.CancelOrder(context.Background(), created.ID, false, 9))
	stored := env.orders.orders[created.ID]
	assert.Equal(t, domain.StatusCancel, stored.Status)

	// 不回库: 只解除占用，可售量和批次余量不变
	assert.Equal(t, 0, env.stock.inventories[0].OnTransaction)
	assert.Equal(t, 46, env.stock.inventories[0].Available)
	assert.Equal(t, 46, env.stock.items[0].QuantityAvailable)
}

func TestCancelWithRestockRestoresAvailable(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 4}},
	})
	require.NoError(t, err)
	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.NoError(t, err)

	require.NoError(t, env.service.CancelOrder(context.Background(), created.ID, true, 9))
	assert.Equal(t, 0, env.stock.inventories[0].OnTransaction)
	assert.Equal(t, 50, env.stock.inventories[0].Available)
	assert.Equal(t, 50, env.stock.items[0].QuantityAvailable)
}

func TestCancelCompletedOrderRejected(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.NoError(t, err)
	require.NoError(t, env.service.ConfirmDelivery(context.Background(), created.ID, 9))
	require.NoError(t, env.service.ConfirmPayment(context.Background(), created.ID, 9))

	err = env.service.CancelOrder(context.Background(), created.ID, true, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestSoftDeleteLeavesStockAlone(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, env.service.SoftDelete(context.Background(), created.ID, 9))
	assert.True(t, env.orders.orders[created.ID].Void)
	assert.Equal(t, 2, env.stock.inventories[0].OnTransaction)
}
