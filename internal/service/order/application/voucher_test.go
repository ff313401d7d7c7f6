// internal/service/order/application/voucher_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/service/order/domain"
	pricing "atlas/internal/service/pricing/domain"
)

func coupon(id uint, code string, valueType pricing.ValueType, value string, combinable bool) *pricing.Discount {
	d := &pricing.Discount{
		ID: id, Title: code, Mode: pricing.ModeCoupon, Type: pricing.TypeOrder,
		ValueType: valueType, Value: dec(value),
		Entitle: pricing.EntitleAll, Prerequisite: pricing.PrerequisiteNone,
		Active: true, StartOn: time.Now().Add(-time.Hour),
	}
	d.CombinesWithOrderDiscount = combinable
	d.CombinesWithProductDiscount = combinable
	return d
}

// checkedOutOrder 建一张订单并推进到结账完成。
func checkedOutOrder(t *testing.T, env *testEnv, quantity int) uint {
	t.Helper()
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: quantity}},
	})
	require.NoError(t, err)
	_, err = env.service.Checkout(context.Background(), &CheckoutRequest{OrderID: created.ID})
	require.NoError(t, err)
	return created.ID
}

func TestApplyVoucherValueDiscount(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(
		coupon(5, "TAKE5K", pricing.ValueTypeValue, "5000", true),
	))
	orderID := checkedOutOrder(t, env, 1) // 100000

	resp, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{
		OrderID: orderID, Code: "TAKE5K", ActorID: 9,
	})
	require.NoError(t, err)

	assert.True(t, resp.Total.Equal(dec("95000")))
	assert.True(t, resp.DiscountAmount.Equal(dec("5000")))

	stored := env.orders.orders[orderID]
	require.Len(t, stored.Vouchers, 1)
	assert.Equal(t, uint(5), stored.Vouchers[0].DiscountID)
	assert.True(t, stored.Vouchers[0].Amount.Equal(dec("5000")))
	assert.Equal(t, 1, env.discounts.usage[5])
}

func TestApplyVoucherReplayChangesExclusiveWinner(t *testing.T) {
	// 互斥促销先胜出(5% = 5000)，更大的互斥券(固定 6000)加入后重放，
	// 胜者易主，归因整体替换而不是叠加
	promo := percentPromo(1, "5", pricing.TypeOrder, false)
	voucher := coupon(9, "BIG6K", pricing.ValueTypeValue, "6000", false)
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(promo, voucher))
	orderID := checkedOutOrder(t, env, 1) // 100000, promo 已生效

	stored := env.orders.orders[orderID]
	require.Len(t, stored.Discounts, 1)
	assert.True(t, stored.Total.Equal(dec("95000")))

	resp, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{
		OrderID: orderID, Code: "BIG6K",
	})
	require.NoError(t, err)

	assert.True(t, resp.Total.Equal(dec("94000")))
	assert.True(t, resp.DiscountAmount.Equal(dec("6000")))

	stored = env.orders.orders[orderID]
	require.Len(t, stored.Discounts, 1)
	assert.Equal(t, uint(9), stored.Discounts[0].DiscountID)
}

func TestApplyVoucherLosingExclusiveContestRejected(t *testing.T) {
	// 重放后券输给力度更大的互斥促销，核销没有意义
	promo := percentPromo(1, "10", pricing.TypeOrder, false)
	voucher := coupon(9, "SMALL", pricing.ValueTypeValue, "2000", false)
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(promo, voucher))
	orderID := checkedOutOrder(t, env, 1)

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{
		OrderID: orderID, Code: "SMALL",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVoucherNotEligible))
	assert.Equal(t, 0, env.discounts.usage[9])
}

func TestApplyVoucherUnknownCode(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo())
	orderID := checkedOutOrder(t, env, 1)

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{
		OrderID: orderID, Code: "NOPE",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pricing.ErrDiscountNotFound))
}

func TestApplyVoucherBeforeCheckoutRejected(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(
		coupon(5, "TAKE5K", pricing.ValueTypeValue, "5000", true),
	))
	created, err := env.service.CreateTempOrder(context.Background(), &CreateTempOrderRequest{
		CustomerID: 42,
		Lines:      []LineRequest{{VariantID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{
		OrderID: created.ID, Code: "TAKE5K",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestApplyVoucherTwiceRejected(t *testing.T) {
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(
		coupon(5, "TAKE5K", pricing.ValueTypeValue, "5000", true),
	))
	orderID := checkedOutOrder(t, env, 1)

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "TAKE5K"})
	require.NoError(t, err)
	_, err = env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "TAKE5K"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVoucherAlreadyApplied))
	assert.Equal(t, 1, env.discounts.usage[5])
}

func TestApplyVoucherOnePerCustomer(t *testing.T) {
	voucher := coupon(5, "ONCE", pricing.ValueTypeValue, "5000", true)
	voucher.OnePerCustomer = true
	repo := newFakeDiscountRepo(voucher)
	repo.markUsed(5, 42)
	env := newTestEnv(defaultStock(), defaultCatalog(), repo)
	orderID := checkedOutOrder(t, env, 1)

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "ONCE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVoucherUsedByCustomer))
}

func TestApplyVoucherUsageExhausted(t *testing.T) {
	voucher := coupon(5, "CAPPED", pricing.ValueTypeValue, "5000", true)
	limit := 3
	voucher.UsageLimit = &limit
	voucher.Usage = 3
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(voucher))
	orderID := checkedOutOrder(t, env, 1)

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "CAPPED"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVoucherExhausted))
}

func TestApplyVoucherInactiveWindow(t *testing.T) {
	voucher := coupon(5, "EXPIRED", pricing.ValueTypeValue, "5000", true)
	endOn := time.Now().Add(-time.Hour)
	voucher.EndOn = &endOn
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(voucher))
	orderID := checkedOutOrder(t, env, 1)

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "EXPIRED"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVoucherInactive))
}

func TestApplyVoucherNotCombinableWithExistingVoucher(t *testing.T) {
	first := coupon(5, "FIRST", pricing.ValueTypeValue, "5000", true)
	second := coupon(6, "SECOND", pricing.ValueTypeValue, "3000", false)
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(first, second))
	orderID := checkedOutOrder(t, env, 1)

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "FIRST"})
	require.NoError(t, err)
	_, err = env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "SECOND"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVoucherNotCombinable))
}

func TestApplyVoucherStacksValueDiscounts(t *testing.T) {
	first := coupon(5, "FIRST", pricing.ValueTypeValue, "5000", true)
	second := coupon(6, "SECOND", pricing.ValueTypeValue, "3000", true)
	env := newTestEnv(defaultStock(), defaultCatalog(), newFakeDiscountRepo(first, second))
	orderID := checkedOutOrder(t, env, 1) // 100000

	_, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "FIRST"})
	require.NoError(t, err)
	resp, err := env.service.ApplyVoucher(context.Background(), &ApplyVoucherRequest{OrderID: orderID, Code: "SECOND"})
	require.NoError(t, err)

	assert.True(t, resp.Total.Equal(dec("92000")))
	stored := env.orders.orders[orderID]
	assert.Len(t, stored.Vouchers, 2)
	assert.Equal(t, 1, env.discounts.usage[5])
	assert.Equal(t, 1, env.discounts.usage[6])
}
