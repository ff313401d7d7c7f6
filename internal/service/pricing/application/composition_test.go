package application

import (
	"testing"

	"atlas/internal/service/pricing/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func pct(id uint, value int64, combinable bool) *domain.Discount {
	return &domain.Discount{
		ID: id, Type: domain.TypeProduct,
		ValueType: domain.ValueTypePercent, Value: dec(value),
		CombinesWithProductDiscount: combinable,
	}
}

func flat(id uint, value int64, combinable bool) *domain.Discount {
	return &domain.Discount{
		ID: id, Type: domain.TypeProduct,
		ValueType: domain.ValueTypeFlat, Value: dec(value),
		CombinesWithProductDiscount: combinable,
	}
}

func val(id uint, value int64, combinable bool) *domain.Discount {
	return &domain.Discount{
		ID: id, Type: domain.TypeProduct,
		ValueType: domain.ValueTypeValue, Value: dec(value),
		CombinesWithProductDiscount: combinable,
	}
}

func TestComposeSinglePercent(t *testing.T) {
	// 100,000 上一条互斥的 10% 折扣: 优惠 10,000，最终 90,000
	res := Compose(dec(100000), []*domain.Discount{pct(1, 10, false)}, SubjectLine)

	assert.True(t, res.FinalPrice.Equal(dec(90000)), "final=%s", res.FinalPrice)
	assert.True(t, res.DiscountAmount.Equal(dec(10000)))
	require.Len(t, res.Applied, 1)
	assert.True(t, res.Applied[0].Amount.Equal(dec(10000)))
	assert.EqualValues(t, 10, res.DiscountPercent)
}

func TestComposeFlatThenPercent(t *testing.T) {
	// 123,400: 可叠加一口价 50,000 重定价到 50,000，再叠加 10% 减 5,000
	discounts := []*domain.Discount{flat(1, 50000, true), pct(2, 10, true)}
	res := Compose(dec(123400), discounts, SubjectLine)

	assert.True(t, res.FinalPrice.Equal(dec(45000)), "final=%s", res.FinalPrice)
	assert.True(t, res.DiscountAmount.Equal(dec(78400)))
	require.Len(t, res.Applied, 2)
	assert.True(t, res.Applied[0].Amount.Equal(dec(73400)))
	assert.True(t, res.Applied[1].Amount.Equal(dec(5000)))
}

func TestComposeExclusiveKeepsLargest(t *testing.T) {
	// 两条互斥折扣只有优惠力度最大的生效
	discounts := []*domain.Discount{val(1, 5000, false), pct(2, 20, false)}
	res := Compose(dec(100000), discounts, SubjectLine)

	require.Len(t, res.Applied, 1)
	assert.Equal(t, uint(2), res.Applied[0].Discount.ID)
	assert.True(t, res.FinalPrice.Equal(dec(80000)))
}

func TestComposeExclusiveTieKeepsFirst(t *testing.T) {
	// 金额相同时保留目录顺序靠前的一条
	discounts := []*domain.Discount{val(7, 10000, false), pct(8, 10, false)}
	res := Compose(dec(100000), discounts, SubjectLine)

	require.Len(t, res.Applied, 1)
	assert.Equal(t, uint(7), res.Applied[0].Discount.ID)
}

func TestComposeSmallestFlatWins(t *testing.T) {
	// 多条可叠加一口价里只有最小的那条生效
	discounts := []*domain.Discount{flat(1, 80000, true), flat(2, 60000, true), flat(3, 70000, true)}
	res := Compose(dec(100000), discounts, SubjectLine)

	require.Len(t, res.Applied, 1)
	assert.Equal(t, uint(2), res.Applied[0].Discount.ID)
	assert.True(t, res.FinalPrice.Equal(dec(60000)))
}

func TestComposeFlatAboveRemainingIsNoop(t *testing.T) {
	res := Compose(dec(40000), []*domain.Discount{flat(1, 50000, true)}, SubjectLine)

	assert.Empty(t, res.Applied)
	assert.True(t, res.FinalPrice.Equal(dec(40000)))
	assert.True(t, res.DiscountAmount.IsZero())
	assert.Zero(t, res.DiscountPercent)
}

func TestComposePercentSequentialWithCap(t *testing.T) {
	cap := dec(5000)
	capped := pct(1, 10, true)
	capped.ValueLimitAmount = &cap
	discounts := []*domain.Discount{capped, pct(2, 10, true)}

	// 100,000: 第一条 10% 被封顶在 5,000 → 剩 95,000；第二条对 95,000 计 9,500
	res := Compose(dec(100000), discounts, SubjectOrder)

	require.Len(t, res.Applied, 2)
	assert.True(t, res.Applied[0].Amount.Equal(dec(5000)))
	assert.True(t, res.Applied[1].Amount.Equal(dec(9500)))
	assert.True(t, res.FinalPrice.Equal(dec(85500)))
}

func TestComposeValueClampAccumulatesNominal(t *testing.T) {
	// 历史行为: 固定金额扣到零时，单条归因记实际使用额，
	// 但总折扣累加的是名义面额
	discounts := []*domain.Discount{val(1, 6000, true), val(2, 6000, true)}
	res := Compose(dec(10000), discounts, SubjectOrder)

	assert.True(t, res.FinalPrice.IsZero())
	require.Len(t, res.Applied, 2)
	assert.True(t, res.Applied[0].Amount.Equal(dec(6000)))
	assert.True(t, res.Applied[1].Amount.Equal(dec(4000)), "second attribution is the clamped amount")
	assert.True(t, res.DiscountAmount.Equal(dec(12000)), "total keeps the nominal values")
}

func TestComposeUnknownValueTypeSkipped(t *testing.T) {
	bogus := &domain.Discount{ID: 1, Type: domain.TypeProduct, ValueType: "MYSTERY", Value: dec(9999)}
	res := Compose(dec(50000), []*domain.Discount{bogus}, SubjectLine)

	assert.Empty(t, res.Applied)
	assert.True(t, res.FinalPrice.Equal(dec(50000)))
}

func TestComposeLineRoundsDownToThousand(t *testing.T) {
	// 123,400 - 10% = 111,060 → 行价格取整到 111,000，差额计入总折扣
	res := Compose(dec(123400), []*domain.Discount{pct(1, 10, true)}, SubjectLine)

	assert.True(t, res.FinalPrice.Equal(dec(111000)), "final=%s", res.FinalPrice)
	assert.True(t, res.DiscountAmount.Equal(dec(12400)))
	assert.EqualValues(t, 10, res.DiscountPercent)
}

func TestComposeOrderSkipsRounding(t *testing.T) {
	res := Compose(dec(123400), []*domain.Discount{pct(1, 10, true)}, SubjectOrder)

	assert.True(t, res.FinalPrice.Equal(dec(111060)), "final=%s", res.FinalPrice)
}

func TestComposeDeterministic(t *testing.T) {
	discounts := []*domain.Discount{
		val(1, 3000, false),
		pct(2, 15, false),
		flat(3, 90000, true),
		pct(4, 5, true),
		val(5, 2000, true),
	}
	first := Compose(dec(150000), discounts, SubjectLine)
	for i := 0; i < 5; i++ {
		again := Compose(dec(150000), discounts, SubjectLine)
		assert.True(t, first.FinalPrice.Equal(again.FinalPrice))
		assert.True(t, first.DiscountAmount.Equal(again.DiscountAmount))
		require.Equal(t, len(first.Applied), len(again.Applied))
		for j := range first.Applied {
			assert.Equal(t, first.Applied[j].Discount.ID, again.Applied[j].Discount.ID)
			assert.True(t, first.Applied[j].Amount.Equal(again.Applied[j].Amount))
		}
	}
}
