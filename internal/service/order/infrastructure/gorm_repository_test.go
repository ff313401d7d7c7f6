// internal/service/order/infrastructure/gorm_repository_test.go
package infrastructure

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/service/order/domain"
)

func uintPtr(v uint) *uint { return &v }

// 来源行必须冗余 order_id，释放路径的条件更新和硬删除的子表
// 清理都按订单维度过滤。漏写 order_id 会让条件更新永远匹配不到
// 任何行，库存释放被悄悄跳过。
func TestOrderLineModelCarriesOrderIDOntoSources(t *testing.T) {
	line := &domain.Line{
		VariantID:       7,
		ProductID:       3,
		Quantity:        8,
		UnitPrice:       decimal.NewFromInt(100000),
		Subtotal:        decimal.NewFromInt(800000),
		DiscountAmount:  decimal.NewFromInt(80000),
		DiscountPercent: 10,
		Total:           decimal.NewFromInt(720000),
		Sources: []domain.Source{
			{ReceiveItemID: uintPtr(11), WarehouseID: 1, Quantity: 5, CostPrice: decimal.NewFromInt(60000)},
			{ReceiveItemID: uintPtr(12), WarehouseID: 1, Quantity: 3, CostPrice: decimal.NewFromInt(62000)},
		},
	}

	lm := toOrderLineModel(line, 42)

	assert.EqualValues(t, 42, lm.OrderID)
	require.Len(t, lm.Sources, 2)
	for _, sm := range lm.Sources {
		assert.EqualValues(t, 42, sm.OrderID)
		assert.False(t, sm.Released)
	}
	assert.EqualValues(t, 11, *lm.Sources[0].ReceiveItemID)
	assert.True(t, lm.DiscountPercent.Equal(decimal.NewFromInt(10)))
}

// 折扣百分比在库里是 decimal(5,0)，领域侧是整数，来回转换要无损。
func TestLineDiscountPercentSurvivesRoundTrip(t *testing.T) {
	model := OrderModel{
		CustomerID: 9,
		Status:     string(domain.StatusPendingProcessing),
		Lines: []OrderLineModel{
			{
				VariantID:       7,
				Quantity:        2,
				DiscountPercent: decimal.NewFromInt(15),
				Sources: []OrderItemSourceModel{
					{OrderID: 1, WarehouseID: 1, Quantity: 2, Released: true},
				},
			},
		},
	}
	model.ID = 1
	model.Lines[0].ID = 3

	order := toDomainOrder(&model)
	require.Len(t, order.Lines, 1)
	assert.EqualValues(t, 15, order.Lines[0].DiscountPercent)
	require.Len(t, order.Lines[0].Sources, 1)
	assert.True(t, order.Lines[0].Sources[0].Released)
}
