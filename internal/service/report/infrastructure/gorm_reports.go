// internal/service/report/infrastructure/gorm_reports.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RevenueRow 是单日营收汇总。成本来自订单来源行的批次成本价，
// 所以毛利能追溯到具体采购批次。
type RevenueRow struct {
	Day        time.Time       `gorm:"column:day"`
	OrderCount int             `gorm:"column:order_count"`
	Revenue    decimal.Decimal `gorm:"column:revenue"`
	Cost       decimal.Decimal `gorm:"column:cost"`
}

// TopVariantRow 是按变体聚合的销量排行。
type TopVariantRow struct {
	VariantID uint            `gorm:"column:variant_id"`
	Quantity  int             `gorm:"column:quantity"`
	Revenue   decimal.Decimal `gorm:"column:revenue"`
}

// GormReportStore 通过 gorm 聚合查询出报表数据，只读。
type GormReportStore struct {
	db *gorm.DB
}

func NewGormReportStore(db *gorm.DB) *GormReportStore {
	return &GormReportStore{db: db}
}

// DailyRevenue 按天汇总 [start, end) 内已完成订单的营收和成本。
func (s *GormReportStore) DailyRevenue(ctx context.Context, start, end time.Time) ([]RevenueRow, error) {
	var rows []RevenueRow
	err := s.db.WithContext(ctx).
		Table("orders o").
		Select(`DATE(o.created_at) AS day,
			COUNT(DISTINCT o.id) AS order_count,
			COALESCE(SUM(o.total), 0) AS revenue,
			COALESCE(SUM(src.cost), 0) AS cost`).
		Joins(`LEFT JOIN (
			SELECT order_id, SUM(quantity * cost_price) AS cost
			FROM order_item_sources GROUP BY order_id
		) src ON src.order_id = o.id`).
		Where("o.status = ? AND o.void = ? AND o.created_at >= ? AND o.created_at < ?",
			"COMPLETE", false, start, end).
		Group("DATE(o.created_at)").
		Order("day asc").
		Scan(&rows).Error
	return rows, errors.Wrap(err, "daily revenue report")
}

// TopVariants 返回 [start, end) 内销量最高的变体。
func (s *GormReportStore) TopVariants(ctx context.Context, start, end time.Time, limit int) ([]TopVariantRow, error) {
	var rows []TopVariantRow
	err := s.db.WithContext(ctx).
		Table("order_lines l").
		Select("l.variant_id, SUM(l.quantity) AS quantity, COALESCE(SUM(l.total), 0) AS revenue").
		Joins("JOIN orders o ON o.id = l.order_id").
		Where("o.status = ? AND o.void = ? AND o.created_at >= ? AND o.created_at < ?",
			"COMPLETE", false, start, end).
		Group("l.variant_id").
		Order("quantity desc").
		Limit(limit).
		Scan(&rows).Error
	return rows, errors.Wrap(err, "top variants report")
}

// AverageOrderValue 返回 [start, end) 内已完成订单的平均客单价。
func (s *GormReportStore) AverageOrderValue(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var avg decimal.Decimal
	err := s.db.WithContext(ctx).
		Table("orders").
		Select("COALESCE(AVG(total), 0)").
		Where("status = ? AND void = ? AND created_at >= ? AND created_at < ?",
			"COMPLETE", false, start, end).
		Scan(&avg).Error
	return avg, errors.Wrap(err, "average order value")
}
