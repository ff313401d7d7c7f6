// internal/service/report/application/service.go
package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"atlas/internal/service/report/infrastructure"
)

// ReportQuery 是报表请求，命名时间段或 custom 区间二选一。
type ReportQuery struct {
	Range RangeToken `json:"range"`
	Min   time.Time  `json:"min,omitempty"`
	Max   time.Time  `json:"max,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

// SalesReport 是一个时间段内的销售汇总。
type SalesReport struct {
	Start             time.Time                      `json:"start"`
	End               time.Time                      `json:"end"`
	Daily             []infrastructure.RevenueRow    `json:"daily"`
	TopVariants       []infrastructure.TopVariantRow `json:"top_variants"`
	AverageOrderValue decimal.Decimal                `json:"average_order_value"`
}

// ReportService 把日期解析和聚合查询拼成一个只读用例。
type ReportService struct {
	store  *infrastructure.GormReportStore
	tracer trace.Tracer
}

func NewReportService(store *infrastructure.GormReportStore, tracer trace.Tracer) *ReportService {
	return &ReportService{store: store, tracer: tracer}
}

const defaultTopVariantLimit = 10

func (s *ReportService) SalesSummary(ctx context.Context, q ReportQuery) (*SalesReport, error) {
	ctx, span := s.tracer.Start(ctx, "report.SalesSummary")
	defer span.End()

	start, end, err := ResolveRange(q.Range, time.Now(), q.Min, q.Max)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultTopVariantLimit
	}

	daily, err := s.store.DailyRevenue(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	top, err := s.store.TopVariants(ctx, start, end, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	avg, err := s.store.AverageOrderValue(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &SalesReport{
		Start:             start,
		End:               end,
		Daily:             daily,
		TopVariants:       top,
		AverageOrderValue: avg,
	}, nil
}
