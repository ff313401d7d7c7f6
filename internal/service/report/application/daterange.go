// internal/service/report/application/daterange.go
package application

import (
	"time"

	"github.com/pkg/errors"
)

// RangeToken 是报表接口支持的命名时间段。
type RangeToken string

const (
	RangeToday     RangeToken = "today"
	RangeYesterday RangeToken = "yesterday"
	RangeLast7Days RangeToken = "last7days"
	RangeThisMonth RangeToken = "thisMonth"
	RangeLastMonth RangeToken = "lastMonth"
	RangeThisYear  RangeToken = "thisYear"
	RangeCustom    RangeToken = "custom"
)

var ErrInvalidRange = errors.New("invalid report date range")

// ResolveRange 把命名时间段解析成左闭右开区间 [start, end)。
// custom 直接采用调用方传入的 min/max，其余枚举以 now 所在自然日/
// 月/年为锚点。未知的 token 返回 ErrInvalidRange。
func ResolveRange(token RangeToken, now, min, max time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch token {
	case RangeToday:
		return today, today.AddDate(0, 0, 1), nil
	case RangeYesterday:
		return today.AddDate(0, 0, -1), today, nil
	case RangeLast7Days:
		return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1), nil
	case RangeThisMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	case RangeLastMonth:
		thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return thisMonth.AddDate(0, -1, 0), thisMonth, nil
	case RangeThisYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0), nil
	case RangeCustom:
		if min.IsZero() || max.IsZero() || !min.Before(max) {
			return time.Time{}, time.Time{}, errors.Wrap(ErrInvalidRange, "custom range requires min < max")
		}
		return min, max, nil
	default:
		return time.Time{}, time.Time{}, errors.Wrapf(ErrInvalidRange, "unknown token %q", token)
	}
}
