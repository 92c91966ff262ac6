package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/lifelog/internal/localdate"
)

// Type 表示统计周期类型
type Type string

const (
	TypeDay   Type = "day"
	TypeWeek  Type = "week"
	TypeMonth Type = "month"
)

// ErrUnknownType 在周期类型不受支持时返回
var ErrUnknownType = errors.New("unknown period type")

// Bounds 描述一个周期窗口：起止时刻加本地日期字符串。
// 纯值对象，永不持久化，每次需要时重新计算。
type Bounds struct {
	Start          time.Time
	End            time.Time
	LocalStartDate string
	LocalEndDate   string
}

// Valid 校验周期类型
func (t Type) Valid() bool {
	return t == TypeDay || t == TypeWeek || t == TypeMonth
}

// ForDate 计算某一时刻在指定时区内所属的周期窗口。
// day 为该日历日，week 为周日至周六（含），month 为日历月。
// 全部使用日历日期运算，周内发生夏令时切换不会移动边界。
func ForDate(t time.Time, tz string, periodType Type) (Bounds, error) {
	loc, err := localdate.Location(tz)
	if err != nil {
		return Bounds{}, err
	}

	local := t.In(loc)
	y, m, d := local.Date()

	var start, next time.Time
	switch periodType {
	case TypeDay:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 1)
	case TypeWeek:
		// weekStartsOn = 0：周日
		start = time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 7)
	case TypeMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	default:
		return Bounds{}, fmt.Errorf("%w: %s", ErrUnknownType, periodType)
	}

	end := next.Add(-time.Nanosecond)

	return Bounds{
		Start:          start,
		End:            end,
		LocalStartDate: start.Format(localdate.DateFormat),
		LocalEndDate:   end.Format(localdate.DateFormat),
	}, nil
}

// Current 返回 now 所处的周期窗口
func Current(now time.Time, tz string, periodType Type) (Bounds, error) {
	return ForDate(now, tz, periodType)
}

// Same 判断两个时刻是否落在同一周期窗口内
func Same(a, b time.Time, tz string, periodType Type) (bool, error) {
	boundsA, err := ForDate(a, tz, periodType)
	if err != nil {
		return false, err
	}

	boundsB, err := ForDate(b, tz, periodType)
	if err != nil {
		return false, err
	}

	return boundsA.LocalStartDate == boundsB.LocalStartDate, nil
}

// Label 渲染周期窗口的展示标题，例如 "Mon, Mar 3" / "Week of Mar 3" / "March 2025"。
func Label(localStartDate string, periodType Type) (string, error) {
	start, err := localdate.ParseDate(localStartDate)
	if err != nil {
		return "", err
	}

	switch periodType {
	case TypeDay:
		return start.Format("Mon, Jan 2"), nil
	case TypeWeek:
		return "Week of " + start.Format("Jan 2"), nil
	case TypeMonth:
		return start.Format("January 2006"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownType, periodType)
	}
}

// FormatRemaining 渲染距周期结束的剩余时间。
// 差值全部向下取整：剩 0 天 3 小时报告小时数；end 已过哪怕 1 纳秒也算结束。
func FormatRemaining(end, now time.Time) string {
	if !end.After(now) {
		return "Period ended"
	}

	diff := end.Sub(now)

	if days := int(diff.Hours()) / 24; days >= 1 {
		return pluralizeLeft(days, "day")
	}
	if hours := int(diff.Hours()); hours >= 1 {
		return pluralizeLeft(hours, "hour")
	}

	return pluralizeLeft(int(diff.Minutes()), "minute")
}

func pluralizeLeft(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s left", unit)
	}
	return fmt.Sprintf("%d %ss left", n, unit)
}
