package localdate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateFormat 是所有本地日期字符串使用的统一格式
const DateFormat = "2006-01-02"

var (
	// ErrInvalidTimezone 在时区标识无法解析时返回
	ErrInvalidTimezone = errors.New("invalid timezone identifier")
	// ErrInvalidDate 在日期字符串不符合 yyyy-MM-dd 时返回
	ErrInvalidDate = errors.New("invalid local date string")
)

// Location 解析 IANA 时区标识。
// 未知时区必须报错，绝不能静默回退到 UTC，否则下游所有周期边界都会错。
func Location(tz string) (*time.Location, error) {
	trimmed := strings.TrimSpace(tz)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidTimezone)
	}

	loc, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, trimmed)
	}

	return loc, nil
}

// ToLocalDate 返回某一时刻在指定时区内所属的日历日期（yyyy-MM-dd）。
// 注意是该时区的日期，不是 UTC 也不是进程本地时区。
func ToLocalDate(t time.Time, tz string) (string, error) {
	loc, err := Location(tz)
	if err != nil {
		return "", err
	}

	return t.In(loc).Format(DateFormat), nil
}

// OffsetDate 返回相对 now 偏移 days 天的本地日期字符串。
// days 为负表示 N 天前，为正表示 N 天后。
func OffsetDate(now time.Time, tz string, days int) (string, error) {
	loc, err := Location(tz)
	if err != nil {
		return "", err
	}

	y, m, d := now.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, days).Format(DateFormat), nil
}

// StartOfDay 返回 now 在指定时区内所属日期的起始时刻。
func StartOfDay(now time.Time, tz string) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}

	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
}

// IsToday 判断本地日期字符串是否为 now 在该时区的当日。
func IsToday(dateStr string, now time.Time, tz string) (bool, error) {
	if _, err := ParseDate(dateStr); err != nil {
		return false, err
	}

	today, err := ToLocalDate(now, tz)
	if err != nil {
		return false, err
	}

	return dateStr == today, nil
}

// IsYesterday 判断本地日期字符串是否为 now 在该时区的前一日。
func IsYesterday(dateStr string, now time.Time, tz string) (bool, error) {
	if _, err := ParseDate(dateStr); err != nil {
		return false, err
	}

	yesterday, err := OffsetDate(now, tz, -1)
	if err != nil {
		return false, err
	}

	return dateStr == yesterday, nil
}

// ParseDate 严格校验并解析 yyyy-MM-dd 字符串，返回 UTC 零点时刻。
// 解析失败视为调用方数据损坏，立即报错而不是尝试修复。
func ParseDate(dateStr string) (time.Time, error) {
	if len(dateStr) != len(DateFormat) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}

	t, err := time.Parse(DateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}

	return t, nil
}
