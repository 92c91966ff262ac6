package habitstats

import (
	"fmt"
	"math"
	"strconv"
)

// PeriodStatus 表示配额习惯单个周期的结果
type PeriodStatus string

const (
	StatusUnder PeriodStatus = "under"
	StatusNear  PeriodStatus = "near"
	StatusOver  PeriodStatus = "over"
)

// 配额/目标习惯支持的计量单位
const (
	UnitCount    = "count"
	UnitMinutes  = "minutes"
	UnitPages    = "pages"
	UnitSteps    = "steps"
	UnitReps     = "reps"
	UnitSessions = "sessions"
	UnitCurrency = "currency"
	UnitGrams    = "grams"
	UnitUnits    = "units"
)

// QuotaPeriod 是统计引擎消费的已结算周期行
type QuotaPeriod struct {
	Status           PeriodStatus
	LocalPeriodStart string
}

// QuotaStats 汇总配额习惯的连胜与超限统计
type QuotaStats struct {
	CurrentWinStreak int
	WinsLast7        int
	WinsLast30       int
	BreachCount      int
}

// QuickAddSet 是快捷记录按钮的三档预设量
type QuickAddSet struct {
	Small  float64
	Medium float64
	Large  float64
}

// CalculatePeriodStatus 根据已用量计算周期状态。
// 恰好达到配额即为 over，不是 near。
func CalculatePeriodStatus(totalUsed, quotaAmount, nearThresholdPercent float64) PeriodStatus {
	if totalUsed >= quotaAmount {
		return StatusOver
	}
	if totalUsed >= quotaAmount*nearThresholdPercent/100 {
		return StatusNear
	}
	return StatusUnder
}

// CalculateRemaining 返回剩余配额，永不为负。
func CalculateRemaining(totalUsed, quotaAmount float64) float64 {
	return math.Max(0, quotaAmount-totalUsed)
}

// CalculateQuotaStats 汇总配额周期历史。
//
// 前置条件：periods 必须已按 LocalPeriodStart 降序排列（最近在前）。
// 本函数不做防御性排序，排序责任在调用方；这是与 build 引擎
// 刻意保留的不对称约定。
//
// 胜利定义：status 为 under 的周期；near 既不算胜也不算超限。
// over 周期仅在 allowSoftOver 为 false 时计入 BreachCount。
// WinsLast7/WinsLast30 是列表前 7/30 条内的胜利数，不是日历窗口。
// BreachCount 覆盖整个历史。
func CalculateQuotaStats(periods []QuotaPeriod, allowSoftOver bool) QuotaStats {
	var stats QuotaStats
	streakBroken := false

	for i, p := range periods {
		win := p.Status == StatusUnder

		if !streakBroken {
			if win {
				stats.CurrentWinStreak++
			} else {
				streakBroken = true
			}
		}

		if win {
			if i < 7 {
				stats.WinsLast7++
			}
			if i < 30 {
				stats.WinsLast30++
			}
		}

		if p.Status == StatusOver && !allowSoftOver {
			stats.BreachCount++
		}
	}

	return stats
}

// QuickAdds 返回配额的 10%/25%/50% 三档快捷量，
// 四舍五入后再抬升到单位相关的最小值。
func QuickAdds(quotaAmount float64, unit string) QuickAddSet {
	minSmall, minMedium, minLarge := quickAddMinimums(unit)

	return QuickAddSet{
		Small:  math.Max(math.Round(quotaAmount*0.10), minSmall),
		Medium: math.Max(math.Round(quotaAmount*0.25), minMedium),
		Large:  math.Max(math.Round(quotaAmount*0.50), minLarge),
	}
}

func quickAddMinimums(unit string) (small, medium, large float64) {
	switch unit {
	case UnitMinutes:
		return 5, 15, 30
	case UnitGrams:
		return 5, 10, 25
	case UnitCurrency:
		return 1, 5, 10
	default:
		return 1, 1, 1
	}
}

// FormatQuotaAmount 按单位渲染数量：
// 分钟满 60 显示为 "Xh Ym"（整点省略分钟），货币固定两位小数带 $ 前缀，
// 其余单位整数不带小数，非整数保留一位小数。
func FormatQuotaAmount(amount float64, unit string) string {
	switch unit {
	case UnitMinutes:
		total := int(amount)
		if total >= 60 {
			hours := total / 60
			minutes := total % 60
			if minutes == 0 {
				return fmt.Sprintf("%dh", hours)
			}
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return formatNumber(amount) + "m"
	case UnitCurrency:
		return fmt.Sprintf("$%.2f", amount)
	default:
		return formatNumber(amount)
	}
}

func formatNumber(amount float64) string {
	if amount == math.Trunc(amount) {
		return strconv.FormatFloat(amount, 'f', 0, 64)
	}
	return strconv.FormatFloat(amount, 'f', 1, 64)
}
