package habitstats

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// BuildStatus 表示目标习惯单个周期的结果
type BuildStatus string

const (
	BuildIncomplete BuildStatus = "incomplete"
	BuildComplete   BuildStatus = "complete"
)

// BuildPeriod 是目标习惯统计引擎消费的已结算周期行
type BuildPeriod struct {
	Status           BuildStatus
	LocalPeriodStart string
}

// BuildStats 描述当前周期对目标的完成情况
type BuildStats struct {
	Remaining       float64
	Status          BuildStatus
	PercentComplete int
}

// CalculateBuildStats 计算当前周期进度。
// Remaining 不为负；达到目标即 complete；完成百分比封顶 100。
// target 不为正时视为已完成（进度 100），避免除零。
func CalculateBuildStats(totalDone, target float64) BuildStats {
	stats := BuildStats{
		Remaining: math.Max(0, target-totalDone),
		Status:    BuildIncomplete,
	}

	if totalDone >= target {
		stats.Status = BuildComplete
	}

	if target <= 0 {
		stats.PercentComplete = 100
		return stats
	}

	percent := int(math.Round(totalDone / target * 100))
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	stats.PercentComplete = percent

	return stats
}

// CalculateWinStreak 从最近一期起统计连续 complete 的周期数。
// 与配额引擎不同，这里会在内部按起始日期降序防御性排序，
// 调用方无需保证顺序。
func CalculateWinStreak(periods []BuildPeriod) int {
	sorted := sortedDescending(periods)

	streak := 0
	for _, p := range sorted {
		if p.Status != BuildComplete {
			break
		}
		streak++
	}

	return streak
}

// CalculateWinsInPeriods 统计最近 n 期中的 complete 数（内部降序排序）。
func CalculateWinsInPeriods(periods []BuildPeriod, n int) int {
	sorted := sortedDescending(periods)
	if n < len(sorted) {
		sorted = sorted[:n]
	}

	wins := 0
	for _, p := range sorted {
		if p.Status == BuildComplete {
			wins++
		}
	}

	return wins
}

// CalculateCompletionRate 返回整段历史的完成率百分比，空历史返回 0。
func CalculateCompletionRate(periods []BuildPeriod) int {
	if len(periods) == 0 {
		return 0
	}

	wins := 0
	for _, p := range periods {
		if p.Status == BuildComplete {
			wins++
		}
	}

	return int(math.Round(float64(wins) / float64(len(periods)) * 100))
}

func sortedDescending(periods []BuildPeriod) []BuildPeriod {
	sorted := slices.Clone(periods)
	slices.SortFunc(sorted, func(a, b BuildPeriod) int {
		return cmp.Compare(b.LocalPeriodStart, a.LocalPeriodStart)
	})
	return sorted
}

// BuildQuickAmounts 按目标大小返回三档快捷记录量。
func BuildQuickAmounts(target float64) QuickAddSet {
	switch {
	case target <= 5:
		return QuickAddSet{Small: 1, Medium: 2, Large: target}
	case target <= 20:
		return QuickAddSet{Small: 1, Medium: 5, Large: 10}
	case target <= 100:
		return QuickAddSet{Small: 5, Medium: 10, Large: 25}
	default:
		return QuickAddSet{Small: 10, Medium: 50, Large: 100}
	}
}

// FormatBuildAmount 按单位渲染目标习惯数量，带正确的单复数。
func FormatBuildAmount(amount float64, unit string) string {
	switch unit {
	case UnitMinutes:
		return pluralize(amount, "minute")
	case UnitPages:
		return pluralize(amount, "page")
	case UnitReps:
		return pluralize(amount, "rep")
	case UnitSessions:
		return pluralize(amount, "session")
	case UnitCount:
		return pluralize(amount, "time")
	case UnitSteps:
		return groupThousands(amount) + " steps"
	default:
		return fmt.Sprintf("%s %s", formatNumber(amount), unit)
	}
}

func pluralize(amount float64, unit string) string {
	if amount == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%s %ss", formatNumber(amount), unit)
}

func groupThousands(amount float64) string {
	raw := strconv.FormatFloat(math.Trunc(amount), 'f', 0, 64)

	negative := false
	if len(raw) > 0 && raw[0] == '-' {
		negative = true
		raw = raw[1:]
	}

	var out []byte
	for i, ch := range []byte(raw) {
		if i > 0 && (len(raw)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, ch)
	}

	if negative {
		return "-" + string(out)
	}
	return string(out)
}
