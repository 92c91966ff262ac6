package schedule

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lifelog/internal/localdate"
)

// Frequency 表示打卡计划的重复频率
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

// Status 表示单次打卡实例的状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusMissed    Status = "missed"
)

var (
	// ErrInvalidPattern 在计划配置非法时返回
	ErrInvalidPattern = errors.New("invalid schedule pattern")
	// ErrInvalidWindow 在请求窗口起止颠倒时返回
	ErrInvalidWindow = errors.New("invalid occurrence window")
)

// Pattern 描述一条重复计划。
// 每日计划忽略 Weekdays；weekly/custom 必须提供非空的星期集合。
// 生成过占用实例后修改 Pattern 不会回溯改写已记录的状态。
type Pattern struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	TimeOfDay string // "15:04"
	Timezone  string
}

// Occurrence 是计划的一次预期实例。
// Recorded 为 true 表示状态来自持久化记录而非惰性生成。
type Occurrence struct {
	ScheduledAt time.Time
	LocalDate   string
	Status      Status
	Recorded    bool
}

// Valid 校验状态取值
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusSkipped, StatusMissed:
		return true
	}
	return false
}

func (p Pattern) matches(weekday time.Weekday) bool {
	if p.Frequency == FrequencyDaily {
		return true
	}
	return slices.Contains(p.Weekdays, weekday)
}

// Validate 校验计划配置是否可以展开
func (p Pattern) Validate() error {
	switch p.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly, FrequencyCustom:
		if len(p.Weekdays) == 0 {
			return fmt.Errorf("%w: weekday set is empty", ErrInvalidPattern)
		}
	default:
		return fmt.Errorf("%w: unsupported frequency %s", ErrInvalidPattern, p.Frequency)
	}

	if _, err := parseTimeOfDay(p.TimeOfDay); err != nil {
		return err
	}

	return nil
}

func parseTimeOfDay(raw string) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time of day %q", ErrInvalidPattern, raw)
	}
	return t, nil
}

// Generate 将计划在 [from, to] 窗口内展开为具体实例并与已记录的实例合并。
//
// 每个命中的本地日期产出一个实例；若同一 (计划时刻) 已存在
// 非 pending 的持久化记录，则原样使用其状态，绝不生成重复的
// 合成条目，也绝不覆盖已记录的结果。未记录的实例按计划时刻
// 与 now 的关系标记：现在或将来为 pending，严格过去为 missed。
//
// 实例始终按需惰性生成，长期存在的计划不会预先批量落库。
func Generate(p Pattern, from, to, now time.Time, recorded []Occurrence) ([]Occurrence, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to before from", ErrInvalidWindow)
	}

	loc, err := localdate.Location(p.Timezone)
	if err != nil {
		return nil, err
	}

	tod, err := parseTimeOfDay(p.TimeOfDay)
	if err != nil {
		return nil, err
	}

	recordedAt := make(map[int64]Occurrence, len(recorded))
	for _, r := range recorded {
		if r.Status != StatusPending {
			recordedAt[r.ScheduledAt.Unix()] = r
		}
	}

	y, m, d := from.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var out []Occurrence
	for !day.After(to) {
		if p.matches(day.Weekday()) {
			at := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, loc)

			if !at.Before(from) && !at.After(to) {
				occurrence := Occurrence{
					ScheduledAt: at,
					LocalDate:   day.Format(localdate.DateFormat),
					Status:      StatusPending,
				}

				if rec, ok := recordedAt[at.Unix()]; ok {
					occurrence.Status = rec.Status
					occurrence.Recorded = true
				} else if at.Before(now) {
					occurrence.Status = StatusMissed
				}

				out = append(out, occurrence)
			}
		}

		day = day.AddDate(0, 0, 1)
	}

	return out, nil
}

// FormatScheduledTime 在计划所属时区内渲染时刻，避免泄漏 UTC 时间。
func FormatScheduledTime(t time.Time, tz string) (string, error) {
	loc, err := localdate.Location(tz)
	if err != nil {
		return "", err
	}

	return t.In(loc).Format("3:04 PM"), nil
}

// FormatPattern 渲染计划的展示文案，例如 "Daily at 8:00 AM"。
func FormatPattern(p Pattern) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	tod, err := parseTimeOfDay(p.TimeOfDay)
	if err != nil {
		return "", err
	}
	clock := tod.Format("3:04 PM")

	switch p.Frequency {
	case FrequencyDaily:
		return "Daily at " + clock, nil
	default:
		sorted := slices.Clone(p.Weekdays)
		slices.Sort(sorted)

		names := make([]string, 0, len(sorted))
		for _, wd := range sorted {
			names = append(names, wd.String()[:3])
		}

		return fmt.Sprintf("%s at %s", strings.Join(names, ", "), clock), nil
	}
}

// StatusLabel 返回状态的展示文案
func StatusLabel(s Status) string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusSkipped:
		return "Skipped"
	case StatusMissed:
		return "Missed"
	default:
		return "Pending"
	}
}
