package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/habitstats"
	"github.com/lifelog/internal/localdate"
	"github.com/lifelog/internal/period"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUsageInvalid 在用量记录输入非法时返回
var ErrUsageInvalid = errors.New("invalid usage input")

// HabitStatsService 负责用量记录与统计窗口计算。
// 引擎本身是纯函数；这里只做取数、聚合和结果拼装。
type HabitStatsService struct {
	db *gorm.DB
}

// UsageInput 定义一次用量/进度记录
// ClientKey 为空时服务端补一个 uuid；重复提交同一 key 幂等
type UsageInput struct {
	HabitID    uint
	Amount     float64
	OccurredAt time.Time
	ClientKey  string
	Note       string
}

// QuotaProgress 汇总配额习惯当前周期的全部展示数据
type QuotaProgress struct {
	Bounds        period.Bounds
	PeriodLabel   string
	TimeRemaining string
	TotalUsed     float64
	Status        habitstats.PeriodStatus
	Remaining     float64
	QuickAdds     habitstats.QuickAddSet
	Stats         habitstats.QuotaStats
}

// BuildProgress 汇总目标习惯当前周期的全部展示数据
type BuildProgress struct {
	Bounds         period.Bounds
	PeriodLabel    string
	TimeRemaining  string
	TotalDone      float64
	Stats          habitstats.BuildStats
	WinStreak      int
	WinsLast7      int
	CompletionRate int
	QuickAdds      habitstats.QuickAddSet
}

// NewHabitStatsService 构造 HabitStatsService
func NewHabitStatsService(gdb *gorm.DB) *HabitStatsService {
	return &HabitStatsService{db: gdb}
}

// LogUsage 追加一条用量记录。
// habit_id + client_key 唯一，冲突时不覆盖（只追加语义），直接返回已有行。
func (s *HabitStatsService) LogUsage(input UsageInput) (*db.HabitUsageEvent, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrUsageInvalid)
	}

	habit, err := s.habit(input.HabitID)
	if err != nil {
		return nil, err
	}

	localDate, err := localdate.ToLocalDate(input.OccurredAt, habit.Timezone)
	if err != nil {
		return nil, err
	}

	clientKey := strings.TrimSpace(input.ClientKey)
	if clientKey == "" {
		clientKey = uuid.NewString()
	}

	event := db.HabitUsageEvent{
		HabitID:    habit.ID,
		Amount:     input.Amount,
		OccurredAt: input.OccurredAt,
		LocalDate:  localDate,
		ClientKey:  clientKey,
		Note:       strings.TrimSpace(input.Note),
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "client_key"}},
		DoNothing: true,
	}).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("log usage: %w", err)
	}

	if err := s.db.Where("habit_id = ? AND client_key = ?", habit.ID, clientKey).First(&event).Error; err != nil {
		return nil, fmt.Errorf("reload usage event: %w", err)
	}

	return &event, nil
}

// QuotaProgress 计算配额/戒除习惯当前周期的统计
func (s *HabitStatsService) QuotaProgress(habitID uint, now time.Time) (*QuotaProgress, error) {
	habit, err := s.habit(habitID)
	if err != nil {
		return nil, err
	}
	if habit.Kind != db.HabitKindQuota && habit.Kind != db.HabitKindAvoid {
		return nil, fmt.Errorf("%w: expected quota habit, got %s", ErrHabitKindMismatch, habit.Kind)
	}

	bounds, err := period.Current(now, habit.Timezone, period.Type(habit.PeriodType))
	if err != nil {
		return nil, err
	}

	totalUsed, err := s.sumUsage(habit.ID, bounds)
	if err != nil {
		return nil, err
	}

	closed, err := s.ListPeriods(habit.ID)
	if err != nil {
		return nil, err
	}

	// ListPeriods 已按起始日期降序返回，满足配额引擎的排序前置条件
	history := make([]habitstats.QuotaPeriod, 0, len(closed))
	for _, p := range closed {
		history = append(history, habitstats.QuotaPeriod{
			Status:           habitstats.PeriodStatus(p.Status),
			LocalPeriodStart: p.LocalPeriodStart,
		})
	}

	label, err := period.Label(bounds.LocalStartDate, period.Type(habit.PeriodType))
	if err != nil {
		return nil, err
	}

	return &QuotaProgress{
		Bounds:        bounds,
		PeriodLabel:   label,
		TimeRemaining: period.FormatRemaining(bounds.End, now),
		TotalUsed:     totalUsed,
		Status:        habitstats.CalculatePeriodStatus(totalUsed, habit.QuotaAmount, habit.NearThresholdPercent),
		Remaining:     habitstats.CalculateRemaining(totalUsed, habit.QuotaAmount),
		QuickAdds:     habitstats.QuickAdds(habit.QuotaAmount, habit.Unit),
		Stats:         habitstats.CalculateQuotaStats(history, habit.AllowSoftOver),
	}, nil
}

// BuildProgress 计算目标习惯当前周期的统计
func (s *HabitStatsService) BuildProgress(habitID uint, now time.Time) (*BuildProgress, error) {
	habit, err := s.habit(habitID)
	if err != nil {
		return nil, err
	}
	if habit.Kind != db.HabitKindBuild {
		return nil, fmt.Errorf("%w: expected build habit, got %s", ErrHabitKindMismatch, habit.Kind)
	}

	bounds, err := period.Current(now, habit.Timezone, period.Type(habit.PeriodType))
	if err != nil {
		return nil, err
	}

	totalDone, err := s.sumUsage(habit.ID, bounds)
	if err != nil {
		return nil, err
	}

	closed, err := s.ListPeriods(habit.ID)
	if err != nil {
		return nil, err
	}

	history := make([]habitstats.BuildPeriod, 0, len(closed))
	for _, p := range closed {
		history = append(history, habitstats.BuildPeriod{
			Status:           habitstats.BuildStatus(p.Status),
			LocalPeriodStart: p.LocalPeriodStart,
		})
	}

	label, err := period.Label(bounds.LocalStartDate, period.Type(habit.PeriodType))
	if err != nil {
		return nil, err
	}

	return &BuildProgress{
		Bounds:         bounds,
		PeriodLabel:    label,
		TimeRemaining:  period.FormatRemaining(bounds.End, now),
		TotalDone:      totalDone,
		Stats:          habitstats.CalculateBuildStats(totalDone, habit.TargetAmount),
		WinStreak:      habitstats.CalculateWinStreak(history),
		WinsLast7:      habitstats.CalculateWinsInPeriods(history, 7),
		CompletionRate: habitstats.CalculateCompletionRate(history),
		QuickAdds:      habitstats.BuildQuickAmounts(habit.TargetAmount),
	}, nil
}

// ListPeriods 返回习惯的已结算周期，按起始日期降序（最近在前）。
// 下游配额引擎依赖这个顺序，改动前先看引擎的前置条件说明。
func (s *HabitStatsService) ListPeriods(habitID uint) ([]db.HabitPeriod, error) {
	var periods []db.HabitPeriod
	if err := s.db.Where("habit_id = ?", habitID).
		Order("local_period_start DESC").
		Find(&periods).Error; err != nil {
		return nil, fmt.Errorf("list habit periods: %w", err)
	}
	return periods, nil
}

// CloseElapsedPeriods 结算已经结束的周期：
// 从最早一条用量记录所在窗口起逐个计算总量与状态并落库，
// 当前未结束的窗口不落库。重复调用幂等（纠错性重算覆盖旧值）。
func (s *HabitStatsService) CloseElapsedPeriods(habitID uint, now time.Time) (int, error) {
	habit, err := s.habit(habitID)
	if err != nil {
		return 0, err
	}
	if habit.Kind == db.HabitKindSchedule {
		return 0, fmt.Errorf("%w: schedule habits have no accounting periods", ErrHabitKindMismatch)
	}

	var first db.HabitUsageEvent
	if err := s.db.Where("habit_id = ?", habitID).
		Order("occurred_at ASC").
		First(&first).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("find first usage event: %w", err)
	}

	periodType := period.Type(habit.PeriodType)
	current, err := period.Current(now, habit.Timezone, periodType)
	if err != nil {
		return 0, err
	}

	bounds, err := period.ForDate(first.OccurredAt, habit.Timezone, periodType)
	if err != nil {
		return 0, err
	}

	closed := 0
	for bounds.Start.Before(current.Start) {
		total, err := s.sumUsage(habitID, bounds)
		if err != nil {
			return closed, err
		}

		status := s.periodStatus(*habit, total)
		row := db.HabitPeriod{
			HabitID:          habitID,
			LocalPeriodStart: bounds.LocalStartDate,
			LocalPeriodEnd:   bounds.LocalEndDate,
			Status:           status,
			TotalAmount:      total,
		}

		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "habit_id"}, {Name: "local_period_start"}},
			DoUpdates: clause.AssignmentColumns([]string{"local_period_end", "status", "total_amount", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return closed, fmt.Errorf("close habit period: %w", err)
		}
		closed++

		bounds, err = period.ForDate(bounds.End.Add(time.Nanosecond), habit.Timezone, periodType)
		if err != nil {
			return closed, err
		}
	}

	return closed, nil
}

func (s *HabitStatsService) periodStatus(habit db.Habit, total float64) string {
	if habit.Kind == db.HabitKindBuild {
		return string(habitstats.CalculateBuildStats(total, habit.TargetAmount).Status)
	}
	return string(habitstats.CalculatePeriodStatus(total, habit.QuotaAmount, habit.NearThresholdPercent))
}

// sumUsage 聚合窗口内的用量总和。
// 按本地日期字符串过滤，保证与周期边界同一套时区换算。
func (s *HabitStatsService) sumUsage(habitID uint, bounds period.Bounds) (float64, error) {
	var total float64
	if err := s.db.Model(&db.HabitUsageEvent{}).
		Where("habit_id = ?", habitID).
		Where("local_date BETWEEN ? AND ?", bounds.LocalStartDate, bounds.LocalEndDate).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sum usage events: %w", err)
	}
	return total, nil
}

func (s *HabitStatsService) habit(id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}
