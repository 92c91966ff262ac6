package db

import (
	"time"

	"gorm.io/gorm"
)

// 习惯类型：quota 限额类、build 目标类、schedule 计划类、avoid 戒除类
const (
	HabitKindBuild    = "build"
	HabitKindQuota    = "quota"
	HabitKindSchedule = "schedule"
	HabitKindAvoid    = "avoid"
)

// Habit 定义了习惯模型
// 配额/目标字段按 Kind 选用：quota/avoid 用 QuotaAmount，build 用 TargetAmount，
// schedule 用 ScheduleFrequency/ScheduleWeekdays/ScheduleTime。
// Timezone 为 IANA 标识，所有周期边界以它为准。
// gorm.Model 自带的 DeletedAt 即回收站软删除标记。
type Habit struct {
	gorm.Model
	Title                string
	Kind                 string
	Unit                 string
	PeriodType           string // day/week/month
	Timezone             string
	QuotaAmount          float64
	TargetAmount         float64
	NearThresholdPercent float64
	AllowSoftOver        bool
	ScheduleFrequency    string // daily/weekly/custom
	ScheduleWeekdays     string // "0,1,3"，周日为 0
	ScheduleTime         string // "15:04"
	Active               bool
	ArchivedAt           *time.Time
}

// HabitPeriod 记录一个已结算的统计窗口
// habit_id + local_period_start 唯一，窗口互不重叠；
// 结算后除纠错性重算外不再变更。
type HabitPeriod struct {
	gorm.Model
	HabitID          uint   `gorm:"index;index:idx_habit_period_unique,unique"`
	Habit            Habit  `gorm:"constraint:OnDelete:CASCADE"`
	LocalPeriodStart string `gorm:"index:idx_habit_period_unique,unique"`
	LocalPeriodEnd   string
	Status           string
	TotalAmount      float64
}

// TableName 重写确保唯一索引作用到 habit_id + local_period_start
func (HabitPeriod) TableName() string {
	return "habit_periods"
}

// HabitUsageEvent 是一条只追加的用量记录
// ClientKey 携带客户端生成的 uuid，与 habit_id 组成唯一索引保证幂等；
// 修正错误记录靠补偿条目，不做破坏性编辑。
type HabitUsageEvent struct {
	gorm.Model
	HabitID    uint  `gorm:"index;index:idx_habit_usage_key,unique"`
	Habit      Habit `gorm:"constraint:OnDelete:CASCADE"`
	Amount     float64
	OccurredAt time.Time
	LocalDate  string `gorm:"index"`
	ClientKey  string `gorm:"index:idx_habit_usage_key,unique"`
	Note       string
}

// ScheduleOccurrence 持久化一次已记录结果的计划实例
// 仅在用户记录了结果（completed/skipped 等）时落库，
// pending 实例由生成器惰性合成，不落库。
type ScheduleOccurrence struct {
	gorm.Model
	HabitID     uint      `gorm:"index;index:idx_schedule_occurrence_unique,unique"`
	Habit       Habit     `gorm:"constraint:OnDelete:CASCADE"`
	ScheduledAt time.Time `gorm:"index:idx_schedule_occurrence_unique,unique"`
	LocalDate   string
	Status      string
}
