package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/habitstats"
	"github.com/lifelog/internal/localdate"
	"github.com/lifelog/internal/period"
	"github.com/lifelog/internal/schedule"
	"gorm.io/gorm"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitInvalidConfig 当习惯配置异常时返回
	ErrHabitInvalidConfig = errors.New("invalid habit configuration")
	// ErrHabitKindMismatch 当按错误的习惯类型请求统计时返回
	ErrHabitKindMismatch = errors.New("habit kind mismatch")
)

// HabitService 负责 Habit 数据的增删改查
// 配置校验集中在这里：坏时区、坏周期类型必须在写入边界报错，
// 绝不能带病落库再让统计引擎崩溃
type HabitService struct {
	db *gorm.DB
}

// HabitFilter 描述列表过滤条件
type HabitFilter struct {
	Kind     string
	Archived *bool
	Search   string
}

// HabitInput 定义创建/更新习惯时可配置字段
type HabitInput struct {
	Title                string
	Kind                 string
	Unit                 string
	PeriodType           string
	Timezone             string
	QuotaAmount          float64
	TargetAmount         float64
	NearThresholdPercent float64
	AllowSoftOver        bool
	ScheduleFrequency    string
	ScheduleWeekdays     []time.Weekday
	ScheduleTime         string
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回习惯集合，支持基本筛选
func (s *HabitService) List(filter HabitFilter) ([]db.Habit, error) {
	var habits []db.Habit

	query := s.db.Model(&db.Habit{})

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Archived != nil {
		if *filter.Archived {
			query = query.Where("archived_at IS NOT NULL")
		} else {
			query = query.Where("archived_at IS NULL")
		}
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("title LIKE ?", like)
	}

	if err := query.Order("created_at DESC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	return habits, nil
}

// Get 根据 ID 获取习惯
func (s *HabitService) Get(id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯
func (s *HabitService) Create(input HabitInput) (*db.Habit, error) {
	normalized, err := normalizeHabitInput(input)
	if err != nil {
		return nil, err
	}

	habit := db.Habit{
		Title:                strings.TrimSpace(normalized.Title),
		Kind:                 normalized.Kind,
		Unit:                 normalized.Unit,
		PeriodType:           normalized.PeriodType,
		Timezone:             normalized.Timezone,
		QuotaAmount:          normalized.QuotaAmount,
		TargetAmount:         normalized.TargetAmount,
		NearThresholdPercent: normalized.NearThresholdPercent,
		AllowSoftOver:        normalized.AllowSoftOver,
		ScheduleFrequency:    normalized.ScheduleFrequency,
		ScheduleWeekdays:     encodeWeekdays(normalized.ScheduleWeekdays),
		ScheduleTime:         normalized.ScheduleTime,
		Active:               true,
	}

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// Update 更新习惯
// 修改计划类配置不会回溯改写已记录的打卡结果
func (s *HabitService) Update(id uint, input HabitInput) (*db.Habit, error) {
	normalized, err := normalizeHabitInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	existing.Title = strings.TrimSpace(normalized.Title)
	existing.Kind = normalized.Kind
	existing.Unit = normalized.Unit
	existing.PeriodType = normalized.PeriodType
	existing.Timezone = normalized.Timezone
	existing.QuotaAmount = normalized.QuotaAmount
	existing.TargetAmount = normalized.TargetAmount
	existing.NearThresholdPercent = normalized.NearThresholdPercent
	existing.AllowSoftOver = normalized.AllowSoftOver
	existing.ScheduleFrequency = normalized.ScheduleFrequency
	existing.ScheduleWeekdays = encodeWeekdays(normalized.ScheduleWeekdays)
	existing.ScheduleTime = normalized.ScheduleTime

	if err := s.db.Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return existing, nil
}

// Archive 归档习惯：保留数据但停止统计展示
func (s *HabitService) Archive(id uint, now time.Time) (*db.Habit, error) {
	habit, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	habit.ArchivedAt = &now
	habit.Active = false
	if err := s.db.Save(habit).Error; err != nil {
		return nil, fmt.Errorf("archive habit: %w", err)
	}
	return habit, nil
}

// Unarchive 取消归档
func (s *HabitService) Unarchive(id uint) (*db.Habit, error) {
	habit, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	habit.ArchivedAt = nil
	habit.Active = true
	if err := s.db.Save(habit).Error; err != nil {
		return nil, fmt.Errorf("unarchive habit: %w", err)
	}
	return habit, nil
}

// Delete 将习惯移入回收站（软删除，60 天后可被清除）
func (s *HabitService) Delete(id uint) error {
	if err := s.db.Delete(&db.Habit{}, id).Error; err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// PatternFor 从习惯配置还原打卡计划
func PatternFor(habit db.Habit) schedule.Pattern {
	return schedule.Pattern{
		Frequency: schedule.Frequency(habit.ScheduleFrequency),
		Weekdays:  parseWeekdays(habit.ScheduleWeekdays),
		TimeOfDay: habit.ScheduleTime,
		Timezone:  habit.Timezone,
	}
}

func normalizeHabitInput(input HabitInput) (HabitInput, error) {
	input.Kind = strings.TrimSpace(strings.ToLower(input.Kind))
	switch input.Kind {
	case db.HabitKindBuild, db.HabitKindQuota, db.HabitKindSchedule, db.HabitKindAvoid:
	default:
		return input, fmt.Errorf("%w: unsupported kind %q", ErrHabitInvalidConfig, input.Kind)
	}

	if strings.TrimSpace(input.Title) == "" {
		return input, fmt.Errorf("%w: title is required", ErrHabitInvalidConfig)
	}

	input.Unit = strings.TrimSpace(strings.ToLower(input.Unit))
	if input.Unit == "" {
		input.Unit = habitstats.UnitCount
	}

	// 坏时区在这里报错，不能静默回退
	input.Timezone = strings.TrimSpace(input.Timezone)
	if _, err := localdate.Location(input.Timezone); err != nil {
		return input, fmt.Errorf("%w: %v", ErrHabitInvalidConfig, err)
	}

	switch input.Kind {
	case db.HabitKindQuota, db.HabitKindAvoid:
		if !period.Type(input.PeriodType).Valid() {
			return input, fmt.Errorf("%w: unsupported period type %q", ErrHabitInvalidConfig, input.PeriodType)
		}
		if input.QuotaAmount <= 0 {
			return input, fmt.Errorf("%w: quota amount must be positive", ErrHabitInvalidConfig)
		}
		if input.NearThresholdPercent == 0 {
			input.NearThresholdPercent = 80
		}
		if input.NearThresholdPercent <= 0 || input.NearThresholdPercent >= 100 {
			return input, fmt.Errorf("%w: near threshold must be within (0,100)", ErrHabitInvalidConfig)
		}
	case db.HabitKindBuild:
		if !period.Type(input.PeriodType).Valid() {
			return input, fmt.Errorf("%w: unsupported period type %q", ErrHabitInvalidConfig, input.PeriodType)
		}
		if input.TargetAmount <= 0 {
			return input, fmt.Errorf("%w: target amount must be positive", ErrHabitInvalidConfig)
		}
	case db.HabitKindSchedule:
		pattern := schedule.Pattern{
			Frequency: schedule.Frequency(strings.TrimSpace(strings.ToLower(input.ScheduleFrequency))),
			Weekdays:  input.ScheduleWeekdays,
			TimeOfDay: input.ScheduleTime,
			Timezone:  input.Timezone,
		}
		if err := pattern.Validate(); err != nil {
			return input, fmt.Errorf("%w: %v", ErrHabitInvalidConfig, err)
		}
		input.ScheduleFrequency = string(pattern.Frequency)
	}

	return input, nil
}

func encodeWeekdays(weekdays []time.Weekday) string {
	if len(weekdays) == 0 {
		return ""
	}

	parts := make([]string, 0, len(weekdays))
	for _, wd := range weekdays {
		parts = append(parts, strconv.Itoa(int(wd)))
	}
	return strings.Join(parts, ",")
}

func parseWeekdays(raw string) []time.Weekday {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var weekdays []time.Weekday
	for _, part := range strings.Split(trimmed, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value < 0 || value > 6 {
			continue
		}
		weekdays = append(weekdays, time.Weekday(value))
	}
	return weekdays
}
