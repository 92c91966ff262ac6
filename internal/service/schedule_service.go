package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/localdate"
	"github.com/lifelog/internal/schedule"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOccurrenceInvalid 在记录打卡结果的输入非法时返回
var ErrOccurrenceInvalid = errors.New("invalid occurrence input")

// ScheduleService 负责计划类习惯的实例展开与结果记录。
// 实例按需生成，只有用户记录过结果的实例才落库。
type ScheduleService struct {
	db *gorm.DB
}

// NewScheduleService 构造 ScheduleService
func NewScheduleService(gdb *gorm.DB) *ScheduleService {
	return &ScheduleService{db: gdb}
}

// OccurrencesBetween 展开 [from, to] 窗口内的计划实例。
// 已记录结果的实例原样返回，未记录的按 now 合成 pending/missed。
func (s *ScheduleService) OccurrencesBetween(habitID uint, from, to, now time.Time) ([]schedule.Occurrence, error) {
	habit, err := s.habit(habitID)
	if err != nil {
		return nil, err
	}
	if habit.Kind != db.HabitKindSchedule {
		return nil, fmt.Errorf("%w: expected schedule habit, got %s", ErrHabitKindMismatch, habit.Kind)
	}

	var rows []db.ScheduleOccurrence
	if err := s.db.Where("habit_id = ?", habitID).
		Where("scheduled_at BETWEEN ? AND ?", from, to).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list schedule occurrences: %w", err)
	}

	recorded := make([]schedule.Occurrence, 0, len(rows))
	for _, row := range rows {
		recorded = append(recorded, schedule.Occurrence{
			ScheduledAt: row.ScheduledAt,
			LocalDate:   row.LocalDate,
			Status:      schedule.Status(row.Status),
			Recorded:    true,
		})
	}

	return schedule.Generate(PatternFor(*habit), from, to, now, recorded)
}

// RecordOccurrence 记录一次实例的最终结果（completed/skipped/missed）。
// pending 不是可记录的结果；同一实例重复记录时覆盖旧结果。
func (s *ScheduleService) RecordOccurrence(habitID uint, scheduledAt time.Time, status schedule.Status) (*db.ScheduleOccurrence, error) {
	if !status.Valid() || status == schedule.StatusPending {
		return nil, fmt.Errorf("%w: status %q is not recordable", ErrOccurrenceInvalid, status)
	}

	habit, err := s.habit(habitID)
	if err != nil {
		return nil, err
	}
	if habit.Kind != db.HabitKindSchedule {
		return nil, fmt.Errorf("%w: expected schedule habit, got %s", ErrHabitKindMismatch, habit.Kind)
	}

	localDate, err := localdate.ToLocalDate(scheduledAt, habit.Timezone)
	if err != nil {
		return nil, err
	}

	row := db.ScheduleOccurrence{
		HabitID:     habitID,
		ScheduledAt: scheduledAt,
		LocalDate:   localDate,
		Status:      string(status),
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "scheduled_at"}},
		DoUpdates: clause.AssignmentColumns([]string{"local_date", "status", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("record occurrence: %w", err)
	}

	if err := s.db.Where("habit_id = ? AND scheduled_at = ?", habitID, scheduledAt).First(&row).Error; err != nil {
		return nil, fmt.Errorf("reload occurrence: %w", err)
	}

	return &row, nil
}

// ClearOccurrence 撤销一次已记录的结果，该实例回到惰性合成状态
func (s *ScheduleService) ClearOccurrence(habitID uint, scheduledAt time.Time) error {
	if err := s.db.Unscoped().
		Where("habit_id = ? AND scheduled_at = ?", habitID, scheduledAt).
		Delete(&db.ScheduleOccurrence{}).Error; err != nil {
		return fmt.Errorf("clear occurrence: %w", err)
	}
	return nil
}

func (s *ScheduleService) habit(id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}
