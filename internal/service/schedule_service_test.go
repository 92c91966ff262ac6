package service

import (
	"errors"
	"testing"
	"time"

	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/schedule"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupScheduleTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.Habit{}, &db.ScheduleOccurrence{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func createScheduleHabit(t *testing.T) *db.Habit {
	t.Helper()
	habit, err := NewHabitService(db.DB).Create(HabitInput{
		Title:             "晨间冥想",
		Kind:              "schedule",
		Timezone:          "UTC",
		ScheduleFrequency: "daily",
		ScheduleTime:      "08:00",
	})
	if err != nil {
		t.Fatalf("failed to create schedule habit: %v", err)
	}
	return habit
}

func TestScheduleOccurrencesReconciliation(t *testing.T) {
	cleanup := setupScheduleTestDB(t)
	defer cleanup()

	svc := NewScheduleService(db.DB)
	habit := createScheduleHabit(t)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 7, 23, 59, 59, 0, time.UTC)
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	slot := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	if _, err := svc.RecordOccurrence(habit.ID, slot, schedule.StatusCompleted); err != nil {
		t.Fatalf("RecordOccurrence returned error: %v", err)
	}

	occurrences, err := svc.OccurrencesBetween(habit.ID, from, to, now)
	if err != nil {
		t.Fatalf("OccurrencesBetween returned error: %v", err)
	}
	if len(occurrences) != 7 {
		t.Fatalf("expected 7 occurrences, got %d", len(occurrences))
	}

	statuses := make(map[string]schedule.Occurrence, len(occurrences))
	for _, occ := range occurrences {
		statuses[occ.LocalDate] = occ
	}

	// 已记录的结果原样返回
	if got := statuses["2025-03-03"]; got.Status != schedule.StatusCompleted || !got.Recorded {
		t.Fatalf("recorded slot: expected completed/recorded, got %+v", got)
	}
	// 过去未记录的合成 missed，未来合成 pending
	if got := statuses["2025-03-04"]; got.Status != schedule.StatusMissed || got.Recorded {
		t.Fatalf("past slot: expected synthesized missed, got %+v", got)
	}
	if got := statuses["2025-03-06"]; got.Status != schedule.StatusPending {
		t.Fatalf("future slot: expected pending, got %+v", got)
	}
}

func TestScheduleOccurrencesNonUTCTimezone(t *testing.T) {
	cleanup := setupScheduleTestDB(t)
	defer cleanup()

	svc := NewScheduleService(db.DB)
	habit, err := NewHabitService(db.DB).Create(HabitInput{
		Title:             "睡前拉伸",
		Kind:              "schedule",
		Timezone:          "Asia/Tokyo",
		ScheduleFrequency: "daily",
		ScheduleTime:      "00:30",
	})
	if err != nil {
		t.Fatalf("failed to create tokyo habit: %v", err)
	}

	// 按东京本地日取窗口：本地 2025-03-05 整天
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	from := time.Date(2025, 3, 5, 0, 0, 0, 0, tokyo)
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	occurrences, err := svc.OccurrencesBetween(habit.ID, from, to, now)
	if err != nil {
		t.Fatalf("OccurrencesBetween returned error: %v", err)
	}
	if len(occurrences) != 1 {
		t.Fatalf("expected 1 occurrence in single local day, got %d: %+v", len(occurrences), occurrences)
	}
	occ := occurrences[0]
	if occ.LocalDate != "2025-03-05" {
		t.Fatalf("expected local date 2025-03-05, got %q", occ.LocalDate)
	}
	// 东京 00:30 即前一天 UTC 15:30
	if want := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC); !occ.ScheduledAt.UTC().Equal(want) {
		t.Fatalf("expected scheduled instant %v, got %v", want, occ.ScheduledAt.UTC())
	}
	if occ.Status != schedule.StatusMissed {
		t.Fatalf("past unrecorded slot expected missed, got %q", occ.Status)
	}
}

func TestRecordOccurrenceOverwriteAndClear(t *testing.T) {
	cleanup := setupScheduleTestDB(t)
	defer cleanup()

	svc := NewScheduleService(db.DB)
	habit := createScheduleHabit(t)
	slot := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	if _, err := svc.RecordOccurrence(habit.ID, slot, schedule.StatusCompleted); err != nil {
		t.Fatalf("RecordOccurrence returned error: %v", err)
	}

	// 重复记录覆盖旧结果，不产生第二行
	row, err := svc.RecordOccurrence(habit.ID, slot, schedule.StatusSkipped)
	if err != nil {
		t.Fatalf("overwriting RecordOccurrence returned error: %v", err)
	}
	if row.Status != string(schedule.StatusSkipped) {
		t.Fatalf("expected skipped, got %s", row.Status)
	}

	var count int64
	db.DB.Model(&db.ScheduleOccurrence{}).Where("habit_id = ?", habit.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 occurrence row, got %d", count)
	}

	if err := svc.ClearOccurrence(habit.ID, slot); err != nil {
		t.Fatalf("ClearOccurrence returned error: %v", err)
	}
	db.DB.Model(&db.ScheduleOccurrence{}).Where("habit_id = ?", habit.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected occurrence row removed, got %d", count)
	}

	// 撤销后该实例回到惰性合成状态
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	occurrences, err := svc.OccurrencesBetween(habit.ID, slot, slot, now)
	if err != nil {
		t.Fatalf("OccurrencesBetween returned error: %v", err)
	}
	if len(occurrences) != 1 || occurrences[0].Status != schedule.StatusMissed || occurrences[0].Recorded {
		t.Fatalf("expected synthesized missed after clear, got %+v", occurrences)
	}
}

func TestRecordOccurrenceRejectsPending(t *testing.T) {
	cleanup := setupScheduleTestDB(t)
	defer cleanup()

	svc := NewScheduleService(db.DB)
	habit := createScheduleHabit(t)
	slot := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	// pending 不是可记录的结果
	if _, err := svc.RecordOccurrence(habit.ID, slot, schedule.StatusPending); !errors.Is(err, ErrOccurrenceInvalid) {
		t.Fatalf("expected ErrOccurrenceInvalid for pending, got %v", err)
	}
	if _, err := svc.RecordOccurrence(habit.ID, slot, schedule.Status("done")); !errors.Is(err, ErrOccurrenceInvalid) {
		t.Fatalf("expected ErrOccurrenceInvalid for unknown status, got %v", err)
	}
}

func TestScheduleServiceKindMismatch(t *testing.T) {
	cleanup := setupScheduleTestDB(t)
	defer cleanup()

	habit, err := NewHabitService(db.DB).Create(HabitInput{
		Title:       "屏幕时间",
		Kind:        "quota",
		PeriodType:  "day",
		Timezone:    "UTC",
		QuotaAmount: 60,
	})
	if err != nil {
		t.Fatalf("failed to create quota habit: %v", err)
	}

	svc := NewScheduleService(db.DB)
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	if _, err := svc.OccurrencesBetween(habit.ID, now.AddDate(0, 0, -1), now, now); !errors.Is(err, ErrHabitKindMismatch) {
		t.Fatalf("expected ErrHabitKindMismatch, got %v", err)
	}
}
