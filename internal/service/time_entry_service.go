package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/localdate"
	"gorm.io/gorm"
)

var (
	// ErrTimeEntryNotFound 在指定计时记录不存在时返回
	ErrTimeEntryNotFound = errors.New("time entry not found")
	// ErrNoRunningEntry 在请求停止计时但没有进行中的记录时返回
	ErrNoRunningEntry = errors.New("no running time entry")
)

// TimeEntryService 负责计时器逻辑
// 同一时刻至多一条进行中的记录：启动新计时会先停止旧的
type TimeEntryService struct {
	db *gorm.DB
}

// TimeEntryInput 定义启动计时的输入
type TimeEntryInput struct {
	TaskID      *uint
	Description string
	StartedAt   time.Time
}

// NewTimeEntryService 构造 TimeEntryService
func NewTimeEntryService(gdb *gorm.DB) *TimeEntryService {
	return &TimeEntryService{db: gdb}
}

// Start 启动一段计时，自动停止之前进行中的记录
func (s *TimeEntryService) Start(input TimeEntryInput) (*db.TimeEntry, error) {
	if _, err := s.stopRunning(input.StartedAt); err != nil && !errors.Is(err, ErrNoRunningEntry) {
		return nil, err
	}

	entry := db.TimeEntry{
		TaskID:      input.TaskID,
		Description: strings.TrimSpace(input.Description),
		StartedAt:   input.StartedAt,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("start time entry: %w", err)
	}
	return &entry, nil
}

// Stop 停止进行中的计时
func (s *TimeEntryService) Stop(now time.Time) (*db.TimeEntry, error) {
	return s.stopRunning(now)
}

// Running 返回进行中的计时记录，没有则返回 ErrNoRunningEntry
func (s *TimeEntryService) Running() (*db.TimeEntry, error) {
	var entry db.TimeEntry
	if err := s.db.Where("stopped_at IS NULL").Order("started_at DESC").First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRunningEntry
		}
		return nil, fmt.Errorf("find running entry: %w", err)
	}
	return &entry, nil
}

// ListBetween 返回起始时刻落在区间内的计时记录
func (s *TimeEntryService) ListBetween(start, end time.Time) ([]db.TimeEntry, error) {
	var entries []db.TimeEntry
	if err := s.db.Where("started_at BETWEEN ? AND ?", start, end).
		Order("started_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	return entries, nil
}

// DailyTotals 按本地日期汇总区间内的计时分钟数
// 日期换算走统一的时区工具，避免宿主时区污染
func (s *TimeEntryService) DailyTotals(start, end time.Time, tz string) (map[string]int, error) {
	entries, err := s.ListBetween(start, end)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, entry := range entries {
		if entry.StoppedAt == nil {
			continue
		}

		day, err := localdate.ToLocalDate(entry.StartedAt, tz)
		if err != nil {
			return nil, err
		}

		totals[day] += int(entry.StoppedAt.Sub(entry.StartedAt).Minutes())
	}

	return totals, nil
}

// Delete 删除一条计时记录
func (s *TimeEntryService) Delete(id uint) error {
	if err := s.db.Delete(&db.TimeEntry{}, id).Error; err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return nil
}

func (s *TimeEntryService) stopRunning(now time.Time) (*db.TimeEntry, error) {
	entry, err := s.Running()
	if err != nil {
		return nil, err
	}

	entry.StoppedAt = &now
	if err := s.db.Save(entry).Error; err != nil {
		return nil, fmt.Errorf("stop time entry: %w", err)
	}
	return entry, nil
}
