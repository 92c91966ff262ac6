package service

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/purge"
	"gorm.io/gorm"
)

var (
	// ErrTrashKindUnknown 在回收站实体类型不受支持时返回
	ErrTrashKindUnknown = errors.New("unknown trash entity kind")
	// ErrTrashItemNotFound 在回收站内找不到目标实体时返回
	ErrTrashItemNotFound = errors.New("trashed item not found")
)

// 回收站支持的实体类型
const (
	TrashKindTask    = "task"
	TrashKindProject = "project"
	TrashKindHabit   = "habit"
	TrashKindNote    = "note"
)

// TrashService 实现日志簿/回收站：软删除实体的列出、恢复与到期清除。
// 清除判定只作用于 deleted_at 非空的行；已完成但未删除的实体
// 永远不会被扫描到，更不会被硬删除。
type TrashService struct {
	db *gorm.DB
}

// TrashedItem 是回收站列表的统一条目
type TrashedItem struct {
	Kind      string
	ID        uint
	Title     string
	DeletedAt time.Time
	Purgeable bool
}

// NewTrashService 构造 TrashService
func NewTrashService(gdb *gorm.DB) *TrashService {
	return &TrashService{db: gdb}
}

// List 返回回收站内的全部实体，按删除时间降序
func (s *TrashService) List(now time.Time) ([]TrashedItem, error) {
	var items []TrashedItem

	var tasks []db.Task
	if err := s.trashedRows(&tasks); err != nil {
		return nil, fmt.Errorf("list trashed tasks: %w", err)
	}
	for _, t := range tasks {
		items = append(items, trashedItem(TrashKindTask, t.ID, t.Title, t.DeletedAt.Time, now))
	}

	var projects []db.Project
	if err := s.trashedRows(&projects); err != nil {
		return nil, fmt.Errorf("list trashed projects: %w", err)
	}
	for _, p := range projects {
		items = append(items, trashedItem(TrashKindProject, p.ID, p.Name, p.DeletedAt.Time, now))
	}

	var habits []db.Habit
	if err := s.trashedRows(&habits); err != nil {
		return nil, fmt.Errorf("list trashed habits: %w", err)
	}
	for _, h := range habits {
		items = append(items, trashedItem(TrashKindHabit, h.ID, h.Title, h.DeletedAt.Time, now))
	}

	var notes []db.Note
	if err := s.trashedRows(&notes); err != nil {
		return nil, fmt.Errorf("list trashed notes: %w", err)
	}
	for _, n := range notes {
		items = append(items, trashedItem(TrashKindNote, n.ID, n.Title, n.DeletedAt.Time, now))
	}

	sortTrashedItems(items)
	return items, nil
}

// Restore 将软删除实体移出回收站
func (s *TrashService) Restore(kind string, id uint) error {
	model, err := modelForKind(kind)
	if err != nil {
		return err
	}

	result := s.db.Unscoped().Model(model).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return fmt.Errorf("restore %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTrashItemNotFound
	}

	return nil
}

// PurgeExpired 硬删除保留期已满的软删除实体及其从属数据。
// 返回被清除的实体数。不可逆，只能由保留策略驱动。
func (s *TrashService) PurgeExpired(now time.Time) (int, error) {
	cutoff := purge.Cutoff(now)
	purged := 0

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var habits []db.Habit
		if err := tx.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at <= ?", cutoff).
			Find(&habits).Error; err != nil {
			return err
		}
		for _, habit := range habits {
			// 级联清除习惯的从属行
			if err := tx.Unscoped().Where("habit_id = ?", habit.ID).Delete(&db.HabitUsageEvent{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("habit_id = ?", habit.ID).Delete(&db.HabitPeriod{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("habit_id = ?", habit.ID).Delete(&db.ScheduleOccurrence{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&db.Habit{}, habit.ID).Error; err != nil {
				return err
			}
			purged++
		}

		var tasks []db.Task
		if err := tx.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at <= ?", cutoff).
			Find(&tasks).Error; err != nil {
			return err
		}
		for _, task := range tasks {
			if err := tx.Unscoped().Where("task_id = ?", task.ID).Delete(&db.TimeEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&db.Task{}, task.ID).Error; err != nil {
				return err
			}
			purged++
		}

		var projects []db.Project
		if err := tx.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at <= ?", cutoff).
			Find(&projects).Error; err != nil {
			return err
		}
		for _, project := range projects {
			if err := tx.Unscoped().Delete(&db.Project{}, project.ID).Error; err != nil {
				return err
			}
			purged++
		}

		var notes []db.Note
		if err := tx.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at <= ?", cutoff).
			Find(&notes).Error; err != nil {
			return err
		}
		for _, note := range notes {
			if err := tx.Unscoped().Where("source_note_id = ?", note.ID).Delete(&db.NoteLink{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&db.Note{}, note.ID).Error; err != nil {
				return err
			}
			purged++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}

	return purged, nil
}

func (s *TrashService) trashedRows(dest any) error {
	return s.db.Unscoped().Where("deleted_at IS NOT NULL").Find(dest).Error
}

func trashedItem(kind string, id uint, title string, deletedAt, now time.Time) TrashedItem {
	return TrashedItem{
		Kind:      kind,
		ID:        id,
		Title:     title,
		DeletedAt: deletedAt,
		Purgeable: purge.IsPurgeable(deletedAt, now),
	}
}

func sortTrashedItems(items []TrashedItem) {
	slices.SortFunc(items, func(a, b TrashedItem) int {
		return b.DeletedAt.Compare(a.DeletedAt)
	})
}

func modelForKind(kind string) (any, error) {
	switch kind {
	case TrashKindTask:
		return &db.Task{}, nil
	case TrashKindProject:
		return &db.Project{}, nil
	case TrashKindHabit:
		return &db.Habit{}, nil
	case TrashKindNote:
		return &db.Note{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrTrashKindUnknown, kind)
	}
}
