package db

import (
	"time"

	"gorm.io/gorm"
)

// 任务状态
const (
	TaskStatusTodo = "todo"
	TaskStatusDone = "done"
)

// Project 定义了项目模型，任务可归属其下
type Project struct {
	gorm.Model
	Name       string
	Color      string
	ArchivedAt *time.Time
}

// Task 定义了任务模型
// CompletedAt 标记完成；完成与软删除互不相关，
// 已完成的任务永不进入清除流程。
type Task struct {
	gorm.Model
	Title       string
	Note        string
	ProjectID   *uint
	Project     *Project `gorm:"constraint:OnDelete:SET NULL"`
	Status      string
	DueDate     *time.Time
	CompletedAt *time.Time
}
