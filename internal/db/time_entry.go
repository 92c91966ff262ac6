package db

import (
	"time"

	"gorm.io/gorm"
)

// TimeEntry 记录一段计时
// StoppedAt 为空表示计时进行中；同一时刻至多一条进行中的记录，
// 由服务层在启动新计时前停止旧计时保证。
type TimeEntry struct {
	gorm.Model
	TaskID      *uint
	Task        *Task `gorm:"constraint:OnDelete:CASCADE"`
	Description string
	StartedAt   time.Time
	StoppedAt   *time.Time
}
