package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lifelog/internal/config"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/localdate"
)

// 演示数据生成器
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成演示数据...")

	if err := db.EnsureUser("owner", "owner123", cfg.DefaultTimezone); err != nil {
		log.Fatal("创建用户失败:", err)
	}

	createDemoHabits(cfg.DefaultTimezone)
	createDemoTasks()
	createDemoNotes()

	fmt.Println("演示数据生成完成！")
	fmt.Println("用户: owner (密码: owner123)")
}

// 创建演示习惯，覆盖四种类型
func createDemoHabits(timezone string) {
	var count int64
	db.DB.Model(&db.Habit{}).Count(&count)
	if count > 0 {
		fmt.Println("习惯已存在，跳过创建")
		return
	}

	habits := []db.Habit{
		{
			Title:                "咖啡因",
			Kind:                 db.HabitKindQuota,
			Unit:                 "mg",
			PeriodType:           "day",
			Timezone:             timezone,
			QuotaAmount:          200,
			NearThresholdPercent: 80,
			Active:               true,
		},
		{
			Title:                "外卖开销",
			Kind:                 db.HabitKindQuota,
			Unit:                 "currency",
			PeriodType:           "week",
			Timezone:             timezone,
			QuotaAmount:          150,
			NearThresholdPercent: 80,
			AllowSoftOver:        true,
			Active:               true,
		},
		{
			Title:        "俯卧撑",
			Kind:         db.HabitKindBuild,
			Unit:         "count",
			PeriodType:   "day",
			Timezone:     timezone,
			TargetAmount: 50,
			Active:       true,
		},
		{
			Title:                "刷短视频",
			Kind:                 db.HabitKindAvoid,
			Unit:                 "minutes",
			PeriodType:           "day",
			Timezone:             timezone,
			QuotaAmount:          30,
			NearThresholdPercent: 80,
			Active:               true,
		},
		{
			Title:             "晨间冥想",
			Kind:              db.HabitKindSchedule,
			PeriodType:        "day",
			Timezone:          timezone,
			ScheduleFrequency: "custom",
			ScheduleWeekdays:  "1,3,5",
			ScheduleTime:      "07:30",
			Active:            true,
		},
	}

	for i := range habits {
		if err := db.DB.Create(&habits[i]).Error; err != nil {
			log.Fatal("创建习惯失败:", err)
		}
	}

	// 给限额和目标习惯补几天历史用量
	now := time.Now()
	for day := 1; day <= 5; day++ {
		occurredAt := now.AddDate(0, 0, -day)
		localDate, err := localdate.ToLocalDate(occurredAt, timezone)
		if err != nil {
			log.Fatal("日期换算失败:", err)
		}

		events := []db.HabitUsageEvent{
			{HabitID: habits[0].ID, Amount: 120, OccurredAt: occurredAt, LocalDate: localDate, ClientKey: uuid.NewString()},
			{HabitID: habits[2].ID, Amount: float64(30 + day*5), OccurredAt: occurredAt, LocalDate: localDate, ClientKey: uuid.NewString()},
		}
		for i := range events {
			if err := db.DB.Create(&events[i]).Error; err != nil {
				log.Fatal("创建用量记录失败:", err)
			}
		}
	}

	fmt.Println("✅ 演示习惯创建完成")
}

// 创建演示任务与项目
func createDemoTasks() {
	var count int64
	db.DB.Model(&db.Task{}).Count(&count)
	if count > 0 {
		fmt.Println("任务已存在，跳过创建")
		return
	}

	project := db.Project{Name: "个人网站", Color: "#4f46e5"}
	if err := db.DB.Create(&project).Error; err != nil {
		log.Fatal("创建项目失败:", err)
	}

	tasks := []db.Task{
		{Title: "写周报", Status: db.TaskStatusTodo},
		{Title: "更新首页文案", Status: db.TaskStatusTodo, ProjectID: &project.ID},
		{Title: "修复移动端布局", Status: db.TaskStatusTodo, ProjectID: &project.ID},
	}
	for i := range tasks {
		if err := db.DB.Create(&tasks[i]).Error; err != nil {
			log.Fatal("创建任务失败:", err)
		}
	}

	fmt.Println("✅ 演示任务创建完成")
}

// 创建演示笔记，带 wiki 互链
func createDemoNotes() {
	var count int64
	db.DB.Model(&db.Note{}).Count(&count)
	if count > 0 {
		fmt.Println("笔记已存在，跳过创建")
		return
	}

	notes := []db.Note{
		{Title: "每周回顾", Slug: "weekly-review", Content: "# 每周回顾\n\n回顾习惯数据，参考 [[habit-notes|习惯笔记]]。"},
		{Title: "习惯笔记", Slug: "habit-notes", Content: "# 习惯笔记\n\n限额类习惯的阈值设在 80% 比较合适。"},
	}
	for i := range notes {
		if err := db.DB.Create(&notes[i]).Error; err != nil {
			log.Fatal("创建笔记失败:", err)
		}
	}

	link := db.NoteLink{SourceNoteID: notes[0].ID, TargetSlug: "habit-notes"}
	if err := db.DB.Create(&link).Error; err != nil {
		log.Fatal("创建笔记链接失败:", err)
	}

	fmt.Println("✅ 演示笔记创建完成")
}
