package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifelog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound 在指定任务不存在时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrProjectNotFound 在指定项目不存在时返回
	ErrProjectNotFound = errors.New("project not found")
)

// TaskService 负责任务数据的增删改查
type TaskService struct {
	db *gorm.DB
}

// TaskFilter 描述任务列表过滤条件
type TaskFilter struct {
	ProjectID *uint
	Status    string
	Search    string
}

// TaskInput 定义创建/更新任务时可配置字段
type TaskInput struct {
	Title     string
	Note      string
	ProjectID *uint
	DueDate   *time.Time
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{db: gdb}
}

// List 返回任务集合，支持基本筛选
func (s *TaskService) List(filter TaskFilter) ([]db.Task, error) {
	var tasks []db.Task

	query := s.db.Model(&db.Task{}).Preload("Project")

	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("title LIKE ? OR note LIKE ?", like, like)
	}

	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// Get 根据 ID 获取任务
func (s *TaskService) Get(id uint) (*db.Task, error) {
	var task db.Task
	if err := s.db.Preload("Project").First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// Create 新建任务
func (s *TaskService) Create(input TaskInput) (*db.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("task title is required")
	}

	task := db.Task{
		Title:     strings.TrimSpace(input.Title),
		Note:      strings.TrimSpace(input.Note),
		ProjectID: input.ProjectID,
		Status:    db.TaskStatusTodo,
		DueDate:   input.DueDate,
	}

	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// Update 更新任务
func (s *TaskService) Update(id uint, input TaskInput) (*db.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("task title is required")
	}

	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(input.Title)
	task.Note = strings.TrimSpace(input.Note)
	task.ProjectID = input.ProjectID
	task.DueDate = input.DueDate

	if err := s.db.Save(task).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// Complete 标记任务完成。完成不等于删除，已完成任务永不进入清除流程。
func (s *TaskService) Complete(id uint, now time.Time) (*db.Task, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	task.Status = db.TaskStatusDone
	task.CompletedAt = &now
	if err := s.db.Save(task).Error; err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return task, nil
}

// Reopen 将完成的任务打回待办
func (s *TaskService) Reopen(id uint) (*db.Task, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	task.Status = db.TaskStatusTodo
	task.CompletedAt = nil
	if err := s.db.Save(task).Error; err != nil {
		return nil, fmt.Errorf("reopen task: %w", err)
	}
	return task, nil
}

// Delete 将任务移入回收站
func (s *TaskService) Delete(id uint) error {
	if err := s.db.Delete(&db.Task{}, id).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ProjectService 负责项目数据的增删改查
type ProjectService struct {
	db *gorm.DB
}

// ProjectInput 定义创建/更新项目时可配置字段
type ProjectInput struct {
	Name  string
	Color string
}

// NewProjectService 构造 ProjectService
func NewProjectService(gdb *gorm.DB) *ProjectService {
	return &ProjectService{db: gdb}
}

// List 返回全部项目
func (s *ProjectService) List() ([]db.Project, error) {
	var projects []db.Project
	if err := s.db.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Get 根据 ID 获取项目
func (s *ProjectService) Get(id uint) (*db.Project, error) {
	var project db.Project
	if err := s.db.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

// Create 新建项目
func (s *ProjectService) Create(input ProjectInput) (*db.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("project name is required")
	}

	project := db.Project{
		Name:  strings.TrimSpace(input.Name),
		Color: strings.TrimSpace(input.Color),
	}

	if err := s.db.Create(&project).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &project, nil
}

// Update 更新项目
func (s *ProjectService) Update(id uint, input ProjectInput) (*db.Project, error) {
	project, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	project.Name = strings.TrimSpace(input.Name)
	project.Color = strings.TrimSpace(input.Color)

	if err := s.db.Save(project).Error; err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

// Delete 将项目移入回收站
func (s *ProjectService) Delete(id uint) error {
	if err := s.db.Delete(&db.Project{}, id).Error; err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
