package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/service"
)

type taskPayload struct {
	Title     string `json:"title"`
	Note      string `json:"note"`
	ProjectID *uint  `json:"project_id"`
	DueDate   string `json:"due_date"` // yyyy-MM-dd，可选
}

// ListTasks 返回任务列表
func (a *API) ListTasks(c *gin.Context) {
	filter := service.TaskFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}

	if raw := c.Query("project_id"); raw != "" {
		id, err := parseUintQuery(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的项目ID")
			return
		}
		filter.ProjectID = &id
	}

	tasks, err := a.tasks.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取任务列表失败")
		return
	}

	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskToPayload(task))
	}

	c.JSON(http.StatusOK, gin.H{"tasks": items})
}

// CreateTask 创建任务
func (a *API) CreateTask(c *gin.Context) {
	input, ok := parseTaskInput(c)
	if !ok {
		return
	}

	task, err := a.tasks.Create(input)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// UpdateTask 更新任务
func (a *API) UpdateTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	input, ok := parseTaskInput(c)
	if !ok {
		return
	}

	task, err := a.tasks.Update(id, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// CompleteTask 标记任务完成
func (a *API) CompleteTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	task, err := a.tasks.Complete(id, requestTime(c))
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// ReopenTask 将任务打回待办
func (a *API) ReopenTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	task, err := a.tasks.Reopen(id)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// DeleteTask 将任务移入回收站
func (a *API) DeleteTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	if err := a.tasks.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除任务失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListProjects 返回项目列表
func (a *API) ListProjects(c *gin.Context) {
	projects, err := a.projects.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取项目列表失败")
		return
	}

	items := make([]gin.H, 0, len(projects))
	for _, project := range projects {
		items = append(items, gin.H{"id": project.ID, "name": project.Name, "color": project.Color})
	}

	c.JSON(http.StatusOK, gin.H{"projects": items})
}

// CreateProject 创建项目
func (a *API) CreateProject(c *gin.Context) {
	var payload struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	project, err := a.projects.Create(service.ProjectInput{Name: payload.Name, Color: payload.Color})
	if err != nil {
		respondError(c, http.StatusBadRequest, "项目创建失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": gin.H{"id": project.ID, "name": project.Name, "color": project.Color}})
}

// UpdateProject 更新项目
func (a *API) UpdateProject(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var payload struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	project, err := a.projects.Update(id, service.ProjectInput{Name: payload.Name, Color: payload.Color})
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			respondError(c, http.StatusNotFound, "项目不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "项目更新失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": gin.H{"id": project.ID, "name": project.Name, "color": project.Color}})
}

// DeleteProject 将项目移入回收站
func (a *API) DeleteProject(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	if err := a.projects.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除项目失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func parseTaskInput(c *gin.Context) (service.TaskInput, bool) {
	var payload taskPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.TaskInput{}, false
	}

	dueDate, ok := parseOptionalDate(payload.DueDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的截止日期")
		return service.TaskInput{}, false
	}

	return service.TaskInput{
		Title:     payload.Title,
		Note:      payload.Note,
		ProjectID: payload.ProjectID,
		DueDate:   dueDate,
	}, true
}

func taskToPayload(task db.Task) gin.H {
	item := gin.H{
		"id":     task.ID,
		"title":  task.Title,
		"note":   task.Note,
		"status": task.Status,
	}
	if task.ProjectID != nil {
		item["project_id"] = *task.ProjectID
		if task.Project != nil {
			item["project_name"] = task.Project.Name
		}
	}
	if task.DueDate != nil {
		item["due_date"] = task.DueDate.Format(dateFormat)
	}
	if task.CompletedAt != nil {
		item["completed_at"] = task.CompletedAt.Format(time.RFC3339)
	}
	return item
}

func handleTaskError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrTaskNotFound) {
		respondError(c, http.StatusNotFound, "任务不存在")
		return
	}
	respondError(c, http.StatusBadRequest, "任务操作失败")
}
