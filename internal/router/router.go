package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/config"
	"github.com/lifelog/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg config.AppConfig) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("lifelog_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/login", api.Login)
	r.GET("/logout", api.Logout)

	// 需要认证的 API 路由
	authed := r.Group("/api")
	authed.Use(handler.AuthRequired())
	{
		authed.GET("/habits", api.ListHabits)
		authed.POST("/habits", api.CreateHabit)
		authed.GET("/habits/:id", api.GetHabit)
		authed.PUT("/habits/:id", api.UpdateHabit)
		authed.DELETE("/habits/:id", api.DeleteHabit)
		authed.POST("/habits/:id/archive", api.ArchiveHabit)
		authed.POST("/habits/:id/unarchive", api.UnarchiveHabit)

		authed.POST("/habits/:id/usage", api.LogHabitUsage)
		authed.GET("/habits/:id/progress", api.GetHabitProgress)
		authed.GET("/habits/:id/periods", api.ListHabitPeriods)

		authed.GET("/habits/:id/occurrences", api.ListScheduleOccurrences)
		authed.POST("/habits/:id/occurrences", api.RecordScheduleOccurrence)
		authed.DELETE("/habits/:id/occurrences", api.ClearScheduleOccurrence)

		authed.GET("/tasks", api.ListTasks)
		authed.POST("/tasks", api.CreateTask)
		authed.PUT("/tasks/:id", api.UpdateTask)
		authed.POST("/tasks/:id/complete", api.CompleteTask)
		authed.POST("/tasks/:id/reopen", api.ReopenTask)
		authed.DELETE("/tasks/:id", api.DeleteTask)

		authed.GET("/projects", api.ListProjects)
		authed.POST("/projects", api.CreateProject)
		authed.PUT("/projects/:id", api.UpdateProject)
		authed.DELETE("/projects/:id", api.DeleteProject)

		authed.GET("/notes", api.ListNotes)
		authed.POST("/notes", api.CreateNote)
		authed.GET("/notes/:id", api.GetNote)
		authed.PUT("/notes/:id", api.UpdateNote)
		authed.DELETE("/notes/:id", api.DeleteNote)

		authed.POST("/timer/start", api.StartTimer)
		authed.POST("/timer/stop", api.StopTimer)
		authed.GET("/timer/running", api.RunningTimer)
		authed.GET("/time-entries", api.ListTimeEntries)
		authed.DELETE("/time-entries/:id", api.DeleteTimeEntry)

		authed.GET("/trash", api.ListTrash)
		authed.POST("/trash/:kind/:id/restore", api.RestoreTrashItem)
		authed.POST("/trash/purge", api.PurgeTrash)
	}

	return r
}
