package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	habits      *service.HabitService
	habitStats  *service.HabitStatsService
	schedules   *service.ScheduleService
	tasks       *service.TaskService
	projects    *service.ProjectService
	notes       *service.NoteService
	timeEntries *service.TimeEntryService
	trash       *service.TrashService
	timezone    string
	allowlist   map[string]struct{}
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, defaultTimezone string, allowlist []string) *API {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, username := range allowlist {
		trimmed := strings.TrimSpace(username)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	return &API{
		db:          db,
		habits:      service.NewHabitService(db),
		habitStats:  service.NewHabitStatsService(db),
		schedules:   service.NewScheduleService(db),
		tasks:       service.NewTaskService(db),
		projects:    service.NewProjectService(db),
		notes:       service.NewNoteService(db),
		timeEntries: service.NewTimeEntryService(db),
		trash:       service.NewTrashService(db),
		timezone:    defaultTimezone,
		allowlist:   allowed,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}

// defaultTimezone 返回请求指定时区或配置的默认时区
func (a *API) defaultTimezone(c *gin.Context) string {
	if tz := strings.TrimSpace(c.Query("timezone")); tz != "" {
		return tz
	}
	return a.timezone
}
