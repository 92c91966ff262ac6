package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/localdate"
	"github.com/lifelog/internal/schedule"
	"github.com/lifelog/internal/service"
)

// ListScheduleOccurrences 展开指定窗口内的计划实例
// 窗口用 ?from=yyyy-MM-dd&to=yyyy-MM-dd 指定，缺省为今天起 7 天
func (a *API) ListScheduleOccurrences(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Get(habitID)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	// 窗口边界按习惯自身时区取当日零点/最后一刻
	loc, err := localdate.Location(habit.Timezone)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的时区")
		return
	}

	now := requestTime(c)

	from := now
	if parsed, ok := parseOptionalDateIn(c.Query("from"), loc); !ok {
		respondError(c, http.StatusBadRequest, "无效的起始日期")
		return
	} else if parsed != nil {
		from = *parsed
	}

	to := from.AddDate(0, 0, 7)
	if parsed, ok := parseOptionalDateIn(c.Query("to"), loc); !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return
	} else if parsed != nil {
		to = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	occurrences, err := a.schedules.OccurrencesBetween(habitID, from, to, now)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	items := make([]gin.H, 0, len(occurrences))
	for _, occ := range occurrences {
		display, displayErr := schedule.FormatScheduledTime(occ.ScheduledAt, habit.Timezone)
		if displayErr != nil {
			display = occ.ScheduledAt.Format(time.RFC3339)
		}
		items = append(items, gin.H{
			"scheduled_at": occ.ScheduledAt.Format(time.RFC3339),
			"local_date":   occ.LocalDate,
			"status":       occ.Status,
			"status_label": schedule.StatusLabel(occ.Status),
			"recorded":     occ.Recorded,
			"time_display": display,
		})
	}

	c.JSON(http.StatusOK, gin.H{"occurrences": items})
}

// RecordScheduleOccurrence 记录一次打卡结果
func (a *API) RecordScheduleOccurrence(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	var payload struct {
		ScheduledAt string `json:"scheduled_at"`
		Status      string `json:"status"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.ScheduledAt))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的实例时间")
		return
	}

	row, err := a.schedules.RecordOccurrence(habitID, scheduledAt, schedule.Status(payload.Status))
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"occurrence": gin.H{
		"scheduled_at": row.ScheduledAt.Format(time.RFC3339),
		"local_date":   row.LocalDate,
		"status":       row.Status,
	}})
}

// ClearScheduleOccurrence 撤销一次已记录的打卡结果
func (a *API) ClearScheduleOccurrence(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Query("scheduled_at")))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的实例时间")
		return
	}

	if err := a.schedules.ClearOccurrence(habitID, scheduledAt); err != nil {
		respondError(c, http.StatusInternalServerError, "撤销打卡失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOccurrenceInvalid):
		respondError(c, http.StatusBadRequest, "打卡结果无效")
	case errors.Is(err, schedule.ErrInvalidWindow):
		respondError(c, http.StatusBadRequest, "时间窗口无效")
	default:
		handleHabitError(c, err)
	}
}
