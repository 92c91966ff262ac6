package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/localdate"
	"github.com/lifelog/internal/service"
)

// StartTimer 启动计时，自动停止之前进行中的记录
func (a *API) StartTimer(c *gin.Context) {
	var payload struct {
		TaskID      *uint  `json:"task_id"`
		Description string `json:"description"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	entry, err := a.timeEntries.Start(service.TimeEntryInput{
		TaskID:      payload.TaskID,
		Description: payload.Description,
		StartedAt:   requestTime(c),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "启动计时失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": timeEntryToPayload(*entry)})
}

// StopTimer 停止进行中的计时
func (a *API) StopTimer(c *gin.Context) {
	entry, err := a.timeEntries.Stop(requestTime(c))
	if err != nil {
		if errors.Is(err, service.ErrNoRunningEntry) {
			respondError(c, http.StatusNotFound, "没有进行中的计时")
			return
		}
		respondError(c, http.StatusInternalServerError, "停止计时失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": timeEntryToPayload(*entry)})
}

// RunningTimer 返回进行中的计时记录
func (a *API) RunningTimer(c *gin.Context) {
	entry, err := a.timeEntries.Running()
	if err != nil {
		if errors.Is(err, service.ErrNoRunningEntry) {
			c.JSON(http.StatusOK, gin.H{"entry": nil})
			return
		}
		respondError(c, http.StatusInternalServerError, "查询计时状态失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": timeEntryToPayload(*entry)})
}

// ListTimeEntries 返回时间区间内的计时记录和按日汇总。
// from/to 按汇总时区解释，保证查询窗口和按日分桶一致。
func (a *API) ListTimeEntries(c *gin.Context) {
	timezone := a.defaultTimezone(c)
	loc, err := localdate.Location(timezone)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的时区")
		return
	}

	now := requestTime(c)

	start := now.AddDate(0, 0, -7)
	if parsed, ok := parseOptionalDateIn(c.Query("from"), loc); !ok {
		respondError(c, http.StatusBadRequest, "无效的起始日期")
		return
	} else if parsed != nil {
		start = *parsed
	}

	end := now
	if parsed, ok := parseOptionalDateIn(c.Query("to"), loc); !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return
	} else if parsed != nil {
		end = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	entries, err := a.timeEntries.ListBetween(start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取计时记录失败")
		return
	}

	totals, err := a.timeEntries.DailyTotals(start, end, timezone)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "汇总计时数据失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, timeEntryToPayload(entry))
	}

	c.JSON(http.StatusOK, gin.H{"entries": items, "daily_minutes": totals})
}

// DeleteTimeEntry 删除一条计时记录
func (a *API) DeleteTimeEntry(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的记录ID")
		return
	}

	if err := a.timeEntries.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除计时记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func timeEntryToPayload(entry db.TimeEntry) gin.H {
	item := gin.H{
		"id":          entry.ID,
		"description": entry.Description,
		"started_at":  entry.StartedAt.Format(time.RFC3339),
	}
	if entry.TaskID != nil {
		item["task_id"] = *entry.TaskID
	}
	if entry.StoppedAt != nil {
		item["stopped_at"] = entry.StoppedAt.Format(time.RFC3339)
		item["minutes"] = int(entry.StoppedAt.Sub(entry.StartedAt).Minutes())
	}
	return item
}
