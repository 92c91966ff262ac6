package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/habitstats"
	"github.com/lifelog/internal/localdate"
	"github.com/lifelog/internal/period"
	"github.com/lifelog/internal/service"
)

type habitPayload struct {
	Title                string  `json:"title"`
	Kind                 string  `json:"kind"`
	Unit                 string  `json:"unit"`
	PeriodType           string  `json:"period_type"`
	Timezone             string  `json:"timezone"`
	QuotaAmount          float64 `json:"quota_amount"`
	TargetAmount         float64 `json:"target_amount"`
	NearThresholdPercent float64 `json:"near_threshold_percent"`
	AllowSoftOver        bool    `json:"allow_soft_over"`
	ScheduleFrequency    string  `json:"schedule_frequency"`
	ScheduleWeekdays     []int   `json:"schedule_weekdays"`
	ScheduleTime         string  `json:"schedule_time"`
}

// ListHabits 返回习惯列表 JSON
func (a *API) ListHabits(c *gin.Context) {
	filter := service.HabitFilter{
		Kind:   c.Query("kind"),
		Search: c.Query("search"),
	}

	switch c.Query("archived") {
	case "true":
		archived := true
		filter.Archived = &archived
	case "false":
		archived := false
		filter.Archived = &archived
	}

	habits, err := a.habits.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}

	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// GetHabit 返回单个习惯详情
func (a *API) GetHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Get(id)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	input, ok := a.parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Create(input)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	input, ok := a.parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Update(id, input)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// ArchiveHabit 归档习惯
func (a *API) ArchiveHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Archive(id, requestTime(c))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// UnarchiveHabit 取消归档
func (a *API) UnarchiveHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Unarchive(id)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 将习惯移入回收站
func (a *API) DeleteHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	if err := a.habits.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除习惯失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// LogHabitUsage 记录一次用量/进度
func (a *API) LogHabitUsage(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	var payload struct {
		Amount     float64 `json:"amount"`
		OccurredAt string  `json:"occurred_at"` // RFC3339，可选
		ClientKey  string  `json:"client_key"`
		Note       string  `json:"note"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	occurredAt := requestTime(c)
	if raw := strings.TrimSpace(payload.OccurredAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的记录时间")
			return
		}
		occurredAt = parsed
	}

	event, err := a.habitStats.LogUsage(service.UsageInput{
		HabitID:    habitID,
		Amount:     payload.Amount,
		OccurredAt: occurredAt,
		ClientKey:  payload.ClientKey,
		Note:       payload.Note,
	})
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": gin.H{
		"id":         event.ID,
		"habit_id":   event.HabitID,
		"amount":     event.Amount,
		"local_date": event.LocalDate,
		"client_key": event.ClientKey,
		"note":       event.Note,
	}})
}

// GetHabitProgress 返回当前周期的统计数据
// 配额/戒除习惯返回配额视图，目标习惯返回进度视图
func (a *API) GetHabitProgress(c *gin.Context) {
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

	now := requestTime(c)

	// 先结算已结束的周期，保证历史统计是最新的
	if habit.Kind != db.HabitKindSchedule {
		if _, err := a.habitStats.CloseElapsedPeriods(habitID, now); err != nil {
			respondError(c, http.StatusInternalServerError, "结算历史周期失败")
			return
		}
	}

	switch habit.Kind {
	case db.HabitKindQuota, db.HabitKindAvoid:
		progress, err := a.habitStats.QuotaProgress(habitID, now)
		if err != nil {
			handleHabitError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quota": serializeQuotaProgress(habit, progress)})
	case db.HabitKindBuild:
		progress, err := a.habitStats.BuildProgress(habitID, now)
		if err != nil {
			handleHabitError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"build": serializeBuildProgress(habit, progress)})
	default:
		respondError(c, http.StatusBadRequest, "计划类习惯请使用打卡接口")
	}
}

// ListHabitPeriods 返回已结算周期列表（最近在前）
func (a *API) ListHabitPeriods(c *gin.Context) {
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

	periods, err := a.habitStats.ListPeriods(habitID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取周期列表失败")
		return
	}

	items := make([]gin.H, 0, len(periods))
	for _, p := range periods {
		label, labelErr := period.Label(p.LocalPeriodStart, period.Type(habit.PeriodType))
		if labelErr != nil {
			label = p.LocalPeriodStart
		}
		items = append(items, gin.H{
			"local_period_start": p.LocalPeriodStart,
			"local_period_end":   p.LocalPeriodEnd,
			"status":             p.Status,
			"total_amount":       p.TotalAmount,
			"label":              label,
		})
	}

	c.JSON(http.StatusOK, gin.H{"periods": items})
}

func serializeQuotaProgress(habit *db.Habit, progress *service.QuotaProgress) gin.H {
	return gin.H{
		"period": gin.H{
			"local_start":    progress.Bounds.LocalStartDate,
			"local_end":      progress.Bounds.LocalEndDate,
			"label":          progress.PeriodLabel,
			"time_remaining": progress.TimeRemaining,
		},
		"total_used":         progress.TotalUsed,
		"total_used_display": habitstats.FormatQuotaAmount(progress.TotalUsed, habit.Unit),
		"status":             progress.Status,
		"remaining":          progress.Remaining,
		"remaining_display":  habitstats.FormatQuotaAmount(progress.Remaining, habit.Unit),
		"quick_adds":         quickAddPayload(progress.QuickAdds),
		"current_win_streak": progress.Stats.CurrentWinStreak,
		"wins_last_7":        progress.Stats.WinsLast7,
		"wins_last_30":       progress.Stats.WinsLast30,
		"breach_count":       progress.Stats.BreachCount,
		"allow_soft_over":    habit.AllowSoftOver,
	}
}

func serializeBuildProgress(habit *db.Habit, progress *service.BuildProgress) gin.H {
	return gin.H{
		"period": gin.H{
			"local_start":    progress.Bounds.LocalStartDate,
			"local_end":      progress.Bounds.LocalEndDate,
			"label":          progress.PeriodLabel,
			"time_remaining": progress.TimeRemaining,
		},
		"total_done":         progress.TotalDone,
		"total_done_display": habitstats.FormatBuildAmount(progress.TotalDone, habit.Unit),
		"status":             progress.Stats.Status,
		"remaining":          progress.Stats.Remaining,
		"percent_complete":   progress.Stats.PercentComplete,
		"win_streak":         progress.WinStreak,
		"wins_last_7":        progress.WinsLast7,
		"completion_rate":    progress.CompletionRate,
		"quick_adds":         quickAddPayload(progress.QuickAdds),
	}
}

func quickAddPayload(set habitstats.QuickAddSet) gin.H {
	return gin.H{"small": set.Small, "medium": set.Medium, "large": set.Large}
}

func (a *API) parseHabitInput(c *gin.Context) (service.HabitInput, bool) {
	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.HabitInput{}, false
	}

	timezone := strings.TrimSpace(payload.Timezone)
	if timezone == "" {
		timezone = a.timezone
	}

	weekdays := make([]time.Weekday, 0, len(payload.ScheduleWeekdays))
	for _, raw := range payload.ScheduleWeekdays {
		if raw < 0 || raw > 6 {
			respondError(c, http.StatusBadRequest, "无效的星期配置")
			return service.HabitInput{}, false
		}
		weekdays = append(weekdays, time.Weekday(raw))
	}

	return service.HabitInput{
		Title:                payload.Title,
		Kind:                 payload.Kind,
		Unit:                 payload.Unit,
		PeriodType:           payload.PeriodType,
		Timezone:             timezone,
		QuotaAmount:          payload.QuotaAmount,
		TargetAmount:         payload.TargetAmount,
		NearThresholdPercent: payload.NearThresholdPercent,
		AllowSoftOver:        payload.AllowSoftOver,
		ScheduleFrequency:    payload.ScheduleFrequency,
		ScheduleWeekdays:     weekdays,
		ScheduleTime:         payload.ScheduleTime,
	}, true
}

func habitToPayload(habit db.Habit) gin.H {
	item := gin.H{
		"id":                     habit.ID,
		"title":                  habit.Title,
		"kind":                   habit.Kind,
		"unit":                   habit.Unit,
		"period_type":            habit.PeriodType,
		"timezone":               habit.Timezone,
		"quota_amount":           habit.QuotaAmount,
		"target_amount":          habit.TargetAmount,
		"near_threshold_percent": habit.NearThresholdPercent,
		"allow_soft_over":        habit.AllowSoftOver,
		"active":                 habit.Active,
	}

	if habit.Kind == db.HabitKindSchedule {
		item["schedule_frequency"] = habit.ScheduleFrequency
		item["schedule_weekdays"] = habit.ScheduleWeekdays
		item["schedule_time"] = habit.ScheduleTime
	}
	if habit.ArchivedAt != nil {
		item["archived_at"] = habit.ArchivedAt.Format(time.RFC3339)
	}

	return item
}

func handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrHabitInvalidConfig):
		respondError(c, http.StatusBadRequest, "习惯配置无效")
	case errors.Is(err, service.ErrHabitKindMismatch):
		respondError(c, http.StatusBadRequest, "习惯类型不匹配")
	case errors.Is(err, service.ErrUsageInvalid):
		respondError(c, http.StatusBadRequest, "用量记录无效")
	case errors.Is(err, localdate.ErrInvalidTimezone):
		respondError(c, http.StatusBadRequest, "无效的时区")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
