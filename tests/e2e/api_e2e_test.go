package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/config"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/handler"
	"github.com/lifelog/internal/router"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 固定基准时刻：2025-03-05 是周三
const frozenNow = "2025-03-05T12:00:00Z"

type e2eSuite struct {
	handler   http.Handler
	anonymous httpClient
	owner     httpClient
	baseURL   string
	ownerPass string
	user      db.User
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)
	suite.login(t)

	t.Run("auth guard", suite.testAuthGuard)
	t.Run("habit lifecycle", suite.testHabitLifecycle)
	t.Run("schedule occurrences", suite.testScheduleOccurrences)
	t.Run("schedule occurrences in habit timezone", suite.testScheduleOccurrencesHabitTimezone)
	t.Run("tasks and projects", suite.testTasksAndProjects)
	t.Run("notes", suite.testNotes)
	t.Run("timer", suite.testTimer)
	t.Run("timer window in local timezone", suite.testTimerLocalTimezoneWindow)
	t.Run("trash", suite.testTrash)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.Habit{},
		&db.HabitPeriod{},
		&db.HabitUsageEvent{},
		&db.ScheduleOccurrence{},
		&db.Project{},
		&db.Task{},
		&db.Note{},
		&db.NoteLink{},
		&db.TimeEntry{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	db.DB = gdb

	hashed, err := bcrypt.GenerateFromPassword([]byte("e2e-secret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := db.User{Username: "owner", Password: string(hashed), Timezone: "UTC"}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	api := handler.NewAPI(gdb, "UTC", []string{"owner"})
	engine := router.SetupRouter(api, config.AppConfig{SessionSecret: "test-session-secret"})

	return &e2eSuite{
		handler:   engine,
		anonymous: newLocalClient(engine, false),
		owner:     newLocalClient(engine, true),
		baseURL:   "http://example.test",
		ownerPass: "e2e-secret",
		user:      user,
	}
}

func (s *e2eSuite) login(t *testing.T) {
	t.Helper()
	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/login", map[string]interface{}{
		"username": s.user.Username,
		"password": s.ownerPass,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed, status %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
}

func (s *e2eSuite) testAuthGuard(t *testing.T) {
	resp := s.mustRequest(t, s.anonymous, http.MethodGet, "/api/habits", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request expected 401, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.anonymous, http.MethodGet, "/ping", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "pong") {
		t.Fatalf("ping: unexpected body %q", body)
	}

	// 允许名单外的用户即使密码正确也拒绝
	outsider := newLocalClient(s.handler, true)
	resp = s.mustRequestJSON(t, outsider, http.MethodPost, "/login", map[string]interface{}{
		"username": "stranger",
		"password": s.ownerPass,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("non-allowlisted login expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testHabitLifecycle(t *testing.T) {
	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits", map[string]interface{}{
		"title":        "屏幕时间",
		"kind":         "quota",
		"unit":         "minutes",
		"period_type":  "day",
		"timezone":     "UTC",
		"quota_amount": 120,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create habit expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var created struct {
		Habit struct {
			ID                   uint    `json:"id"`
			NearThresholdPercent float64 `json:"near_threshold_percent"`
		} `json:"habit"`
	}
	decodeJSON(t, resp, &created)
	if created.Habit.ID == 0 {
		t.Fatalf("create habit returned empty id")
	}
	if created.Habit.NearThresholdPercent != 80 {
		t.Fatalf("expected default near threshold 80, got %v", created.Habit.NearThresholdPercent)
	}
	habitID := idStr(created.Habit.ID)

	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits/"+habitID+"/usage?now="+frozenNow, map[string]interface{}{
		"amount":     30,
		"client_key": "e2e-usage-1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("log usage expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}

	// 同一 client_key 重复提交必须幂等
	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits/"+habitID+"/usage?now="+frozenNow, map[string]interface{}{
		"amount":     30,
		"client_key": "e2e-usage-1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replayed usage expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/habits/"+habitID+"/progress?now="+frozenNow, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var progress struct {
		Quota struct {
			TotalUsed float64 `json:"total_used"`
			Status    string  `json:"status"`
			Remaining float64 `json:"remaining"`
		} `json:"quota"`
	}
	decodeJSON(t, resp, &progress)
	if progress.Quota.TotalUsed != 30 {
		t.Fatalf("expected total used 30 after idempotent replay, got %v", progress.Quota.TotalUsed)
	}
	if progress.Quota.Status != "under" {
		t.Fatalf("expected status under, got %q", progress.Quota.Status)
	}
	if progress.Quota.Remaining != 90 {
		t.Fatalf("expected remaining 90, got %v", progress.Quota.Remaining)
	}

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/habits/"+habitID+"/archive?now="+frozenNow, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("archive expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/habits/"+habitID+"/unarchive", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unarchive expected 200, got %d", resp.StatusCode)
	}

	// 目标习惯：达到目标即 complete，百分比封顶 100
	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits", map[string]interface{}{
		"title":         "俯卧撑",
		"kind":          "build",
		"unit":          "count",
		"period_type":   "day",
		"timezone":      "UTC",
		"target_amount": 50,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create build habit expected 200, got %d", resp.StatusCode)
	}
	var buildCreated struct {
		Habit struct {
			ID uint `json:"id"`
		} `json:"habit"`
	}
	decodeJSON(t, resp, &buildCreated)
	buildID := idStr(buildCreated.Habit.ID)

	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits/"+buildID+"/usage?now="+frozenNow, map[string]interface{}{
		"amount": 60,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("log build usage expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/habits/"+buildID+"/progress?now="+frozenNow, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("build progress expected 200, got %d", resp.StatusCode)
	}
	var buildProgress struct {
		Build struct {
			Status          string `json:"status"`
			PercentComplete int    `json:"percent_complete"`
		} `json:"build"`
	}
	decodeJSON(t, resp, &buildProgress)
	if buildProgress.Build.Status != "complete" {
		t.Fatalf("expected status complete, got %q", buildProgress.Build.Status)
	}
	if buildProgress.Build.PercentComplete != 100 {
		t.Fatalf("expected percent capped at 100, got %d", buildProgress.Build.PercentComplete)
	}
}

func (s *e2eSuite) testScheduleOccurrences(t *testing.T) {
	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits", map[string]interface{}{
		"title":              "晨间冥想",
		"kind":               "schedule",
		"timezone":           "UTC",
		"schedule_frequency": "daily",
		"schedule_time":      "08:00",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create schedule habit expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var created struct {
		Habit struct {
			ID uint `json:"id"`
		} `json:"habit"`
	}
	decodeJSON(t, resp, &created)
	habitID := idStr(created.Habit.ID)

	listPath := "/api/habits/" + habitID + "/occurrences?from=2025-03-01&to=2025-03-07&now=" + frozenNow
	resp = s.mustRequest(t, s.owner, http.MethodGet, listPath, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list occurrences expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var listed struct {
		Occurrences []struct {
			ScheduledAt string `json:"scheduled_at"`
			Status      string `json:"status"`
			Recorded    bool   `json:"recorded"`
		} `json:"occurrences"`
	}
	decodeJSON(t, resp, &listed)
	if len(listed.Occurrences) != 7 {
		t.Fatalf("expected 7 daily occurrences, got %d", len(listed.Occurrences))
	}
	statuses := make(map[string]string, len(listed.Occurrences))
	for _, occ := range listed.Occurrences {
		statuses[occ.ScheduledAt] = occ.Status
	}
	if statuses["2025-03-04T08:00:00Z"] != "missed" {
		t.Fatalf("past unrecorded slot expected missed, got %q", statuses["2025-03-04T08:00:00Z"])
	}
	if statuses["2025-03-06T08:00:00Z"] != "pending" {
		t.Fatalf("future slot expected pending, got %q", statuses["2025-03-06T08:00:00Z"])
	}

	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits/"+habitID+"/occurrences", map[string]interface{}{
		"scheduled_at": "2025-03-04T08:00:00Z",
		"status":       "completed",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record occurrence expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, listPath, nil, nil)
	defer resp.Body.Close()
	decodeJSON(t, resp, &listed)
	found := false
	for _, occ := range listed.Occurrences {
		if occ.ScheduledAt == "2025-03-04T08:00:00Z" {
			found = true
			if occ.Status != "completed" || !occ.Recorded {
				t.Fatalf("recorded slot expected completed/recorded, got %q recorded=%v", occ.Status, occ.Recorded)
			}
		}
	}
	if !found {
		t.Fatalf("recorded slot missing from listing")
	}

	// pending 不是可记录的结果
	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits/"+habitID+"/occurrences", map[string]interface{}{
		"scheduled_at": "2025-03-04T08:00:00Z",
		"status":       "pending",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("recording pending expected 400, got %d", resp.StatusCode)
	}

	clearPath := "/api/habits/" + habitID + "/occurrences?scheduled_at=" + "2025-03-04T08%3A00%3A00Z"
	resp = s.mustRequest(t, s.owner, http.MethodDelete, clearPath, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear occurrence expected 200, got %d", resp.StatusCode)
	}
}

// 东八区以东的习惯：本地凌晨的实例早于 UTC 零点，
// 窗口必须按习惯时区取边界，否则请求的日期会整体漂移一天
func (s *e2eSuite) testScheduleOccurrencesHabitTimezone(t *testing.T) {
	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/habits", map[string]interface{}{
		"title":              "睡前拉伸",
		"kind":               "schedule",
		"timezone":           "Asia/Tokyo",
		"schedule_frequency": "daily",
		"schedule_time":      "00:30",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create tokyo habit expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var created struct {
		Habit struct {
			ID uint `json:"id"`
		} `json:"habit"`
	}
	decodeJSON(t, resp, &created)
	habitID := idStr(created.Habit.ID)

	listPath := "/api/habits/" + habitID + "/occurrences?from=2025-03-05&to=2025-03-05&now=" + frozenNow
	resp = s.mustRequest(t, s.owner, http.MethodGet, listPath, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tokyo occurrences expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var listed struct {
		Occurrences []struct {
			ScheduledAt string `json:"scheduled_at"`
			LocalDate   string `json:"local_date"`
			Status      string `json:"status"`
		} `json:"occurrences"`
	}
	decodeJSON(t, resp, &listed)
	if len(listed.Occurrences) != 1 {
		t.Fatalf("expected exactly 1 occurrence for single local date, got %d: %+v", len(listed.Occurrences), listed.Occurrences)
	}
	occ := listed.Occurrences[0]
	if occ.LocalDate != "2025-03-05" {
		t.Fatalf("expected local date 2025-03-05, got %q", occ.LocalDate)
	}
	scheduledAt, err := time.Parse(time.RFC3339, occ.ScheduledAt)
	if err != nil {
		t.Fatalf("failed to parse scheduled_at %q: %v", occ.ScheduledAt, err)
	}
	// 东京 2025-03-05 00:30 即 UTC 2025-03-04 15:30
	if want := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC); !scheduledAt.UTC().Equal(want) {
		t.Fatalf("expected scheduled instant %v, got %v", want, scheduledAt.UTC())
	}
	if occ.Status != "missed" {
		t.Fatalf("past unrecorded slot expected missed, got %q", occ.Status)
	}
}

func (s *e2eSuite) testTasksAndProjects(t *testing.T) {
	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/projects", map[string]interface{}{
		"name":  "个人网站",
		"color": "#4f46e5",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create project expected 200, got %d", resp.StatusCode)
	}
	var projectCreated struct {
		Project struct {
			ID uint `json:"id"`
		} `json:"project"`
	}
	decodeJSON(t, resp, &projectCreated)

	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/tasks", map[string]interface{}{
		"title":      "写周报",
		"project_id": projectCreated.Project.ID,
		"due_date":   "2025-03-07",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create task expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var taskCreated struct {
		Task struct {
			ID uint `json:"id"`
		} `json:"task"`
	}
	decodeJSON(t, resp, &taskCreated)
	taskID := idStr(taskCreated.Task.ID)

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/tasks/"+taskID+"/complete?now="+frozenNow, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete task expected 200, got %d", resp.StatusCode)
	}
	var completed struct {
		Task struct {
			Status      string `json:"status"`
			CompletedAt string `json:"completed_at"`
		} `json:"task"`
	}
	decodeJSON(t, resp, &completed)
	if completed.Task.Status != "done" || completed.Task.CompletedAt == "" {
		t.Fatalf("unexpected completed task payload: %+v", completed.Task)
	}

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/tasks/"+taskID+"/reopen", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reopen task expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/tasks?status=todo", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tasks expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "写周报") {
		t.Fatalf("reopened task missing from todo list: %s", body)
	}
}

func (s *e2eSuite) testNotes(t *testing.T) {
	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/notes", map[string]interface{}{
		"title":   "习惯笔记",
		"slug":    "habit-notes",
		"content": "# 习惯笔记\n阈值设在 80% 比较合适。",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create note expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/notes", map[string]interface{}{
		"title":   "每周回顾",
		"content": "回顾一下 [[habit-notes|习惯笔记]] 的内容。",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create linking note expected 200, got %d", resp.StatusCode)
	}
	var linking struct {
		Note struct {
			ID   uint   `json:"id"`
			Slug string `json:"slug"`
		} `json:"note"`
	}
	decodeJSON(t, resp, &linking)

	// slug 冲突返回 409
	resp = s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/notes", map[string]interface{}{
		"title": "冲突笔记",
		"slug":  "habit-notes",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate slug expected 409, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/notes/habit-notes", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get note by slug expected 200, got %d", resp.StatusCode)
	}
	var fetched struct {
		Note struct {
			HTML      string `json:"html"`
			Backlinks []struct {
				Slug string `json:"slug"`
			} `json:"backlinks"`
		} `json:"note"`
	}
	decodeJSON(t, resp, &fetched)
	if !strings.Contains(fetched.Note.HTML, "<h1") {
		t.Fatalf("rendered html missing heading: %s", fetched.Note.HTML)
	}
	if len(fetched.Note.Backlinks) != 1 || fetched.Note.Backlinks[0].Slug != linking.Note.Slug {
		t.Fatalf("unexpected backlinks: %+v", fetched.Note.Backlinks)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/notes/"+idStr(linking.Note.ID), nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get note by id expected 200, got %d", resp.StatusCode)
	}
	var byID struct {
		Note struct {
			HTML  string   `json:"html"`
			Links []string `json:"links"`
		} `json:"note"`
	}
	decodeJSON(t, resp, &byID)
	if !strings.Contains(byID.Note.HTML, `href="/notes/habit-notes"`) {
		t.Fatalf("wiki link not rewritten: %s", byID.Note.HTML)
	}
	if len(byID.Note.Links) != 1 || byID.Note.Links[0] != "habit-notes" {
		t.Fatalf("unexpected links: %+v", byID.Note.Links)
	}
}

func (s *e2eSuite) testTimer(t *testing.T) {
	startAt := "2025-03-05T09:00:00Z"
	stopAt := "2025-03-05T09:30:00Z"

	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/timer/start?now="+startAt, map[string]interface{}{
		"description": "写代码",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start timer expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/timer/running", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("running timer expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "写代码") {
		t.Fatalf("running entry missing: %s", body)
	}

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/timer/stop?now="+stopAt, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop timer expected 200, got %d", resp.StatusCode)
	}
	var stopped struct {
		Entry struct {
			Minutes int `json:"minutes"`
		} `json:"entry"`
	}
	decodeJSON(t, resp, &stopped)
	if stopped.Entry.Minutes != 30 {
		t.Fatalf("expected 30 minutes, got %d", stopped.Entry.Minutes)
	}

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/timer/stop?now="+stopAt, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stopping idle timer expected 404, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/time-entries?from=2025-03-05&to=2025-03-05&now="+frozenNow, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list time entries expected 200, got %d", resp.StatusCode)
	}
	var entries struct {
		DailyMinutes map[string]int `json:"daily_minutes"`
	}
	decodeJSON(t, resp, &entries)
	if entries.DailyMinutes["2025-03-05"] != 30 {
		t.Fatalf("expected 30 minutes on 2025-03-05, got %+v", entries.DailyMinutes)
	}
}

// 查询窗口和按日汇总必须用同一个时区解释 from/to，
// 否则跨零点的记录会被窗口裁掉或计入错误的日期
func (s *e2eSuite) testTimerLocalTimezoneWindow(t *testing.T) {
	// UTC 2025-03-07 02:00 在纽约还是 3 月 6 日晚上
	startAt := "2025-03-07T02:00:00Z"
	stopAt := "2025-03-07T02:45:00Z"

	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/timer/start?now="+startAt, map[string]interface{}{
		"description": "读书",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start timer expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/timer/stop?now="+stopAt, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop timer expected 200, got %d", resp.StatusCode)
	}

	listPath := "/api/time-entries?from=2025-03-06&to=2025-03-06&timezone=America/New_York&now=" + frozenNow
	resp = s.mustRequest(t, s.owner, http.MethodGet, listPath, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list time entries expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var entries struct {
		Entries      []map[string]interface{} `json:"entries"`
		DailyMinutes map[string]int           `json:"daily_minutes"`
	}
	decodeJSON(t, resp, &entries)
	if len(entries.Entries) != 1 {
		t.Fatalf("expected 1 entry in local-date window, got %d", len(entries.Entries))
	}
	if entries.DailyMinutes["2025-03-06"] != 45 {
		t.Fatalf("expected 45 minutes bucketed on 2025-03-06, got %+v", entries.DailyMinutes)
	}
	if _, ok := entries.DailyMinutes["2025-03-05"]; ok {
		t.Fatalf("entry from another local day leaked into window: %+v", entries.DailyMinutes)
	}
}

func (s *e2eSuite) testTrash(t *testing.T) {
	resp := s.mustRequestJSON(t, s.owner, http.MethodPost, "/api/tasks", map[string]interface{}{
		"title": "待删除任务",
	})
	defer resp.Body.Close()
	var created struct {
		Task struct {
			ID uint `json:"id"`
		} `json:"task"`
	}
	decodeJSON(t, resp, &created)
	taskID := idStr(created.Task.ID)

	resp = s.mustRequest(t, s.owner, http.MethodDelete, "/api/tasks/"+taskID, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete task expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/trash", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list trash expected 200, got %d", resp.StatusCode)
	}
	var trash struct {
		Items []struct {
			Kind      string `json:"kind"`
			ID        uint   `json:"id"`
			Purgeable bool   `json:"purgeable"`
		} `json:"items"`
	}
	decodeJSON(t, resp, &trash)
	found := false
	for _, item := range trash.Items {
		if item.Kind == "task" && item.ID == created.Task.ID {
			found = true
			if item.Purgeable {
				t.Fatalf("freshly deleted task must not be purgeable")
			}
		}
	}
	if !found {
		t.Fatalf("deleted task missing from trash: %+v", trash.Items)
	}

	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/trash/task/"+taskID+"/restore", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore expected 200, got %d", resp.StatusCode)
	}

	// 再删一次，推进时钟越过保留期后清除
	resp = s.mustRequest(t, s.owner, http.MethodDelete, "/api/tasks/"+taskID, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-delete task expected 200, got %d", resp.StatusCode)
	}

	future := time.Now().UTC().Add(61 * 24 * time.Hour).Format(time.RFC3339)
	resp = s.mustRequest(t, s.owner, http.MethodPost, "/api/trash/purge?now="+future, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purge expected 200, got %d", resp.StatusCode)
	}
	var purged struct {
		Purged int `json:"purged"`
	}
	decodeJSON(t, resp, &purged)
	if purged.Purged < 1 {
		t.Fatalf("expected at least one purged entity, got %d", purged.Purged)
	}

	// 清除后回收站里不应再出现该任务
	resp = s.mustRequest(t, s.owner, http.MethodGet, "/api/trash", nil, nil)
	defer resp.Body.Close()
	decodeJSON(t, resp, &trash)
	for _, item := range trash.Items {
		if item.Kind == "task" && item.ID == created.Task.ID {
			t.Fatalf("purged task still listed in trash")
		}
	}
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.mustRequest(t, client, method, path, bytes.NewReader(data), headers)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}

func idStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
