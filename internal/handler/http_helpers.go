package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const dateFormat = "2006-01-02"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseUintQuery(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid query value %q", raw)
	}
	return uint(id), nil
}

// requestTime 支持用 ?now=RFC3339 注入时间，便于测试和回放
func requestTime(c *gin.Context) time.Time {
	if raw := strings.TrimSpace(c.Query("now")); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now()
}

func parseOptionalDate(value string) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}

	t, err := time.Parse(dateFormat, value)
	if err != nil {
		return nil, false
	}

	return &t, true
}

// parseOptionalDateIn 把 yyyy-MM-dd 解析为指定时区的当日零点。
// 日期窗口必须在目标时区内取边界，不能落回 UTC 零点。
func parseOptionalDateIn(value string, loc *time.Location) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}

	t, err := time.ParseInLocation(dateFormat, value, loc)
	if err != nil {
		return nil, false
	}

	return &t, true
}
