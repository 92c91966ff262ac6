package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr      string
	Port            string
	DatabasePath    string
	SessionSecret   string
	GinMode         string
	DefaultTimezone string
	OwnerAllowlist  []string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "lifelog.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "lifelog-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	defaultTimezone := strings.TrimSpace(os.Getenv("DEFAULT_TIMEZONE"))
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}

	// 单人使用：允许登录的用户名列表，逗号分隔
	var allowlist []string
	for _, name := range strings.Split(os.Getenv("OWNER_ALLOWLIST"), ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			allowlist = append(allowlist, trimmed)
		}
	}

	return AppConfig{
		ListenAddr:      listenAddr,
		Port:            port,
		DatabasePath:    databasePath,
		SessionSecret:   sessionSecret,
		GinMode:         ginMode,
		DefaultTimezone: defaultTimezone,
		OwnerAllowlist:  allowlist,
	}
}
