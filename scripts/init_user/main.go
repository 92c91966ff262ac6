package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lifelog/internal/config"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/localdate"
)

func main() {
	cfg := config.Load()

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	// 检查是否已存在用户
	var count int64
	db.DB.Model(&db.User{}).Count(&count)
	if count > 0 {
		fmt.Println("用户已存在，无需初始化")
		return
	}

	username := strings.TrimSpace(os.Getenv("OWNER_USERNAME"))
	if username == "" {
		username = "owner"
	}
	password := strings.TrimSpace(os.Getenv("OWNER_PASSWORD"))
	if password == "" {
		password = "owner123"
	}

	timezone := cfg.DefaultTimezone
	if _, err := localdate.Location(timezone); err != nil {
		log.Fatal("无效的默认时区:", err)
	}

	if err := db.EnsureUser(username, password, timezone); err != nil {
		log.Fatal("创建用户失败:", err)
	}

	fmt.Println("所有者账号创建成功")
	fmt.Println("用户名:", username)
	fmt.Println("时区:", timezone)
	fmt.Println("记得把用户名加入 OWNER_ALLOWLIST 环境变量")
}
