package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/config"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/handler"
	"github.com/lifelog/internal/router"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 白名单为空时所有登录都会被拒绝，启动时提醒一下
	if len(cfg.OwnerAllowlist) == 0 {
		log.Println("warning: OWNER_ALLOWLIST is empty, all login attempts will be rejected")
	}

	api := handler.NewAPI(db.DB, cfg.DefaultTimezone, cfg.OwnerAllowlist)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
