package main

import (
	"log"

	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/config"
	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/handler"
	"github.com/cleanops/internal/logging"
	"github.com/cleanops/internal/notify"
	"github.com/cleanops/internal/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "cleanops")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		logger.Fatal("failed to ensure super root user", zap.Error(err))
	}

	notifier := notify.New(cfg.TelegramAPIURL, cfg.TelegramBotToken, logger)
	api := handler.NewAPI(db.DB, clock.Real{}, notifier, logger)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret, logger)
	logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("failed to run server", zap.Error(err))
	}
}
