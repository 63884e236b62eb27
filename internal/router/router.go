package router

import (
	"time"

	"github.com/cleanops/internal/handler"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(requestLogger(logger), gin.Recovery())

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions("cleanops_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/login", api.Login)
		apiGroup.POST("/logout", api.Logout)

		// 需要认证的路由
		auth := apiGroup.Group("")
		auth.Use(api.AuthRequired())
		{
			auth.GET("/me", api.Me)

			auth.GET("/tasks", api.ListTasks)
			auth.POST("/tasks/:id/status", api.UpdateTaskStatus)
			auth.GET("/calendar/export", api.ExportCalendar)

			auth.GET("/objects", api.ListObjects)
			auth.GET("/objects/:id", api.GetObject)

			auth.GET("/techcards", api.ListTechCards)
			auth.GET("/techcards/frequency-audit", api.FrequencyAudit)
			auth.GET("/techcards/:id", api.GetTechCard)
			auth.POST("/techcards", api.CreateTechCard)
			auth.PUT("/techcards/:id", api.UpdateTechCard)
			auth.DELETE("/techcards/:id", api.DeleteTechCard)

			admin := auth.Group("")
			admin.Use(api.AdminRequired())
			{
				admin.POST("/objects", api.CreateObject)
				admin.PUT("/objects/:id", api.UpdateObject)
				admin.DELETE("/objects/:id", api.DeleteObject)

				admin.POST("/maintenance/reconcile", api.Reconcile)
			}
		}
	}

	return r
}

// requestLogger 以结构化日志记录每个请求
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}
