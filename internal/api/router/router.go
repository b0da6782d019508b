package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crewtrack/backend/config"
	"crewtrack/backend/internal/api/handler"
	"crewtrack/backend/internal/api/middleware"
	"crewtrack/backend/pkg/jwt"
	"crewtrack/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(1 << 20)) // 1 MiB，位置上报体很小

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		attendance := v1.Group("/attendance")
		attendance.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 位置上报是高频接口，限流粒度放宽
			attendance.POST("/location", middleware.RateLimit(rdb, 120, time.Minute), h.Attendance.SubmitLocation)
			attendance.POST("/check-in", middleware.RateLimit(rdb, 10, time.Minute), h.Attendance.CheckIn)
			attendance.POST("/check-out", middleware.RateLimit(rdb, 10, time.Minute), h.Attendance.CheckOut)
			attendance.GET("/me", h.Attendance.GetStatus)

			// 在场事件流（调度端大屏订阅）
			attendance.GET("/events", middleware.RoleAuth("admin"), h.Events.Subscribe)
		}
	}

	return r
}
