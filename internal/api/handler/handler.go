package handler

import (
	"go.uber.org/zap"

	"crewtrack/backend/config"
	"crewtrack/backend/internal/broadcast"
	"crewtrack/backend/internal/service"
	"crewtrack/backend/pkg/redis"
)

// Handler 所有 HTTP 处理器的聚合入口
type Handler struct {
	Attendance *AttendanceHandler
	Events     *EventsHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service, hub *broadcast.Hub, rdb *redis.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Attendance: NewAttendanceHandler(svc.Attendance),
		Events:     NewEventsHandler(cfg, hub, rdb, logger),
	}
}
