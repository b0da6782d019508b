package service

import (
	"go.uber.org/zap"

	"crewtrack/backend/config"
	"crewtrack/backend/internal/repository"
	"crewtrack/backend/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Attendance AttendanceService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	pub EventPublisher,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	return &Service{
		Attendance: NewAttendanceService(cfg, repo, pub, rdb, logger),
	}
}
