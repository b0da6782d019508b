package dto

import "time"

// ── 考勤模块 DTO ──

// LocationPayload 客户端上报的单条定位样本
// 经纬度合法性由 geo 层校验（0 是合法取值，不能用 required）
type LocationPayload struct {
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	AccuracyM  float64    `json:"accuracy_m"  binding:"gte=0"`
	CapturedAt *time.Time `json:"captured_at" binding:"omitempty"` // 缺省取服务端时间
}

// SubmitLocationRequest 位置上报请求
type SubmitLocationRequest struct {
	Location LocationPayload `json:"location" binding:"required"`
}

// CheckInRequest 签到请求
// Location 可空：无定位时签到会被拒绝并明确告知原因
type CheckInRequest struct {
	Location *LocationPayload `json:"location" binding:"omitempty"`
}

// PresenceDecisionResponse 单次在场判定响应
// on_site 按名义半径（精确口径）展示；within_effective 是签到资格口径
type PresenceDecisionResponse struct {
	EmployeeID      string           `json:"employee_id"`
	DistanceM       float64          `json:"distance_m"`
	OnSite          bool             `json:"on_site"`
	WithinEffective bool             `json:"within_effective"`
	EvaluatedAt     string           `json:"evaluated_at"`
	Filtered        bool             `json:"filtered"` // true 表示样本被预热过滤丢弃，未产生判定
	AutoClosed      *AutoCloseNotice `json:"auto_closed,omitempty"`
}

// AutoCloseNotice 自动签退告知（信息性结果，不是错误）
type AutoCloseNotice struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"` // AUTO_GEOFENCE_EXIT | AUTO_DURATION_LIMIT
}

// AttendanceRecordResponse 考勤记录响应
type AttendanceRecordResponse struct {
	RecordID     string `json:"record_id"`
	EmployeeID   string `json:"employee_id"`
	SiteID       string `json:"site_id"`
	CheckInAt    string `json:"check_in_at"`
	CheckOutAt   string `json:"check_out_at,omitempty"`
	ClosedReason string `json:"closed_reason,omitempty"`
}

// PresenceStatusResponse 员工当前在场状态
type PresenceStatusResponse struct {
	EmployeeID string                    `json:"employee_id"`
	State      string                    `json:"state"` // NOT_CHECKED_IN | CHECKED_IN
	OpenRecord *AttendanceRecordResponse `json:"open_record,omitempty"`
	AutoClosed *AutoCloseNotice          `json:"auto_closed,omitempty"` // 上一条记录若被自动关闭，在下次查询时告知
}
