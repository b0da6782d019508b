package dto

import (
	"fmt"
	"time"

	"crewtrack/backend/internal/geo"
)

// 在场事件类型
const (
	EventCheckIn  = "CHECK_IN"
	EventCheckOut = "CHECK_OUT"
)

// PresenceEvent 在场状态变更事件
// 每次状态迁移恰好产生一条，广播给所有订阅中的观察者；
// 跨重连为至少一次投递，观察者按 Key() 去重
type PresenceEvent struct {
	Type         string          `json:"type"` // CHECK_IN | CHECK_OUT
	EmployeeID   string          `json:"employee_id"`
	SiteID       string          `json:"site_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Location     *geo.Coordinate `json:"location,omitempty"`      // 事件发生时的位置（如有）
	ClosedReason string          `json:"closed_reason,omitempty"` // 仅 CHECK_OUT 携带
}

// Key 去重用复合键：(员工, 类型, 发生时刻)
func (e PresenceEvent) Key() string {
	return fmt.Sprintf("%s|%s|%d", e.EmployeeID, e.Type, e.OccurredAt.UnixNano())
}
