package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"crewtrack/backend/internal/dto"
	"crewtrack/backend/internal/model"
	"crewtrack/backend/internal/repository"
)

// ── Mock SiteRepository ──

type mockSiteRepo struct {
	sites map[string]*model.Site
}

func newMockSiteRepo() *mockSiteRepo {
	return &mockSiteRepo{sites: make(map[string]*model.Site)}
}

func (m *mockSiteRepo) GetByID(_ context.Context, id string) (*model.Site, error) {
	if s, ok := m.sites[id]; ok && s.IsActive {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock EmployeeRepository ──

type mockEmployeeRepo struct {
	employees map[string]*model.Employee
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{employees: make(map[string]*model.Employee)}
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id string) (*model.Employee, error) {
	if e, ok := m.employees[id]; ok && e.IsActive {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEmployeeRepo) GetAssignedSiteID(ctx context.Context, employeeID string) (string, error) {
	e, err := m.GetByID(ctx, employeeID)
	if err != nil {
		return "", err
	}
	if e.SiteID == nil {
		return "", nil
	}
	return *e.SiteID, nil
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct {
	mu      sync.Mutex
	records map[string]*model.AttendanceRecord
	seq     int
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: make(map[string]*model.AttendanceRecord)}
}

func (m *mockAttendanceRepo) CreateOpenRecord(_ context.Context, record *model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 模拟部分唯一索引：同一员工至多一条未签退记录
	for _, r := range m.records {
		if r.EmployeeID == record.EmployeeID && r.CheckOutAt == nil {
			return repository.ErrAlreadyOpen
		}
	}

	m.seq++
	if record.RecordID == "" {
		record.RecordID = fmt.Sprintf("rec-%03d", m.seq)
	}
	cp := *record
	m.records[record.RecordID] = &cp
	return nil
}

func (m *mockAttendanceRepo) CloseRecord(_ context.Context, recordID string, checkOutAt time.Time, reason string, lat, lon *float64) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[recordID]
	if !ok || r.CheckOutAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	t := checkOutAt
	r.CheckOutAt = &t
	r.ClosedReason = &reason
	if lat != nil {
		r.CheckOutLat = lat
	}
	if lon != nil {
		r.CheckOutLon = lon
	}
	cp := *r
	return &cp, nil
}

func (m *mockAttendanceRepo) GetOpenByEmployee(_ context.Context, employeeID string) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.EmployeeID == employeeID && r.CheckOutAt == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) GetByID(_ context.Context, recordID string) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[recordID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) ListOpenBefore(_ context.Context, before time.Time) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []model.AttendanceRecord
	for _, r := range m.records {
		if r.CheckOutAt == nil && r.CheckInAt.Before(before) {
			result = append(result, *r)
		}
	}
	return result, nil
}

// openCount 未签退记录数（不变量断言用）
func (m *mockAttendanceRepo) openCount(employeeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.records {
		if r.EmployeeID == employeeID && r.CheckOutAt == nil {
			n++
		}
	}
	return n
}

// ── Mock EventPublisher ──

type capturePublisher struct {
	mu     sync.Mutex
	events []dto.PresenceEvent
}

func (p *capturePublisher) Publish(event dto.PresenceEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []dto.PresenceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dto.PresenceEvent(nil), p.events...)
}

func (p *capturePublisher) last() (dto.PresenceEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return dto.PresenceEvent{}, false
	}
	return p.events[len(p.events)-1], true
}
