//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crewtrack/backend/internal/model"
	"crewtrack/backend/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=crewtrack password=crewtrack_password dbname=crewtrack_test sslmode=disable TimeZone=Asia/Shanghai"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 自动迁移测试表结构
	err = testDB.AutoMigrate(
		&model.Site{},
		&model.Employee{},
		&model.AttendanceRecord{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	// AutoMigrate 不生成部分唯一索引，与生产迁移保持一致手动补建
	err = testDB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_attendance_open_per_employee
		ON attendance_records (employee_id) WHERE check_out_at IS NULL`).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建部分唯一索引失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// setupTestData 创建基础测试数据并返回清理函数
func setupTestData(t *testing.T) (site *model.Site, emp *model.Employee, cleanup func()) {
	t.Helper()
	ctx := context.Background()

	site = &model.Site{
		Name:         fmt.Sprintf("测试站点-%d", time.Now().UnixNano()),
		CenterLat:    31.0,
		CenterLon:    121.0,
		FenceRadiusM: 200,
		IsActive:     true,
	}
	if err := testDB.WithContext(ctx).Create(site).Error; err != nil {
		t.Fatalf("创建站点失败: %v", err)
	}

	emp = &model.Employee{
		Name:       "测试员工",
		EmployeeNo: fmt.Sprintf("CT-%d", time.Now().UnixNano()),
		SiteID:     &site.SiteID,
		IsActive:   true,
	}
	if err := testDB.WithContext(ctx).Create(emp).Error; err != nil {
		t.Fatalf("创建员工失败: %v", err)
	}

	cleanup = func() {
		testDB.Unscoped().Where("employee_id = ?", emp.EmployeeID).Delete(&model.AttendanceRecord{})
		testDB.Unscoped().Where("employee_id = ?", emp.EmployeeID).Delete(&model.Employee{})
		testDB.Unscoped().Where("site_id = ?", site.SiteID).Delete(&model.Site{})
	}
	return
}

func openRecord(t *testing.T, repo repository.AttendanceRepository, emp *model.Employee, site *model.Site) *model.AttendanceRecord {
	t.Helper()
	record := &model.AttendanceRecord{
		EmployeeID: emp.EmployeeID,
		SiteID:     site.SiteID,
		CheckInAt:  time.Now(),
	}
	if err := repo.CreateOpenRecord(context.Background(), record); err != nil {
		t.Fatalf("创建考勤记录失败: %v", err)
	}
	return record
}

// ═══════════════════════════════════════════════════════════
// AttendanceRepository Tests
// ═══════════════════════════════════════════════════════════

func TestAttendanceRepo_CreateOpenRecord_UniqueBackstop(t *testing.T) {
	site, emp, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)
	openRecord(t, repo, emp, site)

	// 第二条未签退记录必须被部分唯一索引拦下
	dup := &model.AttendanceRecord{
		EmployeeID: emp.EmployeeID,
		SiteID:     site.SiteID,
		CheckInAt:  time.Now(),
	}
	err := repo.CreateOpenRecord(context.Background(), dup)
	if !errors.Is(err, repository.ErrAlreadyOpen) {
		t.Errorf("期望 ErrAlreadyOpen，实际: %v", err)
	}
}

func TestAttendanceRepo_CreateOpenRecord_AfterClose(t *testing.T) {
	site, emp, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)
	first := openRecord(t, repo, emp, site)

	if _, err := repo.CloseRecord(context.Background(), first.RecordID, time.Now(), model.ClosedReasonManual, nil, nil); err != nil {
		t.Fatalf("关闭记录失败: %v", err)
	}

	// 关闭后索引条件不再命中，可开新记录
	openRecord(t, repo, emp, site)
}

func TestAttendanceRepo_CloseRecord_OnlyOnce(t *testing.T) {
	site, emp, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)
	record := openRecord(t, repo, emp, site)

	lat, lon := 31.001, 121.001
	closed, err := repo.CloseRecord(context.Background(), record.RecordID, time.Now(), model.ClosedReasonGeofenceExit, &lat, &lon)
	if err != nil {
		t.Fatalf("关闭记录失败: %v", err)
	}
	if closed.ClosedReason == nil || *closed.ClosedReason != model.ClosedReasonGeofenceExit {
		t.Errorf("期望关闭原因AUTO_GEOFENCE_EXIT，实际=%v", closed.ClosedReason)
	}
	if closed.CheckOutLat == nil || *closed.CheckOutLat != lat {
		t.Errorf("期望签退纬度%v，实际=%v", lat, closed.CheckOutLat)
	}

	// 条件更新：已关闭的记录再关闭返回 ErrRecordNotFound
	_, err = repo.CloseRecord(context.Background(), record.RecordID, time.Now(), model.ClosedReasonManual, nil, nil)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际: %v", err)
	}

	// 原因不被第二次关闭覆盖
	got, err := repo.GetByID(context.Background(), record.RecordID)
	if err != nil {
		t.Fatalf("查询记录失败: %v", err)
	}
	if *got.ClosedReason != model.ClosedReasonGeofenceExit {
		t.Errorf("关闭原因被覆盖: %v", *got.ClosedReason)
	}
}

func TestAttendanceRepo_GetOpenByEmployee(t *testing.T) {
	site, emp, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)

	_, err := repo.GetOpenByEmployee(context.Background(), emp.EmployeeID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("无记录时期望 ErrRecordNotFound，实际: %v", err)
	}

	record := openRecord(t, repo, emp, site)
	got, err := repo.GetOpenByEmployee(context.Background(), emp.EmployeeID)
	if err != nil {
		t.Fatalf("查询未签退记录失败: %v", err)
	}
	if got.RecordID != record.RecordID {
		t.Errorf("期望记录%s，实际=%s", record.RecordID, got.RecordID)
	}
}

func TestAttendanceRepo_ListOpenBefore(t *testing.T) {
	site, emp, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)

	record := &model.AttendanceRecord{
		EmployeeID: emp.EmployeeID,
		SiteID:     site.SiteID,
		CheckInAt:  time.Now().Add(-3 * time.Hour),
	}
	if err := repo.CreateOpenRecord(context.Background(), record); err != nil {
		t.Fatalf("创建考勤记录失败: %v", err)
	}

	overdue, err := repo.ListOpenBefore(context.Background(), time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("查询超龄记录失败: %v", err)
	}
	found := false
	for _, r := range overdue {
		if r.RecordID == record.RecordID {
			found = true
		}
	}
	if !found {
		t.Error("超龄未签退记录应出现在巡检列表中")
	}

	// 关闭后不再出现
	if _, err := repo.CloseRecord(context.Background(), record.RecordID, time.Now(), model.ClosedReasonDurationLimit, nil, nil); err != nil {
		t.Fatalf("关闭记录失败: %v", err)
	}
	overdue, _ = repo.ListOpenBefore(context.Background(), time.Now().Add(-2*time.Hour))
	for _, r := range overdue {
		if r.RecordID == record.RecordID {
			t.Error("已关闭记录不应出现在巡检列表中")
		}
	}
}

// ═══════════════════════════════════════════════════════════
// EmployeeRepository Tests
// ═══════════════════════════════════════════════════════════

func TestEmployeeRepo_GetAssignedSiteID(t *testing.T) {
	site, emp, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewEmployeeRepo(testDB)

	siteID, err := repo.GetAssignedSiteID(context.Background(), emp.EmployeeID)
	if err != nil {
		t.Fatalf("查询指派站点失败: %v", err)
	}
	if siteID != site.SiteID {
		t.Errorf("期望站点%s，实际=%s", site.SiteID, siteID)
	}

	// 未指派站点的员工返回空串而非错误
	unassigned := &model.Employee{
		Name:       "未指派员工",
		EmployeeNo: fmt.Sprintf("CT-U%d", time.Now().UnixNano()),
		IsActive:   true,
	}
	if err := testDB.Create(unassigned).Error; err != nil {
		t.Fatalf("创建员工失败: %v", err)
	}
	defer testDB.Unscoped().Where("employee_id = ?", unassigned.EmployeeID).Delete(&model.Employee{})

	siteID, err = repo.GetAssignedSiteID(context.Background(), unassigned.EmployeeID)
	if err != nil {
		t.Fatalf("查询指派站点失败: %v", err)
	}
	if siteID != "" {
		t.Errorf("未指派员工期望空站点ID，实际=%s", siteID)
	}
}
