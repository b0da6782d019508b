package repository

import (
	"context"

	"gorm.io/gorm"

	"crewtrack/backend/internal/model"
)

// EmployeeRepository 员工数据访问接口
// 档案维护归管理后台域，这里只提供身份与站点指派的只读查询
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (*model.Employee, error)
	// GetAssignedSiteID 返回员工的指派站点；未指派时返回 ("", nil)
	GetAssignedSiteID(ctx context.Context, employeeID string) (string, error)
}

type employeeRepo struct {
	db *gorm.DB
}

// NewEmployeeRepo 创建 EmployeeRepository 实例
func NewEmployeeRepo(db *gorm.DB) EmployeeRepository {
	return &employeeRepo{db: db}
}

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*model.Employee, error) {
	var emp model.Employee
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND is_active = ?", id, true).
		First(&emp).Error
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepo) GetAssignedSiteID(ctx context.Context, employeeID string) (string, error) {
	emp, err := r.GetByID(ctx, employeeID)
	if err != nil {
		return "", err
	}
	if emp.SiteID == nil {
		return "", nil
	}
	return *emp.SiteID, nil
}
