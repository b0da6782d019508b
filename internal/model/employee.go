package model

// Employee 员工表 — 对应 employees
// 档案维护归管理后台域，本服务只关心身份与站点指派
type Employee struct {
	EmployeeID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"employee_id"`
	Name       string  `gorm:"type:varchar(50);not null"                      json:"name"`
	EmployeeNo string  `gorm:"type:varchar(30);not null;uniqueIndex"          json:"employee_no"`
	SiteID     *string `gorm:"type:uuid"                                      json:"site_id,omitempty"` // 指派站点，可空
	IsActive   bool    `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel

	// 关联
	Site *Site `gorm:"foreignKey:SiteID;references:SiteID" json:"site,omitempty"`
}

// TableName 指定表名
func (Employee) TableName() string { return "employees" }
