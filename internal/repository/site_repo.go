package repository

import (
	"context"

	"gorm.io/gorm"

	"crewtrack/backend/internal/model"
)

// SiteRepository 站点数据访问接口
// 站点由管理后台域维护，考勤核心只读
type SiteRepository interface {
	GetByID(ctx context.Context, id string) (*model.Site, error)
}

type siteRepo struct {
	db *gorm.DB
}

// NewSiteRepo 创建 SiteRepository 实例
func NewSiteRepo(db *gorm.DB) SiteRepository {
	return &siteRepo{db: db}
}

func (r *siteRepo) GetByID(ctx context.Context, id string) (*model.Site, error) {
	var site model.Site
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND is_active = ?", id, true).
		First(&site).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}
