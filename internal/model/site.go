package model

import "crewtrack/backend/internal/geo"

// Site 工作站点表 — 对应 sites
// 站点的维护归管理后台域，本服务只读引用
type Site struct {
	SiteID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"site_id"`
	Name         string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Address      string  `gorm:"type:varchar(200)"                              json:"address,omitempty"`
	CenterLat    float64 `gorm:"not null"                                       json:"center_lat"`
	CenterLon    float64 `gorm:"not null"                                       json:"center_lon"`
	FenceRadiusM float64 `gorm:"column:fence_radius_m;not null"                 json:"fence_radius_m"`
	IsActive     bool    `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel
}

// TableName 指定表名
func (Site) TableName() string { return "sites" }

// Center 站点中心坐标
func (s *Site) Center() geo.Coordinate {
	return geo.Coordinate{Lat: s.CenterLat, Lon: s.CenterLon}
}

// Fence 站点对应的圆形电子围栏
func (s *Site) Fence() geo.Fence {
	return geo.Fence{Center: s.Center(), RadiusM: s.FenceRadiusM}
}
