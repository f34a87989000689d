package route

import (
	"math"
	"time"
)

// PointType 路线点类型
type PointType string

const (
	PointStart      PointType = "start"
	PointCheckpoint PointType = "checkpoint"
	PointEnd        PointType = "end"
)

// SignalReading 某一时刻的信号强度
type SignalReading struct {
	Timestamp time.Time
	Strength  float64
}

// Point 路线点
//
// 单传感器点只有 Sensor1；双传感器点（起终点的门线两侧各放一个信标）
// Sensor1 和 Sensor2 都非 nil。最强信号的计算按点的形态分两种实现
type Point struct {
	Type PointType
	Name string

	Sensor1 *Sensor
	Sensor2 *Sensor
}

// NewSinglePoint 创建单传感器路线点
func NewSinglePoint(pointType PointType, name string, sensor *Sensor) *Point {
	return &Point{
		Type:    pointType,
		Name:    name,
		Sensor1: sensor,
	}
}

// NewDualPoint 创建双传感器路线点
func NewDualPoint(pointType PointType, name string, sensor1, sensor2 *Sensor) *Point {
	return &Point{
		Type:    pointType,
		Name:    name,
		Sensor1: sensor1,
		Sensor2: sensor2,
	}
}

// IsDual 是否为双传感器点
func (p *Point) IsDual() bool {
	return p.Sensor2 != nil
}

// Sensors 点上的全部传感器（1 或 2 个）
func (p *Point) Sensors() []*Sensor {
	if p.IsDual() {
		return []*Sensor{p.Sensor1, p.Sensor2}
	}
	return []*Sensor{p.Sensor1}
}

// HasSensor 点是否包含指定传感器
func (p *Point) HasSensor(sensor *Sensor) bool {
	return sensor != nil && (sensor == p.Sensor1 || sensor == p.Sensor2)
}

// StrongestSignal 计算该点的最强信号（通过时刻的最佳估计）
//
// 单传感器点：取历史中强度最大的读数；强度相同取更早的时刻，保证结果 deterministic。
// 双传感器点：只在两个传感器都有读数的时刻上计算（时间戳精确相等取交集），
// 强度为两者之和；组合强度相同的时刻里选两路信号最接近的那个
// （差值小说明正好在两个信标中间通过，而不是斜着擦过单边）。
//
// 每次调用都从当前历史重新计算，不做缓存：后到的更强读数要能替换之前的结果
func (p *Point) StrongestSignal() (SignalReading, bool) {
	if p.IsDual() {
		return p.strongestCombined()
	}
	return p.strongestSingle()
}

func (p *Point) strongestSingle() (SignalReading, bool) {
	if !p.Sensor1.HasReadings() {
		return SignalReading{}, false
	}

	var best SignalReading
	found := false
	for ts, rssi := range p.Sensor1.history {
		if !found || rssi > best.Strength || (rssi == best.Strength && ts.Before(best.Timestamp)) {
			best = SignalReading{Timestamp: ts, Strength: rssi}
			found = true
		}
	}
	return best, found
}

func (p *Point) strongestCombined() (SignalReading, bool) {
	var (
		best        SignalReading
		bestBalance float64
		found       bool
	)

	// 两个传感器历史的键交集；遍历较小的一侧
	a, b := p.Sensor1.history, p.Sensor2.history
	if len(b) < len(a) {
		a, b = b, a
	}

	for ts, rssi := range a {
		other, ok := b[ts]
		if !ok {
			continue
		}

		combined := rssi + other
		balance := math.Abs(rssi - other)

		switch {
		case !found,
			combined > best.Strength,
			combined == best.Strength && balance < bestBalance,
			combined == best.Strength && balance == bestBalance && ts.Before(best.Timestamp):
			best = SignalReading{Timestamp: ts, Strength: combined}
			bestBalance = balance
			found = true
		}
	}

	return best, found
}
