package route

import (
	"sort"
	"time"
)

// Route 一条路线：起点、若干检查点、终点
//
// 路线在配置阶段定义一次，运行期只通过其引用的 Sensor 追加读数，
// 结构本身不变
type Route struct {
	Name        string
	Start       *Point
	End         *Point
	Checkpoints []*Point
}

// Passage 一次通过：某个路线点及其最强信号的时刻与强度
type Passage struct {
	Point     *Point
	Timestamp time.Time
	Strength  float64
}

// RouteTime 路线总计时
//
// DurationSeconds 可能为负（终点最强信号早于起点时原样返回，不视为错误）
type RouteTime struct {
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds float64
}

// AllPoints 按声明顺序返回全部路线点：起点 → 检查点 → 终点
func (r *Route) AllPoints() []*Point {
	points := make([]*Point, 0, len(r.Checkpoints)+2)
	points = append(points, r.Start)
	points = append(points, r.Checkpoints...)
	points = append(points, r.End)
	return points
}

// Passages 按实际通过时间升序返回已有信号的路线点
//
// 注意排序键是通过时刻而不是声明顺序：选手折返、或检查点信标在
// 起终点附近也能被扫到时，两者可能不一致
func (r *Route) Passages() []Passage {
	var passages []Passage
	for _, point := range r.AllPoints() {
		signal, ok := point.StrongestSignal()
		if !ok {
			continue
		}
		passages = append(passages, Passage{
			Point:     point,
			Timestamp: signal.Timestamp,
			Strength:  signal.Strength,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Timestamp.Before(passages[j].Timestamp)
	})
	return passages
}

// TotalTime 计算起点到终点的总耗时
//
// 起点或终点还没有合格信号时返回 false
func (r *Route) TotalTime() (RouteTime, bool) {
	startSignal, ok := r.Start.StrongestSignal()
	if !ok {
		return RouteTime{}, false
	}
	endSignal, ok := r.End.StrongestSignal()
	if !ok {
		return RouteTime{}, false
	}

	return RouteTime{
		StartTime:       startSignal.Timestamp,
		EndTime:         endSignal.Timestamp,
		DurationSeconds: endSignal.Timestamp.Sub(startSignal.Timestamp).Seconds(),
	}, true
}

// AddressLookup 物理地址到传感器的映射（扫描循环用它路由读数）
func (r *Route) AddressLookup() map[string]*Sensor {
	lookup := make(map[string]*Sensor)
	for _, point := range r.AllPoints() {
		for _, sensor := range point.Sensors() {
			lookup[sensor.Address] = sensor
		}
	}
	return lookup
}

// KnownAddresses 路线上全部传感器的物理地址
func (r *Route) KnownAddresses() []string {
	lookup := r.AddressLookup()
	addresses := make([]string, 0, len(lookup))
	for address := range lookup {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

// IsEndSensor 传感器是否属于终点
func (r *Route) IsEndSensor(sensor *Sensor) bool {
	return r.End.HasSensor(sensor)
}

// ClearReadings 清空全部传感器读数（开始新一轮计时）
func (r *Route) ClearReadings() {
	for _, point := range r.AllPoints() {
		for _, sensor := range point.Sensors() {
			sensor.Clear()
		}
	}
}
