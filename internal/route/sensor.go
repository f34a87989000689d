package route

import "time"

// Sensor BLE 信标传感器
//
// Name 是语义名（如 "a_line_start_1"），Address 是物理 MAC 地址，
// 也是读数路由的关联键。history 按观测时刻记录信号强度（dBm），
// 同一时刻后写覆盖先写
type Sensor struct {
	Name    string
	Address string

	history map[time.Time]float64
}

// NewSensor 创建传感器
func NewSensor(name, address string) *Sensor {
	return &Sensor{
		Name:    name,
		Address: address,
		history: make(map[time.Time]float64),
	}
}

// AddReading 追加一条信号强度读数
//
// 时间戳去掉单调时钟部分后作为键，保证两个传感器对同一时刻的
// 读数能精确对齐（双传感器点按键取交集）
func (s *Sensor) AddReading(rssi float64, timestamp time.Time) {
	s.history[timestamp.Round(0)] = rssi
}

// HasReadings 是否有任何读数
func (s *Sensor) HasReadings() bool {
	return len(s.history) > 0
}

// ReadingCount 读数条数
func (s *Sensor) ReadingCount() int {
	return len(s.history)
}

// Clear 清空读数（开始新一轮计时时调用）
func (s *Sensor) Clear() {
	s.history = make(map[time.Time]float64)
}
