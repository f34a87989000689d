package models

import "time"

// Reading 单条 BLE 广播读数
//
// 由扫描源（MQTT 网关或 Redis Streams）上报，address 是信标的物理地址
// （MAC），rssi 为信号强度（dBm，越接近 0 越强）
type Reading struct {
	Address   string    `json:"address"`
	RSSI      float64   `json:"rssi"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadingPayload MQTT/Streams 上报的原始负载
//
// timestamp 为 Unix 毫秒；为 0 时由消费端补当前时间（网关时钟不可靠的场景）
type ReadingPayload struct {
	Address     string  `json:"address"`
	RSSI        float64 `json:"rssi"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// ToReading 转换为内部 Reading
func (p *ReadingPayload) ToReading() Reading {
	ts := time.Now()
	if p.TimestampMs > 0 {
		ts = time.UnixMilli(p.TimestampMs)
	}
	return Reading{
		Address:   p.Address,
		RSSI:      p.RSSI,
		Timestamp: ts,
	}
}
