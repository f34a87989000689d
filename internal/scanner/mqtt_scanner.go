package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqttcommon "ble-route-timer/internal/common/mqtt"
	"ble-route-timer/internal/models"

	"go.uber.org/zap"
)

// MQTTScanner 基于 MQTT 的扫描源
//
// BLE 网关把扫到的广播发布到 ble/{gateway_id}/adv，负载为
// models.ReadingPayload JSON。网关数量不限，同一主题模式统一订阅
type MQTTScanner struct {
	client *mqttcommon.Client
	topic  string
	qos    byte
	logger *zap.Logger

	readings chan models.Reading
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// NewMQTTScanner 创建 MQTT 扫描源
func NewMQTTScanner(client *mqttcommon.Client, topic string, qos byte, bufferSize int, logger *zap.Logger) *MQTTScanner {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &MQTTScanner{
		client:   client,
		topic:    topic,
		qos:      qos,
		logger:   logger,
		readings: make(chan models.Reading, bufferSize),
		done:     make(chan struct{}),
	}
}

// Start 订阅广播主题，开始产出读数
func (s *MQTTScanner) Start(ctx context.Context) error {
	if err := s.client.Subscribe(s.topic, s.qos, s.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	s.logger.Info("MQTT scanner started", zap.String("topic", s.topic))
	return nil
}

// Readings 读数通道
func (s *MQTTScanner) Readings() <-chan models.Reading {
	return s.readings
}

// Stop 停止扫描（幂等）
//
// 取消订阅后关闭 done，阻塞中的投递会立即放弃；通道本身不关闭，
// 消费端靠定时器或取消退出
func (s *MQTTScanner) Stop() error {
	s.stopOnce.Do(func() {
		if err := s.client.Unsubscribe(s.topic); err != nil {
			s.stopErr = err
		}
		close(s.done)
		s.logger.Info("MQTT scanner stopped", zap.String("topic", s.topic))
	})
	return s.stopErr
}

// handleMessage 处理一条网关上报
// 主题格式: ble/{gateway_id}/adv
func (s *MQTTScanner) handleMessage(topic string, payload []byte) error {
	var p models.ReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal reading payload: %w", err)
	}
	if p.Address == "" {
		return fmt.Errorf("reading payload has no address (topic %s)", topic)
	}

	reading := p.ToReading()

	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		s.logger.Debug("Received reading",
			zap.String("gateway", parts[1]),
			zap.String("address", reading.Address),
			zap.Float64("rssi", reading.RSSI),
		)
	}

	select {
	case <-s.done:
		// 已停止，丢弃
	case s.readings <- reading:
	}
	return nil
}
