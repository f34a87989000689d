package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	rediscommon "ble-route-timer/internal/common/redis"
	"ble-route-timer/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStreamScanner 基于 Redis Streams 的扫描源
//
// 网关侧把读数 XADD 到 readings stream（values 带 "data" 字段，内容为
// models.ReadingPayload JSON），这里用消费者组读出并确认。
// 适合多个计时服务实例分摊不同路线的部署
type RedisStreamScanner struct {
	client       *redis.Client
	stream       string
	group        string
	consumerName string
	batchSize    int64
	logger       *zap.Logger

	readings chan models.Reading
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRedisStreamScanner 创建 Streams 扫描源
func NewRedisStreamScanner(client *redis.Client, stream, group, consumerName string, batchSize int64, bufferSize int, logger *zap.Logger) *RedisStreamScanner {
	if batchSize <= 0 {
		batchSize = 10
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &RedisStreamScanner{
		client:       client,
		stream:       stream,
		group:        group,
		consumerName: consumerName,
		batchSize:    batchSize,
		logger:       logger,
		readings:     make(chan models.Reading, bufferSize),
		done:         make(chan struct{}),
	}
}

// Start 创建消费者组并启动消费循环
func (s *RedisStreamScanner) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, s.client, s.stream, s.group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.wg.Add(1)
	go s.consumeLoop(ctx)

	s.logger.Info("Stream scanner started",
		zap.String("stream", s.stream),
		zap.String("consumer_group", s.group),
		zap.String("consumer_name", s.consumerName),
	)
	return nil
}

// Readings 读数通道；消费循环退出时关闭
func (s *RedisStreamScanner) Readings() <-chan models.Reading {
	return s.readings
}

// Stop 停止扫描（幂等），等消费循环退出后返回
func (s *RedisStreamScanner) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return nil
}

func (s *RedisStreamScanner) consumeLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.readings)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		messages, err := rediscommon.ReadFromStream(ctx, s.client, s.stream, s.group, s.consumerName, s.batchSize, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to read from stream", zap.Error(err))
			// 出错退避 1 秒再重试
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range messages {
			reading, err := parseStreamMessage(msg)
			if err != nil {
				s.logger.Warn("Skipping malformed stream message",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
			} else {
				select {
				case <-s.done:
					return
				case <-ctx.Done():
					return
				case s.readings <- reading:
				}
			}

			if err := rediscommon.AckMessage(ctx, s.client, s.stream, s.group, msg.ID); err != nil {
				s.logger.Warn("Failed to ack message",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func parseStreamMessage(msg rediscommon.StreamMessage) (models.Reading, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return models.Reading{}, fmt.Errorf("stream message %s has no data field", msg.ID)
	}

	var p models.ReadingPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return models.Reading{}, fmt.Errorf("failed to unmarshal reading payload: %w", err)
	}
	if p.Address == "" {
		return models.Reading{}, fmt.Errorf("reading payload has no address")
	}

	return p.ToReading(), nil
}
