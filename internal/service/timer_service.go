package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ble-route-timer/internal/cache"
	"ble-route-timer/internal/common/database"
	mqttcommon "ble-route-timer/internal/common/mqtt"
	rediscommon "ble-route-timer/internal/common/redis"
	"ble-route-timer/internal/config"
	"ble-route-timer/internal/models"
	"ble-route-timer/internal/notifier"
	"ble-route-timer/internal/repository"
	"ble-route-timer/internal/route"
	"ble-route-timer/internal/scanner"
	"ble-route-timer/internal/timing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 结束后发布结果的收尾时限（此时外部 ctx 可能已取消）
const publishTimeout = 5 * time.Second

// RouteTimerService 路线计时服务
type RouteTimerService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	routeRepo   *repository.RouteRepository
	liveCache   *cache.LiveCache
	notifier    *notifier.WebhookNotifier
}

// NewRouteTimerService 创建路线计时服务
//
// 只初始化配置实际用到的外部连接：路线定义来自 Postgres 才连库，
// 扫描源或缓存用到 Redis 才连 Redis，MQTT 同理
func NewRouteTimerService(cfg *config.Config, logger *zap.Logger) (*RouteTimerService, error) {
	s := &RouteTimerService{
		config: cfg,
		logger: logger,
	}

	if cfg.Route.Source == "postgres" {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		s.routeRepo = repository.NewRouteRepository(db, logger)
	}

	if cfg.Cache.Enabled || cfg.Scanner.Source == "redis" {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), s.redisClient); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if cfg.Scanner.Source == "mqtt" || cfg.Notifier.MQTTTopic != "" {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		s.mqttClient = mqttClient
	}

	if cfg.Cache.Enabled {
		kv := cache.NewRedisKVStore(s.redisClient)
		s.liveCache = cache.NewLiveCache(kv, cfg.Cache.KeyPrefix, time.Duration(cfg.Cache.TTLSec)*time.Second, logger)
	}

	if cfg.Notifier.WebhookURL != "" {
		s.notifier = notifier.NewWebhookNotifier(
			cfg.Notifier.WebhookURL,
			time.Duration(cfg.Notifier.TimeoutSec)*time.Second,
			cfg.Notifier.RetryCount,
			logger,
		)
	}

	return s, nil
}

// Run 执行一轮完整计时：加载路线 → 扫描 → 发布结果
//
// 外部取消时返回已累积数据的结果和 ctx 的错误，结果照常发布
func (s *RouteTimerService) Run(ctx context.Context) (*models.RaceResult, error) {
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))

	r, err := s.loadRoute()
	if err != nil {
		return nil, fmt.Errorf("failed to load route: %w", err)
	}
	// 传感器可能带着上一轮的读数
	r.ClearReadings()

	logger.Info("Starting race run",
		zap.String("route", r.Name),
		zap.Int("checkpoints", len(r.Checkpoints)),
	)

	sc, err := s.newScanner()
	if err != nil {
		return nil, err
	}

	loop := timing.NewScanLoop(
		sc,
		r,
		time.Duration(s.config.Timer.CompletionSec)*time.Second,
		time.Duration(s.config.Timer.AbsoluteSec)*time.Second,
		logger,
	)

	if s.liveCache != nil {
		// 每秒最多发布一次实时快照；回调运行在扫描循环的控制流里
		var lastPublish time.Time
		loop.OnUpdate = func(r *route.Route) {
			if time.Since(lastPublish) < time.Second {
				return
			}
			lastPublish = time.Now()
			if err := s.liveCache.PublishSnapshot(ctx, runID, r); err != nil {
				logger.Warn("Failed to publish live snapshot", zap.Error(err))
			}
		}
	}

	reason, runErr := loop.Run(ctx)
	if runErr != nil && reason != timing.StopCancelled {
		return nil, runErr
	}

	result := buildResult(runID, r, reason)
	s.publishResult(result, logger)

	if rt, ok := r.TotalTime(); ok {
		logger.Info("Race run finished",
			zap.String("stop_reason", string(reason)),
			zap.Float64("duration_seconds", rt.DurationSeconds),
		)
	} else {
		logger.Info("Race run finished without a complete time",
			zap.String("stop_reason", string(reason)),
			zap.Int("passages", len(result.Passages)),
		)
	}

	// 取消要继续向调用方传播
	return result, runErr
}

// Stop 释放外部连接
func (s *RouteTimerService) Stop(ctx context.Context) error {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		return err
	}
	return nil
}

// loadRoute 按配置加载并构建路线
func (s *RouteTimerService) loadRoute() (*route.Route, error) {
	var def *models.RouteDefinition

	switch s.config.Route.Source {
	case "postgres":
		loaded, err := s.routeRepo.GetRouteByName(s.config.Route.Name)
		if err != nil {
			return nil, err
		}
		def = loaded
	case "file":
		data, err := os.ReadFile(s.config.Route.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read route file: %w", err)
		}
		def = &models.RouteDefinition{}
		if err := json.Unmarshal(data, def); err != nil {
			return nil, fmt.Errorf("failed to parse route file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported route source: %s", s.config.Route.Source)
	}

	return route.Build(def)
}

// newScanner 按配置创建扫描源
func (s *RouteTimerService) newScanner() (scanner.DeviceScanner, error) {
	switch s.config.Scanner.Source {
	case "mqtt":
		return scanner.NewMQTTScanner(
			s.mqttClient,
			s.config.Scanner.Topic,
			s.config.MQTT.QoS,
			s.config.Scanner.BufferSize,
			s.logger,
		), nil
	case "redis":
		return scanner.NewRedisStreamScanner(
			s.redisClient,
			s.config.Scanner.Stream,
			s.config.Scanner.ConsumerGroup,
			s.config.Scanner.ConsumerName,
			int64(s.config.Scanner.BatchSize),
			s.config.Scanner.BufferSize,
			s.logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported scanner source: %s", s.config.Scanner.Source)
	}
}

// publishResult 发布最终结果到缓存、Webhook 和 MQTT（失败只记日志）
func (s *RouteTimerService) publishResult(result *models.RaceResult, logger *zap.Logger) {
	publishMQTT := s.mqttClient != nil && s.config.Notifier.MQTTTopic != ""
	if s.liveCache == nil && s.notifier == nil && !publishMQTT {
		return
	}

	// 外部 ctx 此时可能已取消，收尾用独立的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if s.liveCache != nil {
		if err := s.liveCache.PublishResult(ctx, result); err != nil {
			logger.Warn("Failed to publish race result to cache", zap.Error(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyResult(ctx, result); err != nil {
			logger.Warn("Failed to deliver race result webhook", zap.Error(err))
		}
	}
	if publishMQTT {
		data, err := json.Marshal(result)
		if err != nil {
			logger.Warn("Failed to marshal race result", zap.Error(err))
		} else if err := s.mqttClient.Publish(s.config.Notifier.MQTTTopic, s.config.MQTT.QoS, false, data); err != nil {
			logger.Warn("Failed to publish race result to MQTT", zap.Error(err))
		}
	}
}

// buildResult 从路线当前状态组装最终结果
func buildResult(runID string, r *route.Route, reason timing.StopReason) *models.RaceResult {
	result := &models.RaceResult{
		RunID:      runID,
		RouteName:  r.Name,
		Passages:   cache.PassageRecords(r),
		StopReason: string(reason),
		FinishedAt: time.Now(),
	}

	if rt, ok := r.TotalTime(); ok {
		start, end, duration := rt.StartTime, rt.EndTime, rt.DurationSeconds
		result.StartTime = &start
		result.EndTime = &end
		result.DurationSeconds = &duration
	}

	return result
}
