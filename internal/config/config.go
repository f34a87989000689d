package config

import (
	"fmt"
	"os"
	"strconv"

	"ble-route-timer/internal/common/config"
)

// Config 路线计时服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 扫描源配置
	Scanner struct {
		// 读数来源
		// 选项：mqtt（BLE 网关经 MQTT 上报）、redis（网关写入 Redis Streams）
		Source string

		// MQTT 模式：广播主题（支持通配，如 "ble/+/adv"）
		Topic string

		// Redis Streams 模式
		Stream        string // 读数流名称，如 "ble:readings"
		ConsumerGroup string // 消费者组名称
		ConsumerName  string // 消费者名称
		BatchSize     int    // 每次读取条数

		// 读数通道缓冲大小
		BufferSize int
	}

	// 定时器配置（秒）
	Timer struct {
		CompletionSec int // 终点信号多久不再变强就结束
		AbsoluteSec   int // 第一条终点信号后的总时长上限
	}

	// 路线定义来源
	Route struct {
		// 选项：file（JSON 文件）、postgres（routes / route_points 表）
		Source string
		Name   string // postgres 模式下要加载的路线名
		File   string // file 模式下的定义文件路径
	}

	// 实时结果缓存
	Cache struct {
		Enabled   bool
		KeyPrefix string
		TTLSec    int
	}

	// 结果通知
	Notifier struct {
		WebhookURL string // 为空则不走 Webhook
		TimeoutSec int
		RetryCount int

		// 最终结果同时发布到的 MQTT 主题；为空则不发布
		MQTTTopic string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 连接配置：先填默认值，再从环境变量覆盖
	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "routetimer",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{
		Addr: "localhost:6379",
	}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "ble-route-timer",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Scanner.Source = getEnv("SCANNER_SOURCE", "mqtt")
	cfg.Scanner.Topic = getEnv("SCANNER_TOPIC", "ble/+/adv")
	cfg.Scanner.Stream = getEnv("SCANNER_STREAM", "ble:readings")
	cfg.Scanner.ConsumerGroup = getEnv("SCANNER_CONSUMER_GROUP", "route-timer-group")
	cfg.Scanner.ConsumerName = getEnv("SCANNER_CONSUMER_NAME", "route-timer-1")
	cfg.Scanner.BatchSize = getEnvInt("SCANNER_BATCH_SIZE", 10)
	cfg.Scanner.BufferSize = getEnvInt("SCANNER_BUFFER_SIZE", 256)

	cfg.Timer.CompletionSec = getEnvInt("COMPLETION_TIMER_SEC", 15)
	cfg.Timer.AbsoluteSec = getEnvInt("ABSOLUTE_TIMER_SEC", 30)

	cfg.Route.Source = getEnv("ROUTE_SOURCE", "file")
	cfg.Route.Name = getEnv("ROUTE_NAME", "")
	cfg.Route.File = getEnv("ROUTE_FILE", "route.json")

	cfg.Cache.Enabled = getEnv("CACHE_ENABLED", "true") == "true"
	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "route-timer")
	cfg.Cache.TTLSec = getEnvInt("CACHE_TTL_SEC", 3600)

	cfg.Notifier.WebhookURL = getEnv("RESULT_WEBHOOK_URL", "")
	cfg.Notifier.TimeoutSec = getEnvInt("RESULT_WEBHOOK_TIMEOUT_SEC", 10)
	cfg.Notifier.RetryCount = getEnvInt("RESULT_WEBHOOK_RETRY_COUNT", 3)
	cfg.Notifier.MQTTTopic = getEnv("RESULT_MQTT_TOPIC", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Scanner.Source {
	case "mqtt", "redis":
	default:
		return fmt.Errorf("unsupported scanner source: %s", c.Scanner.Source)
	}

	switch c.Route.Source {
	case "file":
		if c.Route.File == "" {
			return fmt.Errorf("ROUTE_FILE is required when ROUTE_SOURCE=file")
		}
	case "postgres":
		if c.Route.Name == "" {
			return fmt.Errorf("ROUTE_NAME is required when ROUTE_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("unsupported route source: %s", c.Route.Source)
	}

	if c.Timer.CompletionSec <= 0 || c.Timer.AbsoluteSec <= 0 {
		return fmt.Errorf("timer durations must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
