package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ble-route-timer/internal/models"
	"ble-route-timer/internal/route"

	"go.uber.org/zap"
)

// LiveCache 实时结果缓存
//
// 计时过程中发布当前通过快照，结束后发布最终结果；键都带 TTL，
// 只是实时视图，不做跨重启持久化
type LiveCache struct {
	kv        KVStore
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// Snapshot 计时过程中的实时快照
type Snapshot struct {
	RunID           string                 `json:"run_id"`
	RouteName       string                 `json:"route_name"`
	Passages        []models.PassageRecord `json:"passages"`
	DurationSeconds *float64               `json:"duration_seconds,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// NewLiveCache 创建实时结果缓存
func NewLiveCache(kv KVStore, keyPrefix string, ttl time.Duration, logger *zap.Logger) *LiveCache {
	if keyPrefix == "" {
		keyPrefix = "route-timer"
	}
	return &LiveCache{
		kv:        kv,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// PublishSnapshot 发布当前通过快照
func (c *LiveCache) PublishSnapshot(ctx context.Context, runID string, r *route.Route) error {
	snapshot := Snapshot{
		RunID:     runID,
		RouteName: r.Name,
		Passages:  PassageRecords(r),
		UpdatedAt: time.Now(),
	}
	if rt, ok := r.TotalTime(); ok {
		d := rt.DurationSeconds
		snapshot.DurationSeconds = &d
	}

	key := fmt.Sprintf("%s:run:%s:passages", c.keyPrefix, runID)
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	c.logger.Debug("Published live snapshot",
		zap.String("run_id", runID),
		zap.Int("passages", len(snapshot.Passages)),
	)
	return nil
}

// PublishResult 发布最终结果
func (c *LiveCache) PublishResult(ctx context.Context, result *models.RaceResult) error {
	key := fmt.Sprintf("%s:run:%s:result", c.keyPrefix, result.RunID)

	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal race result: %w", err)
	}

	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set result cache: %w", err)
	}

	c.logger.Debug("Published race result", zap.String("run_id", result.RunID))
	return nil
}

// PassageRecords 把路线当前的通过列表转成可序列化记录
func PassageRecords(r *route.Route) []models.PassageRecord {
	passages := r.Passages()
	records := make([]models.PassageRecord, 0, len(passages))
	for _, p := range passages {
		records = append(records, models.PassageRecord{
			Point:     p.Point.Name,
			Type:      string(p.Point.Type),
			Timestamp: p.Timestamp,
			Strength:  p.Strength,
		})
	}
	return records
}
