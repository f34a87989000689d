package notifier

import (
	"context"
	"fmt"
	"time"

	"ble-route-timer/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 结果 Webhook 推送
//
// 计时结束后把 RaceResult POST 到外部系统（成绩榜、通知服务等）。
// 推送失败只记日志，不影响本轮结果
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 推送器
func NewWebhookNotifier(url string, timeout time.Duration, retryCount int, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// NotifyResult 推送最终结果
func (n *WebhookNotifier) NotifyResult(ctx context.Context, result *models.RaceResult) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(result).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to post race result: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	n.logger.Info("Race result delivered",
		zap.String("run_id", result.RunID),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}
