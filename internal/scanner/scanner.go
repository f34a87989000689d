package scanner

import (
	"context"

	"ble-route-timer/internal/models"
)

// DeviceScanner 设备扫描器契约
//
// Start 失败对本轮计时是致命的；Readings 返回的通道无界期可能长时间
// 没有数据（静默不代表结束）；Stop 幂等，可以在清理路径重复调用，
// 返回后不再投递读数
type DeviceScanner interface {
	Start(ctx context.Context) error
	Readings() <-chan models.Reading
	Stop() error
}
