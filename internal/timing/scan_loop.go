package timing

import (
	"context"
	"fmt"
	"time"

	"ble-route-timer/internal/route"
	"ble-route-timer/internal/scanner"

	"go.uber.org/zap"
)

// 默认定时器时长
const (
	DefaultCompletionTimer = 15 * time.Second
	DefaultAbsoluteTimer   = 30 * time.Second
)

// StopReason 扫描循环的结束原因
type StopReason string

const (
	// StopCompletionTimer 终点信号持续一段时间不再变强，认为最强一次通过已经发生
	StopCompletionTimer StopReason = "completion_timer"
	// StopAbsoluteTimer 从第一条终点信号起的总时长上限到期
	StopAbsoluteTimer StopReason = "absolute_timer"
	// StopCancelled 外部取消
	StopCancelled StopReason = "cancelled"
	// StopStreamClosed 读数流被扫描源关闭
	StopStreamClosed StopReason = "stream_closed"
)

// ScanLoop 扫描循环状态机
//
// 消费扫描源的实时读数流，把已知地址的读数写进对应传感器，并用
// 两个定时器赛跑决定什么时候结束：
//   - completion timer：每出现一条严格更强的终点信号就重开，到期说明
//     终点信号已经稳定不再变强
//   - absolute timer：第一条终点信号出现时启动一次，限制总扫描时长
//
// 传感器只在这一条控制流里被写入，不需要加锁
type ScanLoop struct {
	scanner  scanner.DeviceScanner
	route    *route.Route
	logger   *zap.Logger
	interval timerDurations

	// OnUpdate 可选回调：某条已知读数被接受后调用（同一控制流内），
	// 用于发布实时通过快照等；不得阻塞
	OnUpdate func(r *route.Route)
}

type timerDurations struct {
	completion time.Duration
	absolute   time.Duration
}

// NewScanLoop 创建扫描循环
func NewScanLoop(s scanner.DeviceScanner, r *route.Route, completion, absolute time.Duration, logger *zap.Logger) *ScanLoop {
	if completion <= 0 {
		completion = DefaultCompletionTimer
	}
	if absolute <= 0 {
		absolute = DefaultAbsoluteTimer
	}
	return &ScanLoop{
		scanner: s,
		route:   r,
		logger:  logger,
		interval: timerDurations{
			completion: completion,
			absolute:   absolute,
		},
	}
}

// Run 执行一轮扫描，阻塞到循环结束
//
// 任何退出路径（定时器到期、取消、流关闭、启动失败）都会停止扫描源
// 并停掉在跑的定时器；返回的 Route 带着已累积的全部读数。外部取消
// 时返回 ctx 的错误，数据不丢
func (l *ScanLoop) Run(ctx context.Context) (StopReason, error) {
	var (
		lastEndSignal   route.SignalReading
		haveEndSignal   bool
		completionTimer *time.Timer
		absoluteTimer   *time.Timer
		completionC     <-chan time.Time
		absoluteC       <-chan time.Time
	)

	defer func() {
		if completionTimer != nil {
			completionTimer.Stop()
		}
		if absoluteTimer != nil {
			absoluteTimer.Stop()
		}
		if err := l.scanner.Stop(); err != nil {
			l.logger.Error("Failed to stop scanner", zap.Error(err))
		}
	}()

	if err := l.scanner.Start(ctx); err != nil {
		return "", fmt.Errorf("failed to start scanner: %w", err)
	}

	lookup := l.route.AddressLookup()
	readings := l.scanner.Readings()

	l.logger.Info("Scan loop started",
		zap.String("route", l.route.Name),
		zap.Int("known_sensors", len(lookup)),
		zap.Duration("completion_timer", l.interval.completion),
		zap.Duration("absolute_timer", l.interval.absolute),
	)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Scan cancelled")
			return StopCancelled, ctx.Err()

		case <-completionC:
			l.logger.Info("Completion timer expired, ending scan")
			return StopCompletionTimer, nil

		case <-absoluteC:
			l.logger.Info("Absolute timer expired, ending scan")
			return StopAbsoluteTimer, nil

		case reading, ok := <-readings:
			if !ok {
				l.logger.Info("Reading stream closed, ending scan")
				return StopStreamClosed, nil
			}

			sensor := lookup[reading.Address]
			if sensor == nil {
				// 未知设备：不是错误，忽略
				l.logger.Debug("Ignoring unknown device", zap.String("address", reading.Address))
				continue
			}

			sensor.AddReading(reading.RSSI, reading.Timestamp)
			l.logger.Debug("Sensor reading",
				zap.String("sensor", sensor.Name),
				zap.Float64("rssi", reading.RSSI),
			)

			if l.route.IsEndSensor(sensor) {
				endSignal, ok := l.route.End.StrongestSignal()
				if ok {
					// 第一条终点信号：启动总时长上限
					if absoluteC == nil {
						absoluteTimer = time.NewTimer(l.interval.absolute)
						absoluteC = absoluteTimer.C
						l.logger.Info("Starting absolute timer", zap.Duration("duration", l.interval.absolute))
					}

					// 严格更强的终点信号：重开 completion timer
					if !haveEndSignal || endSignal.Strength > lastEndSignal.Strength {
						lastEndSignal = endSignal
						haveEndSignal = true

						if completionTimer != nil {
							completionTimer.Stop()
						}
						// 换新 timer 并切换通道，旧 timer 即使已触发也不会再被选中
						completionTimer = time.NewTimer(l.interval.completion)
						completionC = completionTimer.C
						l.logger.Info("Starting completion timer",
							zap.Duration("duration", l.interval.completion),
							zap.Float64("end_strength", endSignal.Strength),
						)
					}
				}
			}

			if l.OnUpdate != nil {
				l.OnUpdate(l.route)
			}
		}
	}
}
