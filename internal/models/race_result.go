package models

import "time"

// PassageRecord 一次通过记录（已按通过时间排序）
type PassageRecord struct {
	Point     string    `json:"point"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Strength  float64   `json:"strength"`
}

// RaceResult 单次计时结果（发布到缓存 / Webhook 的最终文档）
//
// StartTime/EndTime/DurationSeconds 仅在起终点都有信号时填充；
// DurationSeconds 可能为负（终点最强信号早于起点最强信号时原样保留）
type RaceResult struct {
	RunID           string          `json:"run_id"`
	RouteName       string          `json:"route_name"`
	StartTime       *time.Time      `json:"start_time,omitempty"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	DurationSeconds *float64        `json:"duration_seconds,omitempty"`
	Passages        []PassageRecord `json:"passages"`
	StopReason      string          `json:"stop_reason"`
	FinishedAt      time.Time       `json:"finished_at"`
}
