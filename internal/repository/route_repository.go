package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"ble-route-timer/internal/models"

	"go.uber.org/zap"
)

// RouteRepository 路线定义仓库
//
// 路线定义存在 routes / route_points 表里，每个点的传感器描述放在
// route_points.sensors JSONB 字段（1~2 个 {name, address}）。
// 仓库只负责读出定义，构建和校验在 route.Build 里做
type RouteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRouteRepository 创建路线定义仓库
func NewRouteRepository(db *sql.DB, logger *zap.Logger) *RouteRepository {
	return &RouteRepository{
		db:     db,
		logger: logger,
	}
}

// GetRouteByName 按名称加载路线定义
func (r *RouteRepository) GetRouteByName(name string) (*models.RouteDefinition, error) {
	var routeName string
	err := r.db.QueryRow(`SELECT name FROM routes WHERE name = $1`, name).Scan(&routeName)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("route not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query route: %w", err)
	}

	query := `
		SELECT
			name,
			point_type,
			sensors
		FROM route_points
		WHERE route_name = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query route points: %w", err)
	}
	defer rows.Close()

	def := &models.RouteDefinition{Name: routeName}

	for rows.Next() {
		var (
			pointName   string
			pointType   string
			sensorsJSON []byte
		)
		if err := rows.Scan(&pointName, &pointType, &sensorsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan route point: %w", err)
		}

		var sensors []models.SensorDefinition
		if err := json.Unmarshal(sensorsJSON, &sensors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sensors for point %s: %w", pointName, err)
		}

		def.Points = append(def.Points, models.PointDefinition{
			Name:    pointName,
			Type:    pointType,
			Sensors: sensors,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate route points: %w", err)
	}

	if len(def.Points) == 0 {
		return nil, fmt.Errorf("route %s has no points", name)
	}

	r.logger.Debug("Loaded route definition",
		zap.String("route", routeName),
		zap.Int("points", len(def.Points)),
	)

	return def, nil
}
