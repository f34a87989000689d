package route

import (
	"fmt"

	"ble-route-timer/internal/models"
)

// Build 从路线定义构建 Route
//
// 校验规则：
// - 恰好一个 start、一个 end，检查点保持声明顺序
// - 每个点 1~2 个传感器，地址不能为空也不能重复
func Build(def *models.RouteDefinition) (*Route, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("route name is required")
	}

	r := &Route{Name: def.Name}
	seenAddresses := make(map[string]string)

	for _, pd := range def.Points {
		point, err := buildPoint(pd, seenAddresses)
		if err != nil {
			return nil, err
		}

		switch point.Type {
		case PointStart:
			if r.Start != nil {
				return nil, fmt.Errorf("route %s has more than one start point", def.Name)
			}
			r.Start = point
		case PointEnd:
			if r.End != nil {
				return nil, fmt.Errorf("route %s has more than one end point", def.Name)
			}
			r.End = point
		case PointCheckpoint:
			r.Checkpoints = append(r.Checkpoints, point)
		default:
			return nil, fmt.Errorf("point %s has unknown type: %s", pd.Name, pd.Type)
		}
	}

	if r.Start == nil {
		return nil, fmt.Errorf("route %s has no start point", def.Name)
	}
	if r.End == nil {
		return nil, fmt.Errorf("route %s has no end point", def.Name)
	}

	return r, nil
}

func buildPoint(pd models.PointDefinition, seenAddresses map[string]string) (*Point, error) {
	if pd.Name == "" {
		return nil, fmt.Errorf("route point name is required")
	}

	sensors := make([]*Sensor, 0, len(pd.Sensors))
	for _, sd := range pd.Sensors {
		if sd.Address == "" {
			return nil, fmt.Errorf("point %s has a sensor without address", pd.Name)
		}
		if owner, exists := seenAddresses[sd.Address]; exists {
			return nil, fmt.Errorf("sensor address %s is used by both %s and %s", sd.Address, owner, pd.Name)
		}
		seenAddresses[sd.Address] = pd.Name
		sensors = append(sensors, NewSensor(sd.Name, sd.Address))
	}

	switch len(sensors) {
	case 1:
		return NewSinglePoint(PointType(pd.Type), pd.Name, sensors[0]), nil
	case 2:
		return NewDualPoint(PointType(pd.Type), pd.Name, sensors[0], sensors[1]), nil
	default:
		return nil, fmt.Errorf("point %s must have 1 or 2 sensors, got %d", pd.Name, len(pd.Sensors))
	}
}
