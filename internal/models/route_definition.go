package models

// SensorDefinition 传感器描述（语义名 + 物理地址）
type SensorDefinition struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// PointDefinition 路线点定义
//
// Type 取值: "start" / "checkpoint" / "end"
// Sensors 为 1 个（单传感器点）或 2 个（双传感器点，如起终点的门线两侧）
type PointDefinition struct {
	Name    string             `json:"name"`
	Type    string             `json:"type"`
	Sensors []SensorDefinition `json:"sensors"`
}

// RouteDefinition 路线定义（配置数据，运行期不会结构性变更）
type RouteDefinition struct {
	Name   string            `json:"name"`
	Points []PointDefinition `json:"points"`
}
