package route

import (
	"testing"
	"time"

	"ble-route-timer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoute() (*Route, *Sensor, *Sensor, *Sensor) {
	start := NewSensor("start_1", "AA:01")
	cp := NewSensor("cp_1", "AA:02")
	end := NewSensor("end_1", "AA:03")

	r := &Route{
		Name:        "a_line",
		Start:       NewSinglePoint(PointStart, "start", start),
		End:         NewSinglePoint(PointEnd, "end", end),
		Checkpoints: []*Point{NewSinglePoint(PointCheckpoint, "cp1", cp)},
	}
	return r, start, cp, end
}

func TestRoute_AllPoints_Order(t *testing.T) {
	r, _, _, _ := testRoute()

	points := r.AllPoints()
	require.Len(t, points, 3)
	assert.Equal(t, PointStart, points[0].Type)
	assert.Equal(t, PointCheckpoint, points[1].Type)
	assert.Equal(t, PointEnd, points[2].Type)
}

func TestRoute_TotalTime_AbsentWithoutBothSignals(t *testing.T) {
	r, start, _, end := testRoute()

	_, ok := r.TotalTime()
	assert.False(t, ok)

	start.AddReading(-50, ts(0))
	_, ok = r.TotalTime()
	assert.False(t, ok)

	end.AddReading(-48, ts(10))
	rt, ok := r.TotalTime()
	require.True(t, ok)
	assert.Equal(t, ts(0), rt.StartTime)
	assert.Equal(t, ts(10), rt.EndTime)
	assert.Equal(t, 10.0, rt.DurationSeconds)
}

func TestRoute_TotalTime_SubSecondPrecision(t *testing.T) {
	r, start, _, end := testRoute()

	t0 := time.Date(2025, 6, 1, 10, 0, 0, 250_000_000, time.UTC)
	t1 := time.Date(2025, 6, 1, 10, 0, 10, 750_000_000, time.UTC)
	start.AddReading(-50, t0)
	end.AddReading(-48, t1)

	rt, ok := r.TotalTime()
	require.True(t, ok)
	assert.Equal(t, 10.5, rt.DurationSeconds)
}

func TestRoute_TotalTime_NegativeDurationSurfaced(t *testing.T) {
	r, start, _, end := testRoute()

	// 终点最强信号早于起点：原样返回负的耗时，不报错
	start.AddReading(-50, ts(20))
	end.AddReading(-48, ts(5))

	rt, ok := r.TotalTime()
	require.True(t, ok)
	assert.Equal(t, -15.0, rt.DurationSeconds)
}

func TestRoute_TotalTime_Idempotent(t *testing.T) {
	r, start, _, end := testRoute()
	start.AddReading(-50, ts(0))
	end.AddReading(-48, ts(10))

	first, ok1 := r.TotalTime()
	second, ok2 := r.TotalTime()
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

func TestRoute_Passages_SortedByTimestamp(t *testing.T) {
	r, start, cp, end := testRoute()

	// 声明顺序 start → cp → end，但通过时间是 cp 最晚（折返场景）
	start.AddReading(-50, ts(0))
	end.AddReading(-48, ts(10))
	cp.AddReading(-55, ts(15))

	passages := r.Passages()
	require.Len(t, passages, 3)
	assert.Equal(t, "start", passages[0].Point.Name)
	assert.Equal(t, "end", passages[1].Point.Name)
	assert.Equal(t, "cp1", passages[2].Point.Name)
}

func TestRoute_Passages_OnlyPointsWithSignals(t *testing.T) {
	r, start, _, end := testRoute()

	start.AddReading(-50, ts(0))
	end.AddReading(-48, ts(10))

	passages := r.Passages()
	require.Len(t, passages, 2)
	assert.Equal(t, "start", passages[0].Point.Name)
	assert.Equal(t, ts(0), passages[0].Timestamp)
	assert.Equal(t, "end", passages[1].Point.Name)
	assert.Equal(t, ts(10), passages[1].Timestamp)
}

func TestRoute_Passages_EmptyWithoutReadings(t *testing.T) {
	r, _, _, _ := testRoute()
	assert.Empty(t, r.Passages())
}

func TestRoute_AddressLookup(t *testing.T) {
	r, start, cp, end := testRoute()

	lookup := r.AddressLookup()
	require.Len(t, lookup, 3)
	assert.Same(t, start, lookup["AA:01"])
	assert.Same(t, cp, lookup["AA:02"])
	assert.Same(t, end, lookup["AA:03"])

	assert.Equal(t, []string{"AA:01", "AA:02", "AA:03"}, r.KnownAddresses())
}

func TestRoute_AddressLookup_DualSensorPoints(t *testing.T) {
	e1 := NewSensor("end_1", "BB:01")
	e2 := NewSensor("end_2", "BB:02")
	r := &Route{
		Name:  "dual",
		Start: NewSinglePoint(PointStart, "start", NewSensor("start_1", "AA:01")),
		End:   NewDualPoint(PointEnd, "end", e1, e2),
	}

	lookup := r.AddressLookup()
	require.Len(t, lookup, 3)
	assert.Same(t, e1, lookup["BB:01"])
	assert.Same(t, e2, lookup["BB:02"])
}

func TestRoute_IsEndSensor(t *testing.T) {
	r, start, _, end := testRoute()

	assert.True(t, r.IsEndSensor(end))
	assert.False(t, r.IsEndSensor(start))
}

func TestRoute_ClearReadings(t *testing.T) {
	r, start, cp, end := testRoute()
	start.AddReading(-50, ts(0))
	cp.AddReading(-55, ts(5))
	end.AddReading(-48, ts(10))

	r.ClearReadings()

	assert.Empty(t, r.Passages())
	_, ok := r.TotalTime()
	assert.False(t, ok)
}

func TestBuild_ValidDefinition(t *testing.T) {
	def := &models.RouteDefinition{
		Name: "a_line",
		Points: []models.PointDefinition{
			{Name: "start", Type: "start", Sensors: []models.SensorDefinition{
				{Name: "start_1", Address: "AA:01"},
				{Name: "start_2", Address: "AA:02"},
			}},
			{Name: "cp1", Type: "checkpoint", Sensors: []models.SensorDefinition{
				{Name: "cp_1", Address: "AA:03"},
			}},
			{Name: "end", Type: "end", Sensors: []models.SensorDefinition{
				{Name: "end_1", Address: "AA:04"},
				{Name: "end_2", Address: "AA:05"},
			}},
		},
	}

	r, err := Build(def)
	require.NoError(t, err)
	assert.Equal(t, "a_line", r.Name)
	assert.True(t, r.Start.IsDual())
	assert.True(t, r.End.IsDual())
	require.Len(t, r.Checkpoints, 1)
	assert.False(t, r.Checkpoints[0].IsDual())
	assert.Len(t, r.AddressLookup(), 5)
}

func TestBuild_Invalid(t *testing.T) {
	tests := []struct {
		name string
		def  *models.RouteDefinition
	}{
		{
			name: "no name",
			def:  &models.RouteDefinition{},
		},
		{
			name: "missing end",
			def: &models.RouteDefinition{
				Name: "r",
				Points: []models.PointDefinition{
					{Name: "start", Type: "start", Sensors: []models.SensorDefinition{{Name: "s", Address: "AA:01"}}},
				},
			},
		},
		{
			name: "duplicate start",
			def: &models.RouteDefinition{
				Name: "r",
				Points: []models.PointDefinition{
					{Name: "s1", Type: "start", Sensors: []models.SensorDefinition{{Name: "a", Address: "AA:01"}}},
					{Name: "s2", Type: "start", Sensors: []models.SensorDefinition{{Name: "b", Address: "AA:02"}}},
					{Name: "end", Type: "end", Sensors: []models.SensorDefinition{{Name: "c", Address: "AA:03"}}},
				},
			},
		},
		{
			name: "unknown point type",
			def: &models.RouteDefinition{
				Name: "r",
				Points: []models.PointDefinition{
					{Name: "x", Type: "middle", Sensors: []models.SensorDefinition{{Name: "a", Address: "AA:01"}}},
				},
			},
		},
		{
			name: "too many sensors",
			def: &models.RouteDefinition{
				Name: "r",
				Points: []models.PointDefinition{
					{Name: "start", Type: "start", Sensors: []models.SensorDefinition{
						{Name: "a", Address: "AA:01"}, {Name: "b", Address: "AA:02"}, {Name: "c", Address: "AA:03"},
					}},
					{Name: "end", Type: "end", Sensors: []models.SensorDefinition{{Name: "d", Address: "AA:04"}}},
				},
			},
		},
		{
			name: "duplicate address",
			def: &models.RouteDefinition{
				Name: "r",
				Points: []models.PointDefinition{
					{Name: "start", Type: "start", Sensors: []models.SensorDefinition{{Name: "a", Address: "AA:01"}}},
					{Name: "end", Type: "end", Sensors: []models.SensorDefinition{{Name: "b", Address: "AA:01"}}},
				},
			},
		},
		{
			name: "sensor without address",
			def: &models.RouteDefinition{
				Name: "r",
				Points: []models.PointDefinition{
					{Name: "start", Type: "start", Sensors: []models.SensorDefinition{{Name: "a"}}},
					{Name: "end", Type: "end", Sensors: []models.SensorDefinition{{Name: "b", Address: "AA:02"}}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.def)
			assert.Error(t, err)
		})
	}
}
