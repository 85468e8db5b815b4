package snapshot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `{
  "detections": [
    {
      "timestamp_ms": 1700000000000,
      "date": "2023-11-14 22:13:20",
      "objects_total": {"car": 10, "truck": 5},
      "objects_by_lane": {"lane_1": {"car": 6}, "lane_2": {"car": 4, "truck": 5}},
      "avg_speed_by_lane": {"lane_1": 42.5, "lane_2": 12.0}
    },
    {
      "timestamp_ms": 1700000060000,
      "date": "2023-11-14 22:14:20",
      "objects_total": {"bus": 1}
    }
  ]
}`

func TestReadFile(t *testing.T) {
	f, err := ReadFile(strings.NewReader(sampleFile))
	require.NoError(t, err)
	require.Len(t, f.Detections, 2)

	records := f.Records()
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, int64(1700000000000), first.TimestampMs)
	assert.Equal(t, "2023-11-14 22:13:20", first.Date)
	assert.Zero(t, first.ID)

	total, err := DecodeObjectsTotal(first.ObjectsTotal)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"car": 10, "truck": 5}, total)

	byLane, err := DecodeObjectsByLane(first.ObjectsByLane)
	require.NoError(t, err)
	assert.Equal(t, 5, byLane["lane_2"]["truck"])

	speeds, err := DecodeAvgSpeedByLane(first.AvgSpeedByLane)
	require.NoError(t, err)
	assert.Equal(t, 42.5, speeds["lane_1"])
}

func TestToRecord_MissingObjectsBecomeEmpty(t *testing.T) {
	f, err := ReadFile(strings.NewReader(sampleFile))
	require.NoError(t, err)

	rec := f.Detections[1].ToRecord()
	assert.JSONEq(t, `{"bus":1}`, rec.ObjectsTotal)
	assert.Equal(t, "{}", rec.ObjectsByLane)
	assert.Equal(t, "{}", rec.AvgSpeedByLane)
}

func TestToRecord_UnencodableObject(t *testing.T) {
	d := Detection{
		TimestampMs:  1,
		ObjectsTotal: map[string]interface{}{"car": make(chan int)},
	}
	assert.Equal(t, "{}", d.ToRecord().ObjectsTotal)
}

func TestReadFile_Invalid(t *testing.T) {
	_, err := ReadFile(strings.NewReader(`{"detections": [`))
	assert.Error(t, err)
}
