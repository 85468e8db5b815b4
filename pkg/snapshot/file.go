package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
)

// File is the on-disk detections document produced by the sensor pipeline
type File struct {
	Detections []Detection `json:"detections"`
}

// Detection is one entry of a detections file. The nested objects are kept
// raw so they can be stored without reinterpretation.
type Detection struct {
	TimestampMs    int64                  `json:"timestamp_ms"`
	Date           string                 `json:"date"`
	ObjectsTotal   map[string]interface{} `json:"objects_total"`
	ObjectsByLane  map[string]interface{} `json:"objects_by_lane"`
	AvgSpeedByLane map[string]interface{} `json:"avg_speed_by_lane"`
}

// ReadFile decodes a detections document
func ReadFile(r io.Reader) (*File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode detections file: %w", err)
	}
	return &f, nil
}

// ToRecord converts a detection into an unsaved Record. A nested object that
// cannot be encoded is stored as "{}".
func (d Detection) ToRecord() Record {
	return Record{
		TimestampMs:    d.TimestampMs,
		Date:           d.Date,
		ObjectsTotal:   encodeObject(d.ObjectsTotal),
		ObjectsByLane:  encodeObject(d.ObjectsByLane),
		AvgSpeedByLane: encodeObject(d.AvgSpeedByLane),
	}
}

// Records converts every detection in the file
func (f *File) Records() []Record {
	records := make([]Record, 0, len(f.Detections))
	for _, d := range f.Detections {
		records = append(records, d.ToRecord())
	}
	return records
}

func encodeObject(obj map[string]interface{}) string {
	if obj == nil {
		return "{}"
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "{}"
	}
	return string(b)
}
