package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the display format of Record.Date
const DateLayout = "2006-01-02 15:04:05"

// Field names used in logs and metric labels
const (
	FieldObjectsTotal   = "objects_total"
	FieldObjectsByLane  = "objects_by_lane"
	FieldAvgSpeedByLane = "avg_speed_by_lane"
)

// ErrMalformed is returned when a serialized field cannot be decoded
var ErrMalformed = errors.New("malformed snapshot field")

// Record is one stored sensor reading. The three blob fields hold JSON
// objects exactly as ingested.
type Record struct {
	ID             int64  `json:"id"`
	TimestampMs    int64  `json:"timestamp_ms"`
	Date           string `json:"date"`
	ObjectsTotal   string `json:"objects_total"`
	ObjectsByLane  string `json:"objects_by_lane"`
	AvgSpeedByLane string `json:"avg_speed_by_lane"`
}

// Order selects the timestamp ordering of a listing
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// Source supplies the stored snapshot history
type Source interface {
	// ListAll returns every record in unspecified order
	ListAll(ctx context.Context) ([]Record, error)
	// ListOrdered returns every record sorted by TimestampMs
	ListOrdered(ctx context.Context, order Order) ([]Record, error)
	// Latest returns up to n records, newest first
	Latest(ctx context.Context, n int) ([]Record, error)
}

// Sink persists new records. Implementations assign IDs.
type Sink interface {
	SaveAll(ctx context.Context, records []Record) error
}

// DecodeObjectsTotal decodes a vehicle type -> count object
func DecodeObjectsTotal(raw string) (map[string]int, error) {
	var out map[string]int
	if err := decode(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldObjectsTotal, err)
	}
	if out == nil {
		out = map[string]int{}
	}
	return out, nil
}

// DecodeObjectsByLane decodes a lane -> (vehicle type -> count) object
func DecodeObjectsByLane(raw string) (map[string]map[string]int, error) {
	var out map[string]map[string]int
	if err := decode(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldObjectsByLane, err)
	}
	if out == nil {
		out = map[string]map[string]int{}
	}
	return out, nil
}

// DecodeAvgSpeedByLane decodes a lane -> km/h object
func DecodeAvgSpeedByLane(raw string) (map[string]float64, error) {
	var out map[string]float64
	if err := decode(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldAvgSpeedByLane, err)
	}
	if out == nil {
		out = map[string]float64{}
	}
	return out, nil
}

// ParseDate parses Record.Date
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", date, ErrMalformed)
	}
	return t, nil
}

func decode(raw string, v interface{}) error {
	if raw == "" {
		return ErrMalformed
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
