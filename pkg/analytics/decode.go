package analytics

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// decoder decodes record fields, logging failures. Results may be shared
// through the memo and must be treated as read-only. A decoded value depends
// only on its key, so memo entries never go stale and are bounded by size alone.
type decoder struct {
	memo    *lru.Cache[string, any]
	logger  *observability.Logger
	metrics *observability.Metrics
}

func newDecoder(memoSize int, logger *observability.Logger, metrics *observability.Metrics) *decoder {
	d := &decoder{logger: logger, metrics: metrics}
	if memoSize > 0 {
		// lru.New only fails for a non-positive size
		d.memo, _ = lru.New[string, any](memoSize)
	}
	return d
}

func (d *decoder) objectsTotal(rec snapshot.Record) (map[string]int, bool) {
	return decodeField(d, rec, snapshot.FieldObjectsTotal, rec.ObjectsTotal, snapshot.DecodeObjectsTotal)
}

func (d *decoder) objectsByLane(rec snapshot.Record) (map[string]map[string]int, bool) {
	return decodeField(d, rec, snapshot.FieldObjectsByLane, rec.ObjectsByLane, snapshot.DecodeObjectsByLane)
}

func (d *decoder) avgSpeedByLane(rec snapshot.Record) (map[string]float64, bool) {
	return decodeField(d, rec, snapshot.FieldAvgSpeedByLane, rec.AvgSpeedByLane, snapshot.DecodeAvgSpeedByLane)
}

// decodeField memoizes by field and raw text, so identical blobs decode once
// no matter which record carries them.
func decodeField[T any](d *decoder, rec snapshot.Record, field, raw string, fn func(string) (T, error)) (T, bool) {
	key := field + "\x00" + raw
	if d.memo != nil {
		if v, ok := d.memo.Get(key); ok {
			return v.(T), true
		}
	}

	v, err := fn(raw)
	if err != nil {
		d.metrics.RecordDecodeFailure(field)
		d.logger.WithError(err).WithFields(map[string]interface{}{
			"record_id": rec.ID,
			"field":     field,
		}).Warn("Skipping malformed snapshot field")
		var zero T
		return zero, false
	}

	if d.memo != nil {
		d.memo.Add(key, v)
	}
	return v, true
}
