package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/snapshot"
	"github.com/platinummonkey/laneview/pkg/storage"
)

// Loader converts detections files into stored snapshot records
type Loader struct {
	store     storage.Store
	logger    logrus.FieldLogger
	metrics   *observability.Metrics
	afterLoad []func(ctx context.Context, saved int)
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics sets the Prometheus metrics; nil disables them
func WithMetrics(metrics *observability.Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = metrics }
}

// WithAfterLoad registers a hook run after a load that saved at least one record
func WithAfterLoad(fn func(ctx context.Context, saved int)) LoaderOption {
	return func(l *Loader) { l.afterLoad = append(l.afterLoad, fn) }
}

// NewLoader creates a loader writing to store
func NewLoader(store storage.Store, opts ...LoaderOption) *Loader {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	l := &Loader{store: store, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile reads and stores the detections file at path. It returns the
// number of records saved.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		l.metrics.RecordIngestError("open")
		return 0, fmt.Errorf("failed to open detections file: %w", err)
	}
	defer f.Close()

	return l.Load(ctx, f, path)
}

// Load reads a detections document from r. source names it in logs.
func (l *Loader) Load(ctx context.Context, r io.Reader, source string) (int, error) {
	file, err := snapshot.ReadFile(r)
	if err != nil {
		l.metrics.RecordIngestError("decode")
		return 0, err
	}
	return l.SaveDetections(ctx, file.Detections, source)
}

// SaveDetections stores the detections newer than the newest stored record
// and returns how many were saved. Detections are saved in the given order.
func (l *Loader) SaveDetections(ctx context.Context, detections []snapshot.Detection, source string) (int, error) {
	log := l.logger.WithField("source", source)

	newest, err := l.newestTimestamp(ctx)
	if err != nil {
		l.metrics.RecordIngestError("read")
		return 0, err
	}

	records := make([]snapshot.Record, 0, len(detections))
	skipped := 0
	for _, d := range detections {
		if newest != nil && d.TimestampMs <= *newest {
			skipped++
			continue
		}
		records = append(records, d.ToRecord())
	}

	if len(records) == 0 {
		log.WithField("skipped", skipped).Info("No new detections to save")
		return 0, nil
	}

	if err := l.store.SaveAll(ctx, records); err != nil {
		l.metrics.RecordIngestError("save")
		return 0, fmt.Errorf("failed to save detections: %w", err)
	}

	stored, err := l.store.Count(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to count stored detections")
		stored = -1
	}
	l.metrics.RecordIngest(len(records), stored)

	log.WithFields(logrus.Fields{
		"saved":   len(records),
		"skipped": skipped,
		"stored":  stored,
	}).Info("Saved detections")

	for _, fn := range l.afterLoad {
		fn(ctx, len(records))
	}
	return len(records), nil
}

func (l *Loader) newestTimestamp(ctx context.Context) (*int64, error) {
	latest, err := l.store.Latest(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read newest detection: %w", err)
	}
	if len(latest) == 0 {
		return nil, nil
	}
	return &latest[0].TimestampMs, nil
}
