package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/laneview/pkg/async"
	"github.com/platinummonkey/laneview/pkg/config"
	"github.com/platinummonkey/laneview/pkg/ingest"
	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/snapshot"
	"github.com/platinummonkey/laneview/pkg/storage"
)

func main() {
	storageType := flag.String("storage-type", "", "Storage backend (memory, sqlite, postgres, redis); defaults to LANEVIEW_STORAGE_TYPE")
	sqlitePath := flag.String("sqlite-path", "", "SQLite database path; defaults to LANEVIEW_SQLITE_PATH")
	workers := flag.Int("workers", 4, "Number of files parsed concurrently")
	timeout := flag.Duration("timeout", time.Minute, "Time limit for parsing a single file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] detections.json [more.json ...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
	}
	if *sqlitePath != "" {
		cfg.Storage.SQLitePath = *sqlitePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer store.Close()

	saved, failed := importFiles(ctx, log, store, flag.Args(), *workers, *timeout)
	log.WithFields(logrus.Fields{
		"files":  flag.NArg(),
		"failed": failed,
		"saved":  saved,
	}).Info("Import finished")

	if failed > 0 {
		os.Exit(1)
	}
}

// importFiles parses paths concurrently, merges their detections in
// timestamp order and stores them in one pass. Files that fail to parse are
// reported and skipped. It returns the number of saved records and failed files.
func importFiles(ctx context.Context, log logrus.FieldLogger, store storage.Store, paths []string, workers int, timeout time.Duration) (int, int) {
	files := make([]*snapshot.File, len(paths))
	indexes := make([]int, len(paths))
	for i := range indexes {
		indexes[i] = i
	}

	batchLogger := observability.NewLogger(observability.WarnLevel, os.Stderr)
	errs := async.Batch(ctx, batchLogger, indexes, workers, "parse detections", timeout, func(ctx context.Context, i int) error {
		f, err := os.Open(paths[i])
		if err != nil {
			return err
		}
		defer f.Close()

		file, err := snapshot.ReadFile(f)
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
		files[i] = file
		log.WithFields(logrus.Fields{"path": paths[i], "detections": len(file.Detections)}).Debug("Parsed detections file")
		return nil
	})
	for _, err := range errs {
		log.WithError(err).Error("Failed to parse detections file")
	}

	var merged []snapshot.Detection
	for _, file := range files {
		if file != nil {
			merged = append(merged, file.Detections...)
		}
	}
	merged = mergeDetections(merged)

	saved, err := ingest.NewLoader(store, ingest.WithLogger(log)).SaveDetections(ctx, merged, "import")
	if err != nil {
		log.WithError(err).Error("Failed to save detections")
		return saved, len(errs) + 1
	}
	return saved, len(errs)
}

// mergeDetections sorts by timestamp and keeps the first detection seen for
// each timestamp
func mergeDetections(detections []snapshot.Detection) []snapshot.Detection {
	slices.SortStableFunc(detections, func(a, b snapshot.Detection) int {
		return cmp.Compare(a.TimestampMs, b.TimestampMs)
	})
	return slices.CompactFunc(detections, func(a, b snapshot.Detection) bool {
		return a.TimestampMs == b.TimestampMs
	})
}
