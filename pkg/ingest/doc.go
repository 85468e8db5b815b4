// Package ingest loads detections files into storage and keeps watching them.
//
// The sensor pipeline rewrites a single detections.json document as new
// readings arrive. Loader parses it and saves the detections newer than the
// newest stored snapshot, so reloading the same file is idempotent. Watcher
// reloads the file after it changes on disk:
//
//	loader := ingest.NewLoader(store, ingest.WithLogger(log))
//	w := ingest.NewWatcher("detections/detections.json", loader)
//	go w.Run(ctx)
//
// Logging in this package uses logrus, like the other file-watching tools.
package ingest
