package api

import (
	"context"
	"net/http"

	"github.com/platinummonkey/laneview/pkg/httputil"
	"github.com/platinummonkey/laneview/pkg/observability"
	"github.com/platinummonkey/laneview/pkg/snapshot"
)

// Bounds for the limit query parameter of /api/detections/latest
const (
	DefaultLatestLimit = 10
	MaxLatestLimit     = 1000
)

// Stable 500 messages; the wrapped cause is only logged
const (
	errComputeView = "failed to compute view"
	errReadRecords = "failed to read records"
	errCountRecs   = "failed to count records"
)

// Counter reports how many records are stored
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// serveView adapts an engine view to a JSON GET handler
func serveView[T any](view func(context.Context) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := view(r.Context())
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("Failed to compute view")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, errComputeView)
			return
		}
		httputil.WriteSuccess(w, result)
	}
}

// latestRecords handles GET /api/detections/latest
// Query params:
//   - limit: Number of records (1-1000) - default: 10
func (s *Server) latestRecords(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.ParseQueryIntInRange(w, r, "limit", DefaultLatestLimit, 1, MaxLatestLimit)
	if !ok {
		return
	}

	records, err := s.source.Latest(r.Context(), limit)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to read latest records")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, errReadRecords)
		return
	}
	writeRecords(w, records)
}

// allRecords handles GET /api/detections, every stored record oldest first
func (s *Server) allRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.source.ListOrdered(r.Context(), snapshot.Ascending)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to list records")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, errReadRecords)
		return
	}
	writeRecords(w, records)
}

func writeRecords(w http.ResponseWriter, records []snapshot.Record) {
	if records == nil {
		records = []snapshot.Record{}
	}
	httputil.WriteSuccess(w, records)
}

// detectionCount handles GET /api/diagnostic/detection-count
func (s *Server) detectionCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.counter.Count(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to count records")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, errCountRecs)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"count": count, "status": "success"})
}

// cacheStats handles GET /api/cache/stats
func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.cache.Stats())
}

// clearCache handles POST /api/cache/clear
// Every view is recomputed on its next request.
func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	s.cache.Clear()
	observability.FromContext(r.Context()).Info("View cache cleared on request")
	httputil.WriteSuccess(w, map[string]string{"status": "cleared"})
}
