// Package api provides the HTTP REST API for laneview.
//
// # Overview
//
// The API exposes every analytics view computed by analytics.Engine as a
// read-only JSON endpoint under /api/detections, along with health probes,
// Prometheus metrics and a few diagnostics. Routing is done with
// gorilla/mux.
//
// # Routes
//
//	GET  /api/detections
//	GET  /api/detections/volume/total
//	GET  /api/detections/volume/by-lane
//	GET  /api/detections/patterns/hourly
//	GET  /api/detections/lanes/speed
//	GET  /api/detections/lanes/bottlenecks
//	GET  /api/detections/temporal/evolution
//	GET  /api/detections/temporal/speed
//	GET  /api/detections/vehicle-types/dominance
//	GET  /api/detections/analysis/summary
//	GET  /api/detections/latest?limit=N
//	GET  /api/diagnostic/detection-count
//	GET  /api/cache/stats
//	POST /api/cache/clear
//	GET  /health, /health/live, /health/ready
//	GET  /metrics
//
// # Usage
//
//	server := api.NewServer(engine, store,
//		api.WithLogger(logger),
//		api.WithMetrics(registry, metrics),
//		api.WithHealthChecker(health),
//	)
//	http.ListenAndServe(":8080", server.Handler())
//
// Handler wraps the router in the request ID, logging, recovery, CORS,
// timeout, Prometheus and OpenTelemetry middleware. A failing source turns
// into a 500 response with a fixed {"error": "..."} message; the cause is
// only logged.
package api
