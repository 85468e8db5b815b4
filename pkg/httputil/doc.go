// Package httputil provides JSON response helpers and the middleware stack
// wrapped around the laneview API.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, view)
//	httputil.WriteInternalError(w, err)   // {"error": "..."} with 500
//	httputil.WriteBadRequest(w, "limit must be positive")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware([]string{"*"}),
//	)(router)
//
// RequestIDMiddleware stores the request ID and a request-scoped logger in the
// context; the other middleware and handlers read them back with
// observability.FromContext.
package httputil
