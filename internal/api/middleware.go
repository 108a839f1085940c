package api

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
)

type contextKey int

const requestIDKey contextKey = 0

// requestIDMiddleware threads an X-Request-ID through every request,
// generating one with google/uuid when the caller didn't supply it, so
// every boundary log line can carry a correlation_id (spec §7).
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID returns the correlation ID attached by requestIDMiddleware,
// or "-" if called outside a request (e.g. a test).
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return "-"
}

// logBoundaryError logs one structured line per failed request boundary
// call, correlation_id first so log aggregation can group by request.
func logBoundaryError(r *http.Request, ae *apperr.Error) {
	log.Printf("correlation_id=%s path=%s kind=%s msg=%s", requestID(r), r.URL.Path, ae.Kind, ae.Message)
}
