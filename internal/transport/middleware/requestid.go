package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jaaptech/nepalipay/pkg/logger"
)

// RequestID threads a trace id through the request. Gateway redirect flows
// bounce through the browser and back, so an incoming X-Trace-ID from the
// host application is honored to keep one id across the round trip.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "trace_id", traceID)
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
