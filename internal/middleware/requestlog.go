package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"example.com/jsonblog/internal/logger"
	"github.com/google/uuid"
)

type contextKey string

const RequestIDCtxKey = contextKey("request_id")

const RequestIDHeader = "X-Request-ID"

var logg = logger.New()

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLog tags every request with an id and writes one access log line
// once the handler returns.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), RequestIDCtxKey, id)
		next.ServeHTTP(rec, r.WithContext(ctx))

		logg.Info("http", fmt.Sprintf("%s %s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond), id))
	})
}

// Extracting request_id in handler
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDCtxKey).(string)
	return id, ok
}
