package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/docrules/internal/logger"
)

// requestLogger logs every request and feeds the HTTP counters on the metrics endpoint.
// A zero slowThreshold disables slow request reporting.
func requestLogger(slowThreshold time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				elapsed := time.Since(start)
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				switch {
				case status >= 500:
					logger.ErrorHttp5xx()
				case status >= 400:
					logger.WarnHttp4xx(status)
				}

				args := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", elapsed.Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				}
				if slowThreshold > 0 && elapsed > slowThreshold {
					logger.WarnSlowRequest()
					logger.Logger.Warn("slow request", args...)
					return
				}
				logger.Debug("request", args...)
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
