package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func newRequestLoggingMiddleware(excludedPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			/*
			 * Excluded paths, like the heartbeat, are too noisy to log.
			 */
			for _, excludedPath := range excludedPaths {
				if strings.HasPrefix(path, excludedPath) {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			slog.Info("request",
				"method", r.Method,
				"path", path,
				"status", recorder.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}
