package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pilotfs/uploadgateway/internal/logger"
	"github.com/pilotfs/uploadgateway/pkg/api/handlers"
	"github.com/pilotfs/uploadgateway/pkg/upload"
)

// BuildInfo carries the values the liveness endpoint reports.
type BuildInfo struct {
	Name    string
	Version string
}

// NewRouter builds the chi router serving the upload surface: the four
// /v1 upload endpoints plus an unauthenticated liveness check at "/".
//
// Routes:
//   - GET  /                    - Liveness probe
//   - POST /v1/files/jobs       - Pre-upload
//   - POST /v1/files/chunks     - Chunk upload
//   - POST /v1/files            - Combine
//   - GET  /v1/upload/status/{job_id} - Status
func NewRouter(coordinator *upload.Coordinator, build BuildInfo) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	uploadHandler := handlers.New(coordinator)

	r.Get("/", handlers.Liveness(build.Name, build.Version))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handlers.RequireSessionID)
			r.Post("/files/jobs", uploadHandler.PreUpload)
			r.Post("/files/chunks", uploadHandler.ChunkUpload)
			r.Post("/files", uploadHandler.Combine)
			r.Get("/upload/status/{job_id}", uploadHandler.GetStatus)
		})
	})

	return r
}

// requestLogger logs each request's method, path, status and duration
// through the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoCtx(r.Context(), "api request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000.0,
		)
	})
}
