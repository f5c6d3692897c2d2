// Package handlers implements the HTTP handlers for the upload surface:
// pre-upload, chunk upload, combine, status, and liveness.
package handlers

import (
	"net/http"

	"github.com/pilotfs/uploadgateway/internal/logger"
	"github.com/pilotfs/uploadgateway/pkg/apierrors"
)

// RequireSessionID enforces the Session-Id header on every upload route
// and seeds the request's LogContext with it.
func RequireSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get("Session-Id")
		if sessionID == "" {
			writeError(w, apierrors.HeaderMissing("session_id"))
			return
		}
		ctx := logger.WithContext(r.Context(), logger.NewLogContext(sessionID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
