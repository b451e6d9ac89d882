package http

import (
	"log/slog"
	"net/http"
	"order-chat/auth"
	domainerrors "order-chat/errors"
	"time"

	"github.com/gorilla/mux"
)

// authMiddleware requires a bearer token. Websocket clients that cannot set
// headers may pass it as the access_token query parameter.
func authMiddleware(tokens *auth.TokenManager, log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				writeError(w, log, domainerrors.ErrUnauthenticated)
				return
			}
			claims, err := tokens.ValidateToken(token)
			if err != nil {
				writeError(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware skips the websocket route: the recorder would hide the
// http.Hijacker the upgrade needs.
func loggingMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}
