package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// sessionMiddleware requires a live session for the X-Session-Id and X-User-Id pair.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(HeaderSessionID))
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if token == "" || userID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session headers required")
			return
		}
		if _, ok := h.deps.Sessions.ValidateForUser(r.Context(), token, userID); !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired session")
			return
		}
		w.Header().Set(HeaderSessionID, token)
		w.Header().Set(HeaderUserID, userID)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, token)))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("http: panic on %s %s (request %s): %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), rec)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("http: %s %s %d %dB %s (request %s)", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}
