package main

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/RyanHill92/canvass/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// requestID tags each request with an ID, reusing the caller's when sent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
