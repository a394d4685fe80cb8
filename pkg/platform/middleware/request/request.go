// Package request provides middleware that seeds request-scoped values.
// All operations within one HTTP request share the same "now" so the
// timestamps written by a single accept or complete stay consistent.
package request

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"jobmatch/pkg/requestcontext"
)

// Time captures the current time at the start of the request.
func Time(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ID copies chi's request id into requestcontext so services can log it
// without importing chi. Must run after chimw.RequestID.
func ID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		if reqID == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(chimw.RequestIDHeader, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
