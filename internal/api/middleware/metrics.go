package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/middleware"
)

// Metrics records request counts and latencies labelled by route template
func Metrics(rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			rec.HTTPRequest(r.Method, routeTemplate(r), wrapped.Status(), time.Since(start))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
