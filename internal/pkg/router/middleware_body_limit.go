package router

import (
	"net/http"

	"github.com/shandysiswandi/mailotp/internal/pkg/config"
)

// DefaultMaxBodyBytes caps request bodies when app.server.http.max_body_bytes is unset.
const DefaultMaxBodyBytes int64 = 4 << 10

func middlewareBodyLimit(cfg config.Config) Middleware {
	limit := DefaultMaxBodyBytes
	if cfg != nil {
		if v := cfg.GetInt("app.server.http.max_body_bytes"); v > 0 {
			limit = int64(v)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
