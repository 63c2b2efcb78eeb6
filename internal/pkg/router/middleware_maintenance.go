package router

import (
	"net/http"

	"github.com/shandysiswandi/mailotp/internal/pkg/config"
)

// middlewareMaintenance rejects the routes listed in app.maintenance.endpoints
// ("METHOD /path" or "/path"). The list is read per request so a config reload
// takes effect without restart.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil {
				next.ServeHTTP(w, r)
				return
			}

			route := matchedRoutePath(r)
			for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
				if endpoint == route || endpoint == r.Method+" "+route {
					writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
