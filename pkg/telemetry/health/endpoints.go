package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessHandler returns the HTTP handler for the readiness probe.
// It runs every registered check and answers 200 when the system can
// serve, 503 when any dependency is unhealthy. The JSON body carries
// the per-dependency results either way:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "certificate_root": {"status": "ok", "duration_ms": 80000},
//	        "inventory": {"status": "unhealthy", "message": "inventory database unreachable: ..."}
//	    },
//	    "timestamp": "2026-08-23T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.CheckReadiness(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(status)
		}
	}
}
