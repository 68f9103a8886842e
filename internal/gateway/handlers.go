package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth probes each backend's health endpoint and reports the result.
// The gateway itself is healthy as long as it can answer; degraded backends
// are listed but do not turn the response into an error.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	client := &http.Client{Timeout: 2 * time.Second}

	backends := map[string]string{}
	for _, rt := range s.routes {
		name := rt.prefix
		if _, seen := backends[name]; seen {
			continue
		}
		status := "healthy"
		resp, err := client.Get(rt.target.String() + "/health")
		if err != nil {
			status = "unreachable"
		} else {
			if resp.StatusCode != http.StatusOK {
				status = "unhealthy"
			}
			resp.Body.Close()
		}
		backends[name] = status
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"backends": backends,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
