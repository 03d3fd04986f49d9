// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Rooms     int       `json:"rooms"`
}

// RoomCounter reports how many rooms are live.
type RoomCounter interface {
	Count() int
}

// HealthHandler answers GET /health.
func HealthHandler(version string, rooms RoomCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Version:   version,
			Rooms:     rooms.Count(),
		})
	}
}
