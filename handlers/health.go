package handlers

import (
	"net/http"
	"time"
)

const (
	serviceName    = "drone-image-server"
	serviceVersion = "1.0.0"
)

// Health reports liveness only. It deliberately touches no archive state, so
// it answers in constant time no matter how large the archive grows.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   serviceName,
		"version":   serviceVersion,
	})
}
